package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// LoadSettings reads the settings document stored under SettingsID.
func (m *MongoDB) LoadSettings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := m.Settings.FindOne(ctx, bson.M{"_id": SettingsID}).Decode(&s); err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// SaveSettings replaces the settings document. Keying on the fixed _id keeps
// the collection at a single document no matter how often it is saved.
func (m *MongoDB) SaveSettings(ctx context.Context, s *Settings) error {
	s.ID = SettingsID
	s.UpdatedAt = time.Now().UTC()
	_, err := m.Settings.ReplaceOne(ctx, bson.M{"_id": SettingsID}, s, options.Replace().SetUpsert(true))
	return err
}
