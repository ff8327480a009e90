package models

import (
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNoRecord  = errors.New("models: no matching record found")
	ErrDuplicate = errors.New("models: duplicate record")
	ErrInvalidID = errors.New("models: invalid id")
)

// ParseID turns a hex string into an ObjectID, reporting ErrInvalidID on
// malformed input.
func ParseID(hex string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(hex)
	if err != nil {
		return primitive.NilObjectID, ErrInvalidID
	}
	return oid, nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNoRecord
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

// ValidationError reports a bad input field. Handlers answer it with 400.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}
