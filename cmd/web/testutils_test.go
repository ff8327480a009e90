package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookshop/internal/auth"
	"bookshop/internal/config"
	"bookshop/internal/models"
	"bookshop/internal/orders"
	"bookshop/internal/settings"
	"bookshop/internal/shipping"

	"github.com/alexedwards/scs/v2"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type memSettings struct {
	doc *models.Settings
}

func (m *memSettings) LoadSettings(context.Context) (*models.Settings, error) {
	if m.doc == nil {
		return nil, models.ErrNoRecord
	}
	s := *m.doc
	return &s, nil
}

func (m *memSettings) SaveSettings(_ context.Context, s *models.Settings) error {
	c := *s
	m.doc = &c
	return nil
}

type fakeCarrier struct {
	couriers []shipping.Courier
	err      error
	pickup   string
	delivery string
	cod      bool
}

func (c *fakeCarrier) Serviceability(_ context.Context, pickup, delivery string, _ float64, cod bool) ([]shipping.Courier, error) {
	c.pickup, c.delivery, c.cod = pickup, delivery, cod
	return c.couriers, c.err
}

func (c *fakeCarrier) CreateOrder(context.Context, shipping.CreateOrderRequest) (*shipping.CreatedOrder, error) {
	return nil, c.err
}

func (c *fakeCarrier) AssignAWB(context.Context, int64, int) (*shipping.Assignment, error) {
	return nil, c.err
}

func (c *fakeCarrier) TrackAWB(context.Context, string) (*shipping.Tracking, error) {
	return nil, c.err
}

// memUsers keeps accounts in a map. Methods the tests do not need fall
// through to the nil embedded interface.
type memUsers struct {
	userStore
	byID map[primitive.ObjectID]*models.User
}

func newMemUsers(users ...*models.User) *memUsers {
	m := &memUsers{byID: map[primitive.ObjectID]*models.User{}}
	for _, u := range users {
		m.byID[u.ID] = u
	}
	return m
}

func (m *memUsers) Get(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return nil, models.ErrNoRecord
	}
	c := *u
	return &c, nil
}

func (m *memUsers) SetRole(_ context.Context, id primitive.ObjectID, role models.Role) error {
	u, ok := m.byID[id]
	if !ok {
		return models.ErrNoRecord
	}
	u.Role = role
	return nil
}

func (m *memUsers) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := m.byID[id]; !ok {
		return models.ErrNoRecord
	}
	delete(m.byID, id)
	return nil
}

func newUser(email string, role models.Role) *models.User {
	return &models.User{ID: primitive.NewObjectID(), Name: "Test", Email: email, Role: role}
}

func principalOf(u *models.User) auth.Principal {
	return auth.Principal{UserID: u.ID.Hex(), Email: u.Email, Role: u.Role}
}

// newTestApplication builds an application with no database behind it.
// Only handlers that stop before reaching the store can be exercised.
func newTestApplication(t *testing.T) *application {
	t.Helper()

	cache, err := newTemplateCache()
	require.NoError(t, err)

	discard := log.New(io.Discard, "", 0)
	session := scs.New()
	session.Lifetime = time.Hour

	return &application{
		errorLog: discard,
		infoLog:  discard,
		cfg:      &config.Config{},
		session:  session,
		settings: settings.NewProvider(&memSettings{}),
		users:    newMemUsers(),
		policy:   &auth.Policy{},
		orders: &orders.Service{
			Secret:        "checkout-secret",
			WebhookSecret: "webhook-secret",
			InfoLog:       discard,
			ErrorLog:      discard,
		},
		carrier:       &fakeCarrier{},
		templateCache: cache,
		trackingQueue: make(chan string, 1),
	}
}

// asPrincipal runs h inside a session that already carries p.
func asPrincipal(app *application, p auth.Principal, h http.Handler) http.Handler {
	return app.session.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p.UserID != "" {
			app.session.Put(r.Context(), "authenticatedUserID", p.UserID)
			app.session.Put(r.Context(), "userRole", string(p.Role))
			app.session.Put(r.Context(), "userEmail", p.Email)
		}
		h.ServeHTTP(w, r)
	}))
}

func do(t *testing.T, h http.Handler, method, target string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		js, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(js)
	}
	r := httptest.NewRequest(method, target, rd)
	for k, vs := range header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, r)
	return rr
}

func errorBody(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	return body.Error
}
