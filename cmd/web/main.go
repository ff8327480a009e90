package main

import (
	"context"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"sync"
	"time"

	"bookshop/internal/auth"
	"bookshop/internal/config"
	"bookshop/internal/events"
	"bookshop/internal/fulfillment"
	"bookshop/internal/models"
	"bookshop/internal/orders"
	"bookshop/internal/payment"
	"bookshop/internal/redisx"
	"bookshop/internal/repository"
	"bookshop/internal/settings"
	"bookshop/internal/shipping"

	"github.com/alexedwards/scs/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type application struct {
	errorLog      *log.Logger
	infoLog       *log.Logger
	cfg           *config.Config
	session       *scs.SessionManager
	DB            *models.MongoDB
	users         userStore
	settings      *settings.Provider
	policy        *auth.Policy
	orders        *orders.Service
	shipments     *fulfillment.Service
	carrier       fulfillment.Carrier
	templateCache map[string]*template.Template
	trackingQueue chan string
}

// userStore is the part of repository.UserRepository the handlers use.
type userStore interface {
	Insert(ctx context.Context, name, email, password string, role models.Role) (*models.User, error)
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	Get(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, page, limit int) (*models.Page[*models.User], error)
	SetRole(ctx context.Context, id primitive.ObjectID, role models.Role) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	AddAddress(ctx context.Context, userID primitive.ObjectID, a models.Address) (*models.Address, error)
	UpdateAddress(ctx context.Context, userID primitive.ObjectID, a models.Address) error
	RemoveAddress(ctx context.Context, userID, addressID primitive.ObjectID) error
	SetDefaultAddress(ctx context.Context, userID, addressID primitive.ObjectID) error
}

func main() {
	Execute()
}

// newApplication connects every backing service named in cfg. The returned
// cleanup flushes pending events and closes the connections in reverse
// order.
func newApplication(ctx context.Context, cfg *config.Config) (*application, func(), error) {
	infoLog := log.New(os.Stdout, "INFO\t", log.Ldate|log.Ltime)
	errorLog := log.New(os.Stderr, "ERROR\t", log.Ldate|log.Ltime|log.Lshortfile)

	db, err := models.Connect(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, nil, err
	}
	infoLog.Printf("Connected to MongoDB database %q", cfg.Mongo.Database)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	closers = append(closers, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := db.Close(ctx); err != nil {
			errorLog.Printf("mongo disconnect: %v", err)
		}
	})

	if err := db.EnsureIndexes(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("ensure indexes: %w", err)
	}

	provider := settings.NewProvider(db)
	if err := provider.Load(ctx); err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("load settings: %w", err)
	}

	var locker redisx.Locker = redisx.NoopLocker{}
	if cfg.Redis.Addr != "" {
		rdb := redisx.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := rdb.Ping(ctx).Err(); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		locker = redisx.NewLocker(rdb)
		closers = append(closers, func() { _ = rdb.Close() })
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		prod := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, "bookshop-web", cfg.Kafka.Buffer, errorLog)
		prod.Start()
		publisher = prod
		closers = append(closers, func() {
			prod.Close()
			prod.WaitClosed()
		})
	}

	gateway := payment.NewClient(cfg.Payment.BaseURL, cfg.Payment.KeyID, cfg.Payment.KeySecret, cfg.Payment.Timeout)
	carrier := shipping.NewClient(cfg.Shipping.BaseURL, cfg.Shipping.Email, cfg.Shipping.Password, cfg.Shipping.Timeout)

	templateCache, err := newTemplateCache()
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	session := scs.New()
	session.Lifetime = cfg.Session.Lifetime
	session.Cookie.Secure = cfg.Session.Secure
	session.Cookie.HttpOnly = true
	session.Cookie.SameSite = http.SameSiteLaxMode

	app := &application{
		errorLog: errorLog,
		infoLog:  infoLog,
		cfg:      cfg,
		session:  session,
		DB:       db,
		users:    &repository.UserRepository{Collection: db.Users},
		settings: provider,
		policy: &auth.Policy{
			LegacyAdminEmails: cfg.Auth.LegacyAdminEmails,
			LegacyUntil:       cfg.Auth.LegacyUntil,
		},
		orders: &orders.Service{
			Store:         db,
			Gateway:       gateway,
			Settings:      provider,
			Events:        publisher,
			KeyID:         cfg.Payment.KeyID,
			Secret:        cfg.Payment.KeySecret,
			WebhookSecret: cfg.Payment.WebhookSecret,
			InfoLog:       infoLog,
			ErrorLog:      errorLog,
		},
		shipments: &fulfillment.Service{
			Store:    db,
			Carrier:  carrier,
			Locker:   locker,
			Events:   publisher,
			Settings: provider,
			InfoLog:  infoLog,
			ErrorLog: errorLog,
			Attempts: cfg.Shipping.RetryAttempts,
			Backoff:  cfg.Shipping.RetryBackoff,
		},
		carrier:       carrier,
		templateCache: templateCache,
		trackingQueue: make(chan string, cfg.Server.TrackingQueue),
	}
	if !cfg.PaymentsEnabled() {
		infoLog.Println("Payment gateway credentials not set; online checkout will fail")
	}
	if !cfg.ShippingEnabled() {
		infoLog.Println("Carrier credentials not set; shipment booking will fail")
	}
	return app, cleanup, nil
}

func (app *application) serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:         app.cfg.Server.Addr,
		ErrorLog:     app.errorLog,
		Handler:      app.routes(),
		ReadTimeout:  app.cfg.Server.ReadTimeout,
		WriteTimeout: app.cfg.Server.WriteTimeout,
		IdleTimeout:  app.cfg.Server.IdleTimeout,
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	trackingDone := make(chan struct{})
	go func() {
		defer close(trackingDone)
		app.trackingWorker(workerCtx)
	}()
	var resumers sync.WaitGroup
	resumers.Add(1)
	go func() {
		defer resumers.Done()
		app.resumer(workerCtx, app.cfg.Server.ResumeInterval)
	}()

	errCh := make(chan error, 1)
	go func() {
		app.infoLog.Printf("Starting bookshop on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		app.infoLog.Println("Shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		// Handlers may still be queueing, so the queue stays open and
		// whatever is in it is dropped.
		app.errorLog.Printf("shutdown: %v", err)
		stopWorkers()
	} else {
		close(app.trackingQueue)
	}
	<-trackingDone
	stopWorkers()
	resumers.Wait()
	return serveErr
}
