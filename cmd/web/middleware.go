package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"bookshop/internal/auth"
	"bookshop/internal/models"

	"github.com/google/uuid"
)

type contextKey string

const requestIDKey = contextKey("requestID")

func (app *application) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

func (app *application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		app.infoLog.Printf("%s - %s %s %s [%s]", r.RemoteAddr, r.Proto, r.Method, r.URL.RequestURI(), requestIDFrom(r.Context()))
		next.ServeHTTP(w, r)
	})
}

func (app *application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")
				app.serverError(w, fmt.Errorf("%s", err))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// principal reads the caller from the session.
func (app *application) principal(r *http.Request) auth.Principal {
	return auth.Principal{
		UserID: app.session.GetString(r.Context(), "authenticatedUserID"),
		Email:  app.session.GetString(r.Context(), "userEmail"),
		Role:   models.Role(app.session.GetString(r.Context(), "userRole")),
	}
}

// storedPrincipal replaces the session's role and email with the ones on
// the account, so a role change or deletion takes effect on the next request.
func (app *application) storedPrincipal(ctx context.Context, p auth.Principal) (auth.Principal, error) {
	id, err := models.ParseID(p.UserID)
	if err != nil {
		return p, err
	}
	u, err := app.users.Get(ctx, id)
	if err != nil {
		return p, err
	}
	if u.Role != p.Role {
		app.session.Put(ctx, "userRole", string(u.Role))
	}
	return auth.Principal{UserID: p.UserID, Email: u.Email, Role: u.Role}, nil
}

func (app *application) authorize(req auth.Requirement, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := app.principal(r)
		if req == auth.Admin && p.Authenticated() {
			stored, err := app.storedPrincipal(r.Context(), p)
			switch {
			case errors.Is(err, models.ErrNoRecord), errors.Is(err, models.ErrInvalidID):
				if err := app.session.Destroy(r.Context()); err != nil {
					app.errorLog.Printf("destroy session: %v", err)
				}
				app.clientError(w, http.StatusUnauthorized)
				return
			case err != nil:
				app.serverError(w, err)
				return
			}
			p = stored
		}
		d := app.policy.Authorize(p, req)
		if !d.Allowed {
			app.clientError(w, d.Status)
			return
		}
		if d.ViaLegacy {
			app.infoLog.Printf("legacy admin access: %s %s %s", p.Email, r.Method, r.URL.Path)
		}
		w.Header().Add("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func (app *application) requireAuthentication(next http.HandlerFunc) http.Handler {
	return app.authorize(auth.Authenticated, next)
}

func (app *application) requireAdmin(next http.HandlerFunc) http.Handler {
	return app.authorize(auth.Admin, next)
}
