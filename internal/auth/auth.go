// Package auth implements the login and registration flows on top of the API
// client and the session store.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/mail"
	"strings"

	"delivery/internal/api"
	"delivery/internal/journal"
	"delivery/internal/model"
	"delivery/internal/session"
)

var (
	ErrAccessDenied = errors.New("access denied")

	ErrMissingName   = errors.New("name is required")
	ErrInvalidEmail  = errors.New("invalid email")
	ErrShortPassword = errors.New("password must have at least 6 characters")
	ErrMissingTaxID  = errors.New("tax id is required")
)

const minPasswordLen = 6

type Flow struct {
	client  *api.Client
	session *session.Store
	journal *journal.Journal
}

// NewFlow wires a flow. j may be nil.
func NewFlow(client *api.Client, sess *session.Store, j *journal.Journal) *Flow {
	return &Flow{client: client, session: sess, journal: j}
}

// Login authenticates and, on success, replaces the current session. On
// failure the existing session is left as is, except for a 401 which the
// gateway has already turned into a logout.
func (f *Flow) Login(ctx context.Context, email, password string) (model.Identity, error) {
	id, token, err := f.client.Login(ctx, strings.TrimSpace(email), password)
	if err != nil {
		var se *api.StatusError
		if errors.As(err, &se) && se.Code >= http.StatusBadRequest && se.Code < http.StatusInternalServerError {
			if se.Message != "" {
				return model.Identity{}, fmt.Errorf("%w: %s", ErrAccessDenied, se.Message)
			}
			return model.Identity{}, ErrAccessDenied
		}
		return model.Identity{}, fmt.Errorf("login: %w", err)
	}
	if err := f.session.SetCredentials(id, token); err != nil {
		return model.Identity{}, fmt.Errorf("store session: %w", err)
	}
	log.Printf("logged in name=%q role=%s", id.Name, id.Role)
	f.journal.Record(ctx, journal.Event{Kind: journal.KindLogin, Actor: id.Name})
	return id, nil
}

// Validate mirrors the backend's registration constraints.
func Validate(r model.Registration) error {
	name, email, password := r.Credentials()
	if strings.TrimSpace(name) == "" {
		return ErrMissingName
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return ErrShortPassword
	}
	if strings.TrimSpace(r.TaxID()) == "" {
		return ErrMissingTaxID
	}
	return nil
}

// Register creates the account. It does not log in.
func (f *Flow) Register(ctx context.Context, r model.Registration) error {
	if r == nil {
		return errors.New("register: nil registration")
	}
	if err := Validate(r); err != nil {
		return err
	}
	if err := f.client.Register(ctx, r); err != nil {
		return fmt.Errorf("register: %w", err)
	}
	return nil
}

func (f *Flow) RegisterAndLogin(ctx context.Context, r model.Registration) (model.Identity, error) {
	if err := f.Register(ctx, r); err != nil {
		return model.Identity{}, err
	}
	_, email, password := r.Credentials()
	return f.Login(ctx, email, password)
}

func (f *Flow) Logout(ctx context.Context) {
	id, ok := f.session.Identity()
	f.session.Logout()
	if ok {
		f.journal.Record(ctx, journal.Event{Kind: journal.KindLogout, Actor: id.Name})
	}
}
