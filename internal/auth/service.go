// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/backend"
	"convtrack/cli/internal/keychain"
)

// ErrNotLoggedIn is returned when no session is stored.
var ErrNotLoggedIn = errors.New("not logged in; run 'convtrack login'")

// Client is the part of the backend API the auth service uses.
type Client interface {
	Login(ctx context.Context, email, password string) (session string, name string, err error)
	Logout(ctx context.Context) error
	Account(ctx context.Context) (backend.Account, error)
	SetSession(session string)
}

// Service centralizes authentication-related operations against the backend
// and local secure storage/state.
type Service struct {
	be      Client
	km      *keychain.Manager
	backend string
}

// NewService constructs an auth Service for the backend at baseURL.
func NewService(be Client, km *keychain.Manager, baseURL string) *Service {
	return &Service{be: be, km: km, backend: baseURL}
}

// Login opens a session and stores it. Returns the account name.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	session, name, err := s.be.Login(ctx, email, password)
	if err != nil {
		return "", err
	}
	if err := s.km.SaveSession(session); err != nil {
		return "", err
	}
	if err := Save(s.km, State{LoggedIn: true, Account: name, Backend: s.backend, LoggedInAt: time.Now().UTC()}); err != nil {
		return "", err
	}
	return name, nil
}

// Session returns the stored session cookie and attaches it to the client.
func (s *Service) Session() (string, error) {
	session, err := s.km.LoadSession()
	if errors.Is(err, keychain.ErrNotFound) {
		return "", ErrNotLoggedIn
	}
	if err != nil {
		return "", err
	}
	s.be.SetSession(session)
	return session, nil
}

// WhoAmI validates the stored session and returns the account when valid.
// When the backend cannot be reached the locally stored account is returned.
// A session the backend rejects is cleared.
func (s *Service) WhoAmI(ctx context.Context) (string, bool, error) {
	if _, err := s.Session(); err != nil {
		if errors.Is(err, ErrNotLoggedIn) {
			return "", false, nil
		}
		return "", false, err
	}

	acc, err := s.be.Account(ctx)
	switch {
	case err == nil:
		return acc.Email, true, nil
	case errors.Is(err, backend.ErrUnauthorized):
		logrus.Debug("auth: session rejected, clearing local credentials")
		return "", false, s.ResetLocalAuth()
	}

	logrus.WithError(err).Debug("auth: backend unreachable, using stored state")
	st, lerr := Load(s.km)
	if lerr != nil {
		return "", false, lerr
	}
	if st.LoggedIn && st.Account != "" {
		return st.Account, true, nil
	}
	return "", false, err
}

// Logout performs remote logout (best-effort) and clears local credentials/state.
func (s *Service) Logout(ctx context.Context) error {
	if _, err := s.Session(); err == nil {
		if err := s.be.Logout(ctx); err != nil {
			logrus.WithError(err).Debug("auth: remote logout failed")
		}
	}
	return s.ResetLocalAuth()
}

// ResetLocalAuth clears only local credentials/state (no remote calls).
func (s *Service) ResetLocalAuth() error {
	return s.km.ClearAuth()
}
