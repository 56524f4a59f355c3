// Copyright (c) 2025 Convtrack
// Licensed under the MIT License. See LICENSE file in the project root for details.

package auth

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/keychain"
)

// State represents persisted authentication state for the current user.
type State struct {
	LoggedIn   bool      `json:"logged_in"`
	Account    string    `json:"account"`
	Backend    string    `json:"backend"`
	LoggedInAt time.Time `json:"logged_in_at"`
}

// Load reads the auth state from the keychain. Missing state yields zero value.
func Load(km *keychain.Manager) (State, error) {
	var s State
	data, err := km.LoadAuthState()
	if errors.Is(err, keychain.ErrNotFound) {
		logrus.Debug("auth: no stored state")
		return s, nil
	}
	if err != nil {
		return s, err
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return s, err
	}
	logrus.WithFields(logrus.Fields{"logged_in": s.LoggedIn, "account": s.Account}).Debug("auth: state loaded")
	return s, nil
}

// Save writes the auth state to the keychain.
func Save(km *keychain.Manager, s State) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return km.SaveAuthState(b)
}
