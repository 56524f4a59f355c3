// Package auth manages the backend session of the CLI user.
//
// Logging in exchanges an email and password for the backend's AuthSession
// cookie. The cookie is kept in the OS keychain together with a small state
// record used to answer whoami while the backend is unreachable.
package auth

import "convtrack/cli/internal/keychain"

// IsLoggedIn reports whether the user is considered logged in.
func IsLoggedIn(km *keychain.Manager) (bool, error) {
	st, err := Load(km)
	if err != nil {
		return false, err
	}
	return st.LoggedIn, nil
}
