package manifest

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"
)

// GetEndpoints returns the endpoints of baseURL, using the RAM cache if available.
// A backend that publishes no manifest, or cannot be reached, gets the
// defaults; the connectivity problem surfaces on the first real request.
func GetEndpoints(ctx context.Context, client *http.Client, baseURL string) *Manifest {
	if cached := GetCached(baseURL); cached != nil {
		return cached
	}

	m := Default()
	published, err := fetchFromServer(ctx, client, baseURL)
	switch {
	case err == nil:
		m.merge(published)
		logrus.Debugf("manifest: using published endpoints v%d from %s", published.Version, baseURL)
	case errors.Is(err, errNotPublished):
		logrus.Debugf("manifest: %s publishes no manifest, using defaults", baseURL)
	default:
		logrus.Debugf("manifest: fetch failed, using defaults: %v", err)
	}

	SetCached(baseURL, m)
	return m
}
