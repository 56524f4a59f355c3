package cmd

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"convtrack/cli/internal/auth"
	"convtrack/cli/internal/backend"
	"convtrack/cli/internal/config"
	"convtrack/cli/internal/keychain"
	"convtrack/cli/internal/manifest"
	"convtrack/cli/internal/poller"
	"convtrack/cli/internal/session"
	"convtrack/cli/internal/stream"
	"convtrack/cli/internal/txstore"
)

// cfg is the effective configuration, resolved before any command runs.
var cfg = config.Defaults()

// loadConfig layers the saved config, the --config file, the environment and
// the global flags, in that order.
func loadConfig() (config.Config, error) {
	c, err := config.Load()
	if err != nil {
		return c, err
	}
	if configFile != "" {
		if err := c.LoadFile(configFile); err != nil {
			return c, err
		}
	}
	if backendURL != "" {
		c.Backend.URL = strings.TrimRight(backendURL, "/")
	}
	if logLevel != "" {
		c.LogLevel = logLevel
	}
	return c, c.Validate()
}

// app bundles the clients a command needs.
type app struct {
	m  *manifest.Manifest
	be *backend.HTTP
	km *keychain.Manager
}

func newApp(ctx context.Context) (*app, error) {
	client := &http.Client{Timeout: cfg.Timeout()}
	m := manifest.GetEndpoints(ctx, client, cfg.Backend.URL)
	a := &app{
		m:  m,
		be: backend.New(cfg.Backend.URL, m.HTTP, backend.WithHTTPClient(client)),
	}
	km, err := keychain.GetManager()
	if err != nil {
		logrus.WithError(err).Debug("keychain unavailable")
		return a, nil
	}
	a.km = km
	return a, nil
}

// authService requires a working keychain.
func (a *app) authService() (*auth.Service, error) {
	if a.km == nil {
		_, err := keychain.GetManager()
		return nil, err
	}
	return auth.NewService(a.be, a.km, cfg.Backend.URL), nil
}

// attachSession sends the stored session with every backend call. Backends
// without authentication work without one.
func (a *app) attachSession() string {
	svc, err := a.authService()
	if err != nil {
		return ""
	}
	cookie, err := svc.Session()
	if err != nil {
		if !errors.Is(err, auth.ErrNotLoggedIn) {
			logrus.WithError(err).Debug("cannot load session")
		}
		return ""
	}
	return cookie
}

// storeDSN resolves the PostgreSQL DSN of the transaction store: environment
// first, then the keychain.
func (a *app) storeDSN() string {
	if cfg.Store.DSN != "" {
		return cfg.Store.DSN
	}
	if a.km == nil {
		return ""
	}
	v, err := a.km.LoadStoreDSN()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(v)
}

func (a *app) openStore(ctx context.Context) (txstore.Store, error) {
	c := cfg
	if c.Store.Kind == config.StorePostgres {
		c.Store.DSN = a.storeDSN()
	}
	return txstore.Open(ctx, c, a.be)
}

// trackOptions controls how newSession tracks jobs.
type trackOptions struct {
	transport string
	noStream  bool
	noPoll    bool
}

func (a *app) newSession(cookie string, o trackOptions) (*session.Session, error) {
	var fetcher poller.Fetcher
	if !o.noPoll {
		fetcher = a.be
	}
	opts := []session.Option{
		session.WithInterval(cfg.PollInterval()),
		session.WithGrace(cfg.GraceDelay()),
		session.WithLogger(logrus.StandardLogger()),
	}
	if o.noStream {
		return session.New(nil, fetcher, append(opts, session.WithoutStream())...), nil
	}

	kind := o.transport
	if kind == "" {
		kind = cfg.Transport
	}
	t, err := stream.NewTransport(kind, stream.Options{
		BaseURL:     cfg.Backend.URL,
		Manifest:    a.m,
		Session:     cookie,
		GRPCAddress: cfg.Backend.GRPCAddress,
	})
	if err != nil {
		return nil, err
	}
	reader := stream.NewReader(t, stream.WithGrace(cfg.GraceDelay()), stream.WithLogger(logrus.StandardLogger()))
	return session.New(reader, fetcher, opts...), nil
}
