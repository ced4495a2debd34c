package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"

	"tasksync/internal/auth"
	"tasksync/internal/config"
	"tasksync/internal/connectivity"
	"tasksync/internal/database"
	"tasksync/internal/localstore"
	"tasksync/internal/remote"
	"tasksync/internal/repository"
	"tasksync/internal/syncer"
)

// app is the wired client: local store, remote store, probe and coordinator.
type app struct {
	cfg    config.Config
	store  *localstore.Store
	remote syncer.RemoteStore
	probe  connectivity.Probe
	auth   auth.Provider
	coord  *syncer.Coordinator
	pg     *sql.DB
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	provider, err := auth.Resolve(cfg.User, cfg.AuthToken)
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_TOKEN: %w", err)
	}
	store, err := localstore.Open(ctx, cfg.LocalDBPath)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store, auth: provider}

	switch cfg.RemoteMode {
	case config.RemoteHTTP:
		a.remote = remote.NewClient(cfg.RemoteURL, cfg.AuthToken, cfg.RemoteTimeout)
	case config.RemotePostgres:
		db, err := database.Open(ctx, cfg)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := database.MigrateOrCreateSchema(ctx, db); err != nil {
			_ = db.Close()
			_ = store.Close()
			return nil, err
		}
		a.pg = db
		a.remote = repository.New(db)
	default:
		_ = store.Close()
		return nil, fmt.Errorf("unknown REMOTE_MODE %q", cfg.RemoteMode)
	}

	a.probe = newProbe(cfg)
	a.coord = syncer.New(store, a.remote, a.probe, syncer.WithPushConcurrency(cfg.PushConcurrency))
	return a, nil
}

// user returns the signed-in user or syncer.ErrNoUser.
func (a *app) user() (string, error) {
	if id, ok := a.auth.CurrentUser(); ok {
		return id, nil
	}
	return "", syncer.ErrNoUser
}

func (a *app) Close() error {
	var errs []error
	if a.pg != nil {
		errs = append(errs, a.pg.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// newProbe dials PROBE_ADDR when set, otherwise the host of the remote store.
func newProbe(cfg config.Config) connectivity.Probe {
	addr := cfg.ProbeAddr
	if addr == "" {
		switch cfg.RemoteMode {
		case config.RemotePostgres:
			addr = hostPort(cfg.DatabaseURL, "5432")
		default:
			addr = hostPort(cfg.RemoteURL, "")
		}
	}
	if addr == "" {
		return connectivity.Static(false)
	}
	return connectivity.NewDialer(addr)
}

// hostPort extracts host:port from a URL, filling in the scheme's default port.
func hostPort(raw, defaultPort string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	port := u.Port()
	if port == "" {
		switch {
		case defaultPort != "":
			port = defaultPort
		case u.Scheme == "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(u.Hostname(), port)
}
