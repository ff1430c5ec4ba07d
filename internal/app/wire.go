package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/relay"
	historysvc "github.com/NitinDabar/e2ee-chat/internal/services/history"
	"github.com/NitinDabar/e2ee-chat/internal/services/identity"
	messagesvc "github.com/NitinDabar/e2ee-chat/internal/services/message"
	prekeysvc "github.com/NitinDabar/e2ee-chat/internal/services/prekey"
	sessionsvc "github.com/NitinDabar/e2ee-chat/internal/services/session"
	"github.com/NitinDabar/e2ee-chat/internal/store"
)

// Wire bundles all stores, services, and clients for the CLI.
type Wire struct {
	Config   Config
	Log      zerolog.Logger
	Store    domain.SnapshotStore
	Identity *identity.Service
	Prekeys  *prekeysvc.Service
	Sessions *sessionsvc.Manager
	Messages *messagesvc.Service
	History  *historysvc.Service
	Relay    *relay.Client

	closers []func() error
}

// NewWire validates cfg, opens the configured store and builds the service
// graph. Persisted sessions are loaded before it returns.
func NewWire(ctx context.Context, cfg Config, log zerolog.Logger) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := &Wire{Config: cfg, Log: log}

	st, err := w.openStore(ctx)
	if err != nil {
		return nil, err
	}
	w.Store = st

	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	w.Relay = relay.NewClient(cfg.RelayURL, relay.WithHTTPClient(httpClient), relay.WithLogger(log))

	self := domain.PeerID(cfg.DeviceID)
	w.Identity = identity.New(st, self, log)
	w.Prekeys = prekeysvc.New(w.Identity, w.Relay, self, 0, log)
	w.Sessions = sessionsvc.New(self, w.Prekeys, st, log)
	w.History = historysvc.New(self, st, log)
	w.Messages = messagesvc.New(self, w.Sessions, w.Relay, w.Relay, st, w.History, log)

	if err := w.Sessions.Load(ctx); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	return w, nil
}

// openStore builds the backend named by the config. Every backend except
// ekv, which encrypts on its own, is wrapped in a passphrase-sealed store.
func (w *Wire) openStore(ctx context.Context) (domain.SnapshotStore, error) {
	cfg := w.Config

	var inner domain.SnapshotStore
	switch cfg.StoreBackend {
	case BackendFile:
		fs, err := store.NewFileStore(cfg.DeviceHome())
		if err != nil {
			return nil, err
		}
		inner = fs
	case BackendSQLite:
		sq, err := store.NewSQLiteStore(ctx, cfg.sqlitePath())
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, sq.Close)
		inner = sq
	case BackendRedis:
		rs, err := store.NewRedisStore(ctx, cfg.RedisURL, "e2ee:")
		if err != nil {
			return nil, err
		}
		w.closers = append(w.closers, rs.Close)
		inner = rs
	case BackendEKV:
		ks, err := store.NewEKVStore(filepath.Join(cfg.DeviceHome(), "ekv"), cfg.Passphrase)
		if err != nil {
			return nil, err
		}
		w.Log.Debug().Str("backend", cfg.StoreBackend).Msg("store opened")
		return ks, nil
	case BackendMemory:
		inner = store.NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}

	sealed := store.NewSealed(inner, cfg.Passphrase)
	w.closers = append(w.closers, func() error { sealed.Close(); return nil })
	w.Log.Debug().Str("backend", cfg.StoreBackend).Msg("store opened")
	return sealed, nil
}

// Close releases the store in reverse order of opening.
func (w *Wire) Close() error {
	var errs []error
	for i := len(w.closers) - 1; i >= 0; i-- {
		errs = append(errs, w.closers[i]())
	}
	w.closers = nil
	return errors.Join(errs...)
}

var _ io.Closer = (*Wire)(nil)
