package app

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"parley/internal/domain"
	"parley/internal/observability"
	"parley/internal/relay"
	directorysvc "parley/internal/services/directory"
	identitysvc "parley/internal/services/identity"
	"parley/internal/store"
)

// Wire bundles the stores, clients and services that exist before the
// identity is unlocked.
type Wire struct {
	Config  Config
	Log     zerolog.Logger
	Metrics *observability.Metrics

	KV        domain.KVStore
	Keys      *store.KeyStore
	Pins      *store.PeerKeys
	Relay     domain.RelayClient // nil when no relay URL is configured
	Identity  *identitysvc.Service
	Directory *directorysvc.Service
}

// NewWire constructs the dependency graph from cfg. reg may be nil, in which
// case no metrics are recorded.
func NewWire(cfg Config, log zerolog.Logger, reg prometheus.Registerer) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Store.Driver != store.DriverMemory {
		if err := os.MkdirAll(cfg.Home, 0o700); err != nil {
			return nil, oops.Wrapf(err, "create home %q", cfg.Home)
		}
	}

	kv, err := store.Open(cfg.Store.Driver, cfg.StorePath())
	if err != nil {
		return nil, err
	}

	var metrics *observability.Metrics
	if reg != nil {
		metrics = observability.NewMetrics(reg)
	}

	// Relay client is optional; without it the directory serves pinned keys only.
	var rc domain.RelayClient
	if cfg.Relay.URL != "" {
		rc = relay.NewHTTP(cfg.Relay.URL, cfg.Relay.Timeout)
	}

	keys := store.NewKeyStore(kv)
	pins := store.NewPeerKeys(kv)
	return &Wire{
		Config:    cfg,
		Log:       log,
		Metrics:   metrics,
		KV:        kv,
		Keys:      keys,
		Pins:      pins,
		Relay:     rc,
		Identity:  identitysvc.New(keys),
		Directory: directorysvc.New(rc, pins, log),
	}, nil
}

// Close releases the backing store.
func (w *Wire) Close() error {
	return w.KV.Close()
}
