package app_test

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/app"
	"parley/internal/domain"
	"parley/internal/relay"
	"parley/internal/store"
)

const pass = "Correct-Horse-42"

func TestLoadConfigDefaults(t *testing.T) {
	home := t.TempDir()
	v := app.NewViper()
	v.Set("home", home)

	cfg, err := app.LoadConfig(v, "")
	require.NoError(t, err)
	assert.Equal(t, home, cfg.Home)
	assert.Equal(t, store.DriverBolt, cfg.Store.Driver)
	assert.Equal(t, filepath.Join(home, "parley.db"), cfg.StorePath())
	assert.True(t, cfg.Handshake.RequireSignatures)
	assert.Equal(t, 5*time.Minute, cfg.Handshake.FreshnessWindow)
	assert.Equal(t, 1<<20, cfg.Files.ChunkSize)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "parley.yaml")
	require.NoError(t, os.WriteFile(file, []byte(`
user_id: alice
home: `+dir+`
relay:
  url: http://relay.example:9000
  timeout: 3s
store:
  driver: sqlite
  path: /tmp/alice.sqlite
handshake:
  freshness_window: 2m
  require_signatures: false
files:
  chunk_size: 4096
`), 0o600))
	t.Setenv("PARLEY_LOG_LEVEL", "debug")
	t.Setenv("PARLEY_RELAY_URL", "http://override:1")

	cfg, err := app.LoadConfig(app.NewViper(), file)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("alice"), cfg.UserID)
	assert.Equal(t, "http://override:1", cfg.Relay.URL)
	assert.Equal(t, 3*time.Second, cfg.Relay.Timeout)
	assert.Equal(t, store.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "/tmp/alice.sqlite", cfg.StorePath())
	assert.Equal(t, 2*time.Minute, cfg.Handshake.FreshnessWindow)
	assert.False(t, cfg.Handshake.RequireSignatures)
	assert.Equal(t, 2*time.Minute, cfg.Handshake.PendingTTL)
	assert.Equal(t, 4096, cfg.Files.ChunkSize)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadConfigMissingFileTolerated(t *testing.T) {
	cfg, err := app.LoadConfig(app.NewViper(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, app.DefaultConfig().Relay.URL, cfg.Relay.URL)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*app.Config)
	}{
		{"unknown driver", func(c *app.Config) { c.Store.Driver = "etcd" }},
		{"no home", func(c *app.Config) { c.Home = "" }},
		{"negative window", func(c *app.Config) { c.Handshake.FreshnessWindow = -time.Second }},
		{"negative ttl", func(c *app.Config) { c.Handshake.PendingTTL = -time.Second }},
		{"negative chunk", func(c *app.Config) { c.Files.ChunkSize = -1 }},
		{"negative timeout", func(c *app.Config) { c.Relay.Timeout = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := app.DefaultConfig()
			tt.edit(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, app.DefaultConfig().Validate())
}

func TestConfigYAMLRoundTripsThroughViper(t *testing.T) {
	dir := t.TempDir()
	cfg := app.DefaultConfig()
	cfg.Home = dir
	cfg.UserID = "bob"
	cfg.Handshake.PendingTTL = 90 * time.Second
	file := app.ConfigFile(dir)
	require.NoError(t, cfg.WriteFile(file))

	got, err := app.LoadConfig(app.NewViper(), file)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

type fixture struct {
	relayURL string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	srv := httptest.NewServer(relay.NewServer(relay.ServerOptions{Logger: zerolog.Nop()}).Handler())
	t.Cleanup(srv.Close)
	return fixture{relayURL: srv.URL}
}

func (f fixture) config(t *testing.T, user domain.UserID, driver string) app.Config {
	t.Helper()
	cfg := app.DefaultConfig()
	cfg.UserID = user
	cfg.Home = t.TempDir()
	cfg.Relay.URL = f.relayURL
	cfg.Store.Driver = driver
	cfg.Files.ChunkSize = 8
	return cfg
}

// unlocked creates an identity for user, unlocks it and registers it.
func (f fixture) unlocked(t *testing.T, user domain.UserID, driver string) *app.App {
	t.Helper()
	w, err := app.NewWire(f.config(t, user, driver), zerolog.Nop(), prometheus.NewRegistry())
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	_, _, err = w.Identity.GenerateIdentity(user, pass)
	require.NoError(t, err)
	a, err := w.Unlock(pass)
	require.NoError(t, err)
	require.NoError(t, a.Register(context.Background()))
	return a
}

func TestUnlockRequiresRelay(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.Home = t.TempDir()
	cfg.UserID = "alice"
	cfg.Relay.URL = ""
	w, err := app.NewWire(cfg, zerolog.Nop(), nil)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Unlock(pass)
	assert.ErrorIs(t, err, app.ErrNoRelay)
}

func TestUnlockWrongPassphrase(t *testing.T) {
	f := newFixture(t)
	w, err := app.NewWire(f.config(t, "alice", store.DriverFile), zerolog.Nop(), nil)
	require.NoError(t, err)
	defer w.Close()

	_, _, err = w.Identity.GenerateIdentity("alice", pass)
	require.NoError(t, err)
	_, err = w.Unlock("Wrong-Horse-4242")
	assert.ErrorIs(t, err, domain.ErrWrongPasswordOrCorrupt)
}

func TestConnectAndChat(t *testing.T) {
	f := newFixture(t)
	alice := f.unlocked(t, "alice", store.DriverBolt)
	bob := f.unlocked(t, "bob", store.DriverSQLite)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		mu  sync.Mutex
		got []domain.Inbound
	)
	listenCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- bob.Listen(listenCtx, 10*time.Millisecond, func(in domain.Inbound) {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, in)
		})
	}()

	require.NoError(t, alice.Connect(ctx, "bob", 10*time.Millisecond, nil))
	assert.Equal(t, domain.StateEstablished, alice.Sessions.State("bob"))
	require.NoError(t, alice.Messages.Send(ctx, "bob", []byte("hello")))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, in := range got {
			if in.Message != nil {
				return true
			}
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	stop()
	require.NoError(t, <-done)

	mu.Lock()
	defer mu.Unlock()
	for _, in := range got {
		assert.NoError(t, in.Err)
		if in.Message != nil {
			assert.Equal(t, "hello", string(in.Message.Plaintext))
			assert.Equal(t, domain.UserID("alice"), in.Message.From)
		}
	}
	assert.True(t, bob.Sessions.Established("alice"))
}

func TestConnectUnknownPeerFails(t *testing.T) {
	f := newFixture(t)
	alice := f.unlocked(t, "alice", store.DriverMemory)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := alice.Connect(ctx, "nobody", 10*time.Millisecond, nil)
	assert.ErrorIs(t, err, domain.ErrUnknownPeerPublicKey)
	assert.Equal(t, domain.StateIdle, alice.Sessions.State("nobody"))
}

func TestConnectGivesUpWhenContextEnds(t *testing.T) {
	f := newFixture(t)
	alice := f.unlocked(t, "alice", store.DriverMemory)
	f.unlocked(t, "carol", store.DriverMemory) // registered but never listening

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := alice.Connect(ctx, "carol", 10*time.Millisecond, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.StateIdle, alice.Sessions.State("carol"))
}

func TestLogoutClearsSessions(t *testing.T) {
	f := newFixture(t)
	alice := f.unlocked(t, "alice", store.DriverMemory)
	bob := f.unlocked(t, "bob", store.DriverMemory)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	listenCtx, stop := context.WithCancel(ctx)
	defer stop()
	go func() { _ = bob.Listen(listenCtx, 10*time.Millisecond, func(domain.Inbound) {}) }()

	require.NoError(t, alice.Connect(ctx, "bob", 10*time.Millisecond, nil))
	alice.Logout()
	assert.False(t, alice.Sessions.Established("bob"))
	assert.ErrorIs(t, alice.Messages.Send(ctx, "bob", []byte("x")), domain.ErrNoSession)
}
