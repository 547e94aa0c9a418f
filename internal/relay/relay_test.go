package relay_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"parley/internal/crypto"
	"parley/internal/domain"
	"parley/internal/observability"
	"parley/internal/relay"
)

func newRelay(t *testing.T, opts relay.ServerOptions) (*relay.HTTP, *httptest.Server) {
	t.Helper()
	opts.Logger = zerolog.Nop()
	srv := httptest.NewServer(relay.NewServer(opts).Handler())
	t.Cleanup(srv.Close)
	return relay.NewHTTP(srv.URL, 0), srv
}

func message(from, to domain.UserID, nonce string) domain.Envelope {
	return domain.Envelope{
		Kind: domain.KindMessage,
		From: from,
		To:   to,
		Message: &domain.EncryptedMessage{
			SenderID:   from,
			ReceiverID: to,
			Nonce:      nonce,
		},
	}
}

func TestPublishAndFetchKey(t *testing.T) {
	c, _ := newRelay(t, relay.ServerOptions{})
	ctx := context.Background()

	_, err := c.FetchPublicKey(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrUnknownPeerPublicKey)

	key, err := crypto.GenerateSigningKeyPair()
	require.NoError(t, err)
	pub, err := crypto.ExportPublicKey(&key.PublicKey)
	require.NoError(t, err)

	require.NoError(t, c.PublishPublicKey(ctx, "alice", pub))
	got, err := c.FetchPublicKey(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, pub.Equal(got))
}

func TestPublishRejectsEmptyKey(t *testing.T) {
	c, _ := newRelay(t, relay.ServerOptions{})
	err := c.PublishPublicKey(context.Background(), "alice", domain.PublicKey{})
	var se *relay.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestSendFetchAck(t *testing.T) {
	c, _ := newRelay(t, relay.ServerOptions{})
	ctx := context.Background()

	for _, n := range []string{"n1", "n2", "n3"} {
		require.NoError(t, c.SendEnvelope(ctx, message("alice", "bob", n)))
	}

	envs, err := c.FetchEnvelopes(ctx, "bob", 2)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	assert.Equal(t, "n1", envs[0].Message.Nonce)
	assert.NotEmpty(t, envs[0].ID)
	assert.NotZero(t, envs[0].Timestamp)

	// Fetching does not consume.
	envs, err = c.FetchEnvelopes(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Len(t, envs, 3)

	require.NoError(t, c.AckEnvelopes(ctx, "bob", 2))
	envs, err = c.FetchEnvelopes(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, "n3", envs[0].Message.Nonce)

	require.NoError(t, c.AckEnvelopes(ctx, "bob", 10))
	envs, err = c.FetchEnvelopes(ctx, "bob", 0)
	require.NoError(t, err)
	assert.Empty(t, envs)
}

func TestSendRejectsMalformedEnvelopes(t *testing.T) {
	c, _ := newRelay(t, relay.ServerOptions{})
	ctx := context.Background()

	bad := message("alice", "bob", "n1")
	bad.Kind = domain.KindInit
	err := c.SendEnvelope(ctx, bad)
	var se *relay.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)

	anon := message("", "bob", "n1")
	require.True(t, errors.As(c.SendEnvelope(ctx, anon), &se))
	assert.Equal(t, http.StatusBadRequest, se.Code)
}

func TestSendRouteMustMatchRecipient(t *testing.T) {
	_, srv := newRelay(t, relay.ServerOptions{})
	body := `{"kind":"message","from":"alice","to":"carol","message":{"sender_id":"alice","receiver_id":"carol"}}`
	resp, err := http.Post(srv.URL+"/msg/bob", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRateLimitPerSender(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	c, _ := newRelay(t, relay.ServerOptions{Rate: rate.Limit(0.001), Burst: 2, Metrics: m})
	ctx := context.Background()

	require.NoError(t, c.SendEnvelope(ctx, message("alice", "bob", "n1")))
	require.NoError(t, c.SendEnvelope(ctx, message("alice", "bob", "n2")))

	err := c.SendEnvelope(ctx, message("alice", "bob", "n3"))
	var se *relay.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusTooManyRequests, se.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RelayRateLimited))

	// Other senders have their own bucket.
	require.NoError(t, c.SendEnvelope(ctx, message("carol", "bob", "n4")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.RelayQueueDepth))
}

func TestMailboxLimit(t *testing.T) {
	c, _ := newRelay(t, relay.ServerOptions{MaxQueue: 1})
	ctx := context.Background()
	require.NoError(t, c.SendEnvelope(ctx, message("alice", "bob", "n1")))

	err := c.SendEnvelope(ctx, message("alice", "bob", "n2"))
	var se *relay.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInsufficientStorage, se.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetrics(reg)
	_, srv := newRelay(t, relay.ServerOptions{Metrics: m, Gatherer: reg})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `parley_relay_requests_total{code="200",route="GET /healthz"} 1`)
}

func TestBadLimitRejected(t *testing.T) {
	_, srv := newRelay(t, relay.ServerOptions{})
	resp, err := http.Get(srv.URL + "/msg/bob?limit=-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
