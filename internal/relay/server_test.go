package relay_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/NitinDabar/e2ee-chat/internal/domain"
	"github.com/NitinDabar/e2ee-chat/internal/relay"
)

func newRelay(t *testing.T) (*relay.Client, *httptest.Server) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := relay.NewMetrics(reg)
	srv := httptest.NewServer(relay.NewRouter(relay.NewHub(m), m, reg, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return relay.NewClient(srv.URL, noRetry()), srv
}

func noRetry() relay.ClientOption {
	return relay.WithBackOff(func() backoff.BackOff { return &backoff.StopBackOff{} })
}

func TestClientBundleRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newRelay(t)

	b := publicBundle(t, 3)
	require.NoError(t, c.PublishBundle(ctx, "bob", b))

	got, err := c.FetchPeerBundle(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, b.IdentityKey, got.IdentityKey)
	require.Equal(t, b.SignedPreKeySignature, got.SignedPreKeySignature)
	require.Equal(t, b.OneTimePreKeys[:1], got.OneTimePreKeys)

	_, err = c.FetchPeerBundle(ctx, "nobody")
	require.ErrorIs(t, err, domain.ErrNotFound)
	var serr *relay.StatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusNotFound, serr.Status)
}

func TestClientRejectedBundleIsNotRetried(t *testing.T) {
	c, _ := newRelay(t)
	b := publicBundle(t, 0)
	b.SignedPreKeySignature[5] ^= 1

	err := c.PublishBundle(context.Background(), "bob", b)
	var serr *relay.StatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusBadRequest, serr.Status)
	require.Contains(t, serr.Msg, "signature")
}

func TestClientEnvelopeRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, _ := newRelay(t)

	pub := domain.X25519Public{7}
	env := domain.Envelope{Ciphertext: []byte("ct"), Nonce: []byte("nonce"), DHPublicKey: &pub, MessageNumber: 4, PreviousChainLength: 2}
	require.NoError(t, c.PushEnvelope(ctx, "alice", "bob", env))
	require.NoError(t, c.PushEnvelope(ctx, "carol", "bob", env))

	got, err := c.PullEnvelopes(ctx, "bob", "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, domain.PeerID("alice"), got[0].From)
	require.Equal(t, env, got[0].Envelope)
	require.False(t, got[0].ReceivedAt.IsZero())

	got, err = c.PullEnvelopes(ctx, "bob", got[1].Cursor)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	c := relay.NewClient(srv.URL, relay.WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 5)
	}))
	require.NoError(t, c.Health(context.Background()))
	require.Equal(t, int32(3), calls.Load())
}

func TestClientGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := relay.NewClient(srv.URL, relay.WithBackOff(func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Millisecond), 2)
	}))
	err := c.Health(context.Background())
	var serr *relay.StatusError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, http.StatusBadGateway, serr.Status)
	require.False(t, domain.IsProtocolError(err))
	require.Equal(t, int32(3), calls.Load())
}

func TestServerValidation(t *testing.T) {
	_, srv := newRelay(t)

	resp, err := http.Post(srv.URL+"/v1/envelopes/bob", "application/json", strings.NewReader(`{"from":"alice","envelope":{}}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/v1/envelopes/bob?limit=-1")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServerMetricsAndHealth(t *testing.T) {
	c, srv := newRelay(t)
	require.NoError(t, c.Health(context.Background()))
	require.NoError(t, c.PublishBundle(context.Background(), "bob", publicBundle(t, 1)))

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "relay_bundles_published_total 1")
	require.Contains(t, string(body), `route="/v1/bundles/{peer}"`)
}
