package network

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/sponsor-go/fault"
	"github.com/bitfsorg/sponsor-go/wallet"
)

func newTestKey(t *testing.T) *wallet.Key {
	t.Helper()
	k, err := wallet.GenerateKey(&wallet.MainNet)
	require.NoError(t, err)
	return k
}

func TestGatewayPublish(t *testing.T) {
	payer := newTestKey(t)
	data := []byte("<html>hello</html>")
	tags := []Tag{{Name: "App-Name", Value: "PermaDeploy"}, {Name: "Content-Type", Value: "text/html"}}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/tx", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, payer.Address, r.Header.Get(HeaderPayerAddress))

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, data, body)

		// Signature must verify against the declared public key.
		pubBytes, err := hex.DecodeString(r.Header.Get(HeaderPayerPubKey))
		require.NoError(t, err)
		pub, err := ec.PublicKeyFromBytes(pubBytes)
		require.NoError(t, err)
		sigBytes, err := hex.DecodeString(r.Header.Get(HeaderSignature))
		require.NoError(t, err)
		sig, err := ec.ParseDERSignature(sigBytes)
		require.NoError(t, err)
		digest := sha256.Sum256(body)
		assert.True(t, sig.Verify(digest[:], pub))

		rawTags, err := base64.RawURLEncoding.DecodeString(r.Header.Get(HeaderTags))
		require.NoError(t, err)
		var got []Tag
		require.NoError(t, json.Unmarshal(rawTags, &got))
		assert.Equal(t, tags, got)

		_, _ = w.Write([]byte(`{"id":"tx-abc","winc":"1234"}`))
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{URL: server.URL + "/", Token: "secret"})
	receipt, err := client.Publish(context.Background(), payer, data, tags)
	require.NoError(t, err)
	assert.Equal(t, "tx-abc", receipt.TxID)
	assert.Equal(t, uint64(1234), receipt.Cost)
}

func TestGatewayPublish_EmptyData(t *testing.T) {
	client := NewGatewayClient(GatewayConfig{URL: "http://localhost:1"})
	_, err := client.Publish(context.Background(), newTestKey(t), nil, nil)
	assert.ErrorIs(t, err, ErrEmptyData)
}

func TestGatewayPublish_StatusMapping(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuthFailed},
		{http.StatusForbidden, ErrAuthFailed},
		{http.StatusPaymentRequired, ErrInsufficientFunds},
		{http.StatusBadRequest, ErrPublishRejected},
		{http.StatusBadGateway, ErrConnectionFailed},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer server.Close()

			client := NewGatewayClient(GatewayConfig{URL: server.URL})
			_, err := client.Publish(context.Background(), newTestKey(t), []byte("x"), nil)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "nope")
			assert.Equal(t, fault.KindPublish, fault.KindOf(err))
		})
	}
}

func TestGatewayPublish_MissingID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"winc":"1"}`))
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{URL: server.URL})
	_, err := client.Publish(context.Background(), newTestKey(t), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGatewayPublish_MalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{URL: server.URL})
	_, err := client.Publish(context.Background(), newTestKey(t), []byte("x"), nil)
	assert.ErrorIs(t, err, ErrInvalidResponse)
}

func TestGatewayConnectionError(t *testing.T) {
	client := NewGatewayClient(GatewayConfig{URL: "http://localhost:1"})
	_, err := client.GetBalance(context.Background(), "1abc")
	assert.ErrorIs(t, err, ErrConnectionFailed)
}

func TestGatewayContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{URL: server.URL})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.Publish(ctx, newTestKey(t), []byte("x"), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGatewayGetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/balance", r.URL.Path)
		assert.Equal(t, "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH", r.URL.Query().Get("address"))
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"winc":"2500000000000","spendable":"2000000000000"}`))
	}))
	defer server.Close()

	client := NewGatewayClient(GatewayConfig{URL: server.URL})
	bal, err := client.GetBalance(context.Background(), "1BgGZ9tcN4rm9KBzDn7KprQz87SZ26SAMH")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000_000), bal.Available)
	assert.Equal(t, uint64(2_000_000_000_000), bal.Spendable)
	assert.InDelta(t, 2.5, Credits(bal.Available), 1e-9)
}

func TestMockPublisher(t *testing.T) {
	m := &MockPublisher{
		PublishFn: func(_ context.Context, _ *wallet.Key, data []byte, _ []Tag) (*Receipt, error) {
			return &Receipt{TxID: "mock", Cost: uint64(len(data))}, nil
		},
		GetBalanceFn: func(_ context.Context, _ string) (*Balance, error) {
			return &Balance{Available: 7}, nil
		},
	}
	r, err := m.Publish(context.Background(), nil, []byte("abc"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), r.Cost)
	b, err := m.GetBalance(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), b.Available)
}
