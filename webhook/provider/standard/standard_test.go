package standard_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/marcelsud/webhook-flow/webhook"
	"github.com/marcelsud/webhook-flow/webhook/provider/standard"
	"github.com/marcelsud/webhook-flow/webhook/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapter_VerifySignature(t *testing.T) {
	now := time.Unix(1700000000, 0)
	a := standard.NewWithClock(func() time.Time { return now })
	body := []byte(`{"type":"invoice.paid","timestamp":"2023-11-14T22:13:20Z","data":{"id":"inv_1"}}`)

	secret, err := signature.GenerateSecret(32)
	require.NoError(t, err)

	t.Run("success - whsec secret", func(t *testing.T) {
		h, err := signature.Headers(secret, "msg_1", now, body)
		require.NoError(t, err)
		assert.True(t, a.VerifySignature(body, h, secret.String()))
	})

	t.Run("success - raw secret", func(t *testing.T) {
		raw, err := signature.SecretFromString("plain-shared-secret")
		require.NoError(t, err)
		h, err := signature.Headers(raw, "msg_2", now, body)
		require.NoError(t, err)
		assert.True(t, a.VerifySignature(body, h, "plain-shared-secret"))
	})

	t.Run("error - stale timestamp", func(t *testing.T) {
		h, err := signature.Headers(secret, "msg_3", now.Add(-10*time.Minute), body)
		require.NoError(t, err)
		assert.False(t, a.VerifySignature(body, h, secret.String()))
	})

	t.Run("error - missing headers", func(t *testing.T) {
		assert.False(t, a.VerifySignature(body, http.Header{}, secret.String()))
	})

	t.Run("error - empty secret", func(t *testing.T) {
		h, err := signature.Headers(secret, "msg_4", now, body)
		require.NoError(t, err)
		assert.False(t, a.VerifySignature(body, h, ""))
	})
}

func TestAdapter_Normalize(t *testing.T) {
	a := standard.New()

	t.Run("envelope", func(t *testing.T) {
		h := http.Header{}
		h.Set(signature.HeaderID, "msg_1")
		body := []byte(`{"type":"user.created","timestamp":"2024-01-02T03:04:05Z","data":{"customer_id":"c1","email":"a@b.c"}}`)

		e := a.Normalize(body, h, "t1")

		assert.Equal(t, "user.created", e.Type)
		assert.Equal(t, "msg_1", e.ID)
		assert.Equal(t, "c1", e.CustomerID)
		assert.Equal(t, "a@b.c", e.Data["email"])
		assert.Equal(t, 2024, e.Timestamp.Year())
	})

	t.Run("invalid envelope keeps the raw payload", func(t *testing.T) {
		e := a.Normalize([]byte(`{"data":{}}`), http.Header{}, "t1")

		assert.Equal(t, webhook.UnknownEvent, e.Type)
		assert.Empty(t, e.Data)
		assert.Equal(t, []byte(`{"data":{}}`), e.Raw)
	})

	t.Run("no challenge", func(t *testing.T) {
		assert.False(t, a.HandleChallenge(nil, []byte(`{}`), nil).IsChallenge)
	})
}
