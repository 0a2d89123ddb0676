package meta_test

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"testing"

	"github.com/marcelsud/webhook-flow/webhook"
	"github.com/marcelsud/webhook-flow/webhook/provider/meta"
	"github.com/stretchr/testify/assert"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func TestAdapter_HandleChallenge(t *testing.T) {
	t.Run("success - json body challenge", func(t *testing.T) {
		a := meta.New("")
		body := []byte(`{"mode":"subscribe","challenge":"abc123","verify_token":"t"}`)

		c := a.HandleChallenge(url.Values{}, body, http.Header{})

		assert.True(t, c.IsChallenge)
		assert.Equal(t, "abc123", c.Response)
		assert.False(t, c.Denied)
	})

	t.Run("success - query challenge with matching token", func(t *testing.T) {
		a := meta.New("t")
		q := url.Values{"hub.mode": {"subscribe"}, "hub.challenge": {"1158201444"}, "hub.verify_token": {"t"}}

		c := a.HandleChallenge(q, nil, http.Header{})

		assert.Equal(t, webhook.Challenge{IsChallenge: true, Response: "1158201444", ContentType: "text/plain"}, c)
	})

	t.Run("success - replay yields the same answer", func(t *testing.T) {
		a := meta.New("t")
		body := []byte(`{"mode":"subscribe","challenge":"abc123","verify_token":"t"}`)

		assert.Equal(t, a.HandleChallenge(nil, body, nil), a.HandleChallenge(nil, body, nil))
	})

	t.Run("denied - wrong verify token", func(t *testing.T) {
		a := meta.New("expected")
		q := url.Values{"hub.mode": {"subscribe"}, "hub.challenge": {"x"}, "hub.verify_token": {"other"}}

		c := a.HandleChallenge(q, nil, http.Header{})

		assert.True(t, c.IsChallenge)
		assert.True(t, c.Denied)
		assert.Empty(t, c.Response)
	})

	t.Run("regular delivery is not a challenge", func(t *testing.T) {
		a := meta.New("")
		c := a.HandleChallenge(url.Values{}, []byte(`{"object":"page","entry":[]}`), http.Header{})
		assert.False(t, c.IsChallenge)
	})
}

func TestAdapter_VerifySignature(t *testing.T) {
	a := meta.New("")
	body := []byte(`{"object":"page"}`)

	t.Run("success - valid signature", func(t *testing.T) {
		h := http.Header{}
		h.Set(meta.SignatureHeader, sign("app-secret", body))
		assert.True(t, a.VerifySignature(body, h, "app-secret"))
	})

	t.Run("error - wrong secret", func(t *testing.T) {
		h := http.Header{}
		h.Set(meta.SignatureHeader, sign("other", body))
		assert.False(t, a.VerifySignature(body, h, "app-secret"))
	})

	t.Run("error - tampered body", func(t *testing.T) {
		h := http.Header{}
		h.Set(meta.SignatureHeader, sign("app-secret", body))
		assert.False(t, a.VerifySignature([]byte(`{"object":"user"}`), h, "app-secret"))
	})

	t.Run("error - missing header", func(t *testing.T) {
		assert.False(t, a.VerifySignature(body, http.Header{}, "app-secret"))
	})

	t.Run("error - not hex", func(t *testing.T) {
		h := http.Header{}
		h.Set(meta.SignatureHeader, "sha256=zz")
		assert.False(t, a.VerifySignature(body, h, "app-secret"))
	})
}

func TestAdapter_Normalize(t *testing.T) {
	a := meta.New("")

	t.Run("messenger message", func(t *testing.T) {
		body := []byte(`{"object":"page","entry":[{"id":"PAGE","time":1700000000000,"messaging":[
			{"sender":{"id":"PSID-1"},"recipient":{"id":"PAGE"},"timestamp":1700000000000,
			 "message":{"mid":"m_1","text":"hello"}}]}]}`)

		e := a.Normalize(body, http.Header{}, "t1")

		assert.Equal(t, meta.EventMessage, e.Type)
		assert.Equal(t, "m_1", e.ID)
		assert.Equal(t, "PSID-1", e.CustomerID)
		assert.Equal(t, "t1", e.TenantID)
		assert.Equal(t, "hello", e.Data["text"])
		assert.Equal(t, int64(1700000000000), e.Timestamp.UnixMilli())
		assert.Equal(t, "page", e.Metadata["object"])
		assert.NotContains(t, e.Metadata, meta.BatchSizeKey)
	})

	t.Run("batched delivery records its size", func(t *testing.T) {
		body := []byte(`{"object":"page","entry":[
			{"id":"PAGE","messaging":[
				{"sender":{"id":"PSID-1"},"message":{"mid":"m_1","text":"first"}},
				{"sender":{"id":"PSID-2"},"message":{"mid":"m_2","text":"second"}}]},
			{"id":"PAGE","messaging":[
				{"sender":{"id":"PSID-3"},"message":{"mid":"m_3","text":"third"}}]}]}`)

		e := a.Normalize(body, http.Header{}, "t1")

		assert.Equal(t, "m_1", e.ID)
		assert.Equal(t, "3", e.Metadata[meta.BatchSizeKey])
		assert.Equal(t, body, e.Raw)
	})

	t.Run("messenger postback", func(t *testing.T) {
		body := []byte(`{"object":"page","entry":[{"id":"PAGE","messaging":[
			{"sender":{"id":"PSID-2"},"recipient":{"id":"PAGE"},"postback":{"title":"Start","payload":"GET_STARTED"}}]}]}`)

		e := a.Normalize(body, http.Header{}, "t1")

		assert.Equal(t, meta.EventPostback, e.Type)
		assert.Equal(t, "GET_STARTED", e.Data["payload"])
	})

	t.Run("whatsapp text message", func(t *testing.T) {
		body := []byte(`{"object":"whatsapp_business_account","entry":[{"id":"WABA","changes":[{"field":"messages","value":{
			"messaging_product":"whatsapp","metadata":{"phone_number_id":"PN"},
			"messages":[{"from":"5511999","id":"wamid.1","timestamp":"1700000000","type":"text","text":{"body":"oi"}}]}}]}]}`)

		e := a.Normalize(body, http.Header{}, "t1")

		assert.Equal(t, meta.EventMessage, e.Type)
		assert.Equal(t, "wamid.1", e.ID)
		assert.Equal(t, "5511999", e.CustomerID)
		assert.Equal(t, "oi", e.Data["text"])
		assert.Equal(t, "PN", e.Data["phone_number_id"])
		assert.Equal(t, int64(1700000000), e.Timestamp.Unix())
	})

	t.Run("whatsapp status", func(t *testing.T) {
		body := []byte(`{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{
			"statuses":[{"id":"wamid.2","status":"read","recipient_id":"5511"}]}}]}]}`)

		e := a.Normalize(body, http.Header{}, "t1")

		assert.Equal(t, meta.EventMessageStatus, e.Type)
		assert.Equal(t, "read", e.Data["status"])
	})

	t.Run("malformed payload falls back to unknown", func(t *testing.T) {
		e := a.Normalize([]byte(`{not json`), http.Header{}, "t1")

		assert.Equal(t, webhook.UnknownEvent, e.Type)
		assert.Empty(t, e.Data)
		assert.Equal(t, []byte(`{not json`), e.Raw)
		assert.Equal(t, meta.Provider, e.Provider)
	})

	t.Run("unrecognized envelope falls back to unknown", func(t *testing.T) {
		e := a.Normalize([]byte(`{"object":"page","entry":[{"id":"P"}]}`), http.Header{}, "t1")
		assert.Equal(t, webhook.UnknownEvent, e.Type)
		assert.Equal(t, "P", e.Metadata["entry_id"])
	})
}
