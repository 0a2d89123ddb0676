package signature

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	// SecretPrefix marks base64 encoded Standard Webhooks secrets
	SecretPrefix = "whsec_"

	// SignatureVersion is the only scheme accepted (symmetric HMAC-SHA256)
	SignatureVersion = "v1"

	MinSecretBytes = 24
	MaxSecretBytes = 64

	HeaderID        = "webhook-id"
	HeaderTimestamp = "webhook-timestamp"
	HeaderSignature = "webhook-signature"

	// DefaultTolerance bounds the clock skew between sender and receiver
	DefaultTolerance = 5 * time.Minute
)

var (
	ErrMissingHeaders = errors.New("missing webhook headers")
	ErrTimestamp      = errors.New("webhook timestamp outside tolerance")
	ErrNoMatch        = errors.New("no matching signature")
)

// Secret is an HMAC key
type Secret struct {
	raw     []byte
	encoded string
}

// GenerateSecret creates a random whsec_ secret of the given size in bytes
func GenerateSecret(size int) (Secret, error) {
	if size < MinSecretBytes || size > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return Secret{}, fmt.Errorf("generating random bytes: %w", err)
	}
	return Secret{raw: b, encoded: SecretPrefix + base64.StdEncoding.EncodeToString(b)}, nil
}

// ParseSecret decodes a whsec_ secret
func ParseSecret(encoded string) (Secret, error) {
	if !strings.HasPrefix(encoded, SecretPrefix) {
		return Secret{}, fmt.Errorf("secret must start with %s prefix", SecretPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(encoded, SecretPrefix))
	if err != nil {
		return Secret{}, fmt.Errorf("decoding base64 secret: %w", err)
	}
	if len(raw) < MinSecretBytes || len(raw) > MaxSecretBytes {
		return Secret{}, fmt.Errorf("secret size must be between %d and %d bytes", MinSecretBytes, MaxSecretBytes)
	}
	return Secret{raw: raw, encoded: encoded}, nil
}

/* SecretFromString accepts both forms found in tenant configuration
 * whsec_ values are decoded, anything else is used as raw key bytes
 */
func SecretFromString(s string) (Secret, error) {
	if strings.HasPrefix(s, SecretPrefix) {
		return ParseSecret(s)
	}
	if s == "" {
		return Secret{}, fmt.Errorf("secret cannot be empty")
	}
	return Secret{raw: []byte(s), encoded: s}, nil
}

func (s Secret) String() string {
	return s.encoded
}

func (s Secret) Bytes() []byte {
	return s.raw
}

// Signature is one entry of the webhook-signature header, "v1,<base64>"
type Signature struct {
	Version   string
	Signature string
}

func (s Signature) String() string {
	return s.Version + "," + s.Signature
}

func ParseSignature(sig string) (Signature, error) {
	version, value, ok := strings.Cut(sig, ",")
	if !ok {
		return Signature{}, fmt.Errorf("invalid signature format, expected 'version,signature'")
	}
	return Signature{Version: version, Signature: value}, nil
}

// Sign computes the signature over "{msgID}.{unix timestamp}.{payload}"
func Sign(secret Secret, msgID string, timestamp time.Time, payload []byte) (Signature, error) {
	if strings.Contains(msgID, ".") {
		return Signature{}, fmt.Errorf("message ID must not contain '.'")
	}
	mac := hmac.New(sha256.New, secret.Bytes())
	mac.Write([]byte(msgID + "." + strconv.FormatInt(timestamp.Unix(), 10) + "."))
	mac.Write(payload)
	return Signature{
		Version:   SignatureVersion,
		Signature: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
	}, nil
}

// Verify compares in constant time
func Verify(secret Secret, msgID string, timestamp time.Time, payload []byte, expected Signature) (bool, error) {
	if expected.Version != SignatureVersion {
		return false, fmt.Errorf("unsupported signature version: %s", expected.Version)
	}
	calculated, err := Sign(secret, msgID, timestamp, payload)
	if err != nil {
		return false, fmt.Errorf("calculating signature: %w", err)
	}
	want, err := base64.StdEncoding.DecodeString(expected.Signature)
	if err != nil {
		return false, fmt.Errorf("decoding expected signature: %w", err)
	}
	got, _ := base64.StdEncoding.DecodeString(calculated.Signature)
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}

// ParseSignatureHeader splits the space delimited list used during secret rotation
func ParseSignatureHeader(header string) ([]Signature, error) {
	if header == "" {
		return nil, fmt.Errorf("signature header is empty")
	}
	var sigs []Signature
	for _, part := range strings.Fields(header) {
		sig, err := ParseSignature(part)
		if err != nil {
			return nil, fmt.Errorf("parsing signature '%s': %w", part, err)
		}
		sigs = append(sigs, sig)
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("no valid signatures found in header")
	}
	return sigs, nil
}

func BuildSignatureHeader(signatures []Signature) string {
	parts := make([]string, len(signatures))
	for i, sig := range signatures {
		parts[i] = sig.String()
	}
	return strings.Join(parts, " ")
}

// Headers returns the three headers an outbound delivery carries
func Headers(secret Secret, msgID string, timestamp time.Time, payload []byte) (http.Header, error) {
	sig, err := Sign(secret, msgID, timestamp, payload)
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set(HeaderID, msgID)
	h.Set(HeaderTimestamp, strconv.FormatInt(timestamp.Unix(), 10))
	h.Set(HeaderSignature, sig.String())
	return h, nil
}

/* VerifyRequest checks an inbound request against the secret
 * The timestamp must be within tolerance of now; any listed v1 signature may match
 */
func VerifyRequest(secret Secret, headers http.Header, payload []byte, now time.Time, tolerance time.Duration) error {
	msgID := headers.Get(HeaderID)
	rawTS := headers.Get(HeaderTimestamp)
	rawSig := headers.Get(HeaderSignature)
	if msgID == "" || rawTS == "" || rawSig == "" {
		return ErrMissingHeaders
	}
	unix, err := strconv.ParseInt(rawTS, 10, 64)
	if err != nil {
		return fmt.Errorf("parsing timestamp: %w", err)
	}
	ts := time.Unix(unix, 0)
	if d := now.Sub(ts); d > tolerance || d < -tolerance {
		return ErrTimestamp
	}
	sigs, err := ParseSignatureHeader(rawSig)
	if err != nil {
		return err
	}
	for _, sig := range sigs {
		if ok, err := Verify(secret, msgID, ts, payload, sig); err == nil && ok {
			return nil
		}
	}
	return ErrNoMatch
}
