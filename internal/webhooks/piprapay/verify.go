package piprapaywebhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	pkgerrors "github.com/promptstudio-ai/promptstudio-backend/pkg/errors"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 digest of the raw body.
	SignatureHeader = "x-piprapay-signature"
	// APIKeyHeader carries the shared key for deployments without signing.
	APIKeyHeader = "mh-piprapay-api-key"
)

// Verifier authenticates inbound webhook deliveries. Signature verification
// wins when both the header and a secret are present; otherwise the shared
// API key is required.
type Verifier struct {
	secret []byte
	apiKey []byte
}

// NewVerifier builds a verifier from the configured credentials. At least one
// of secret or apiKey must be set; config.Load enforces this at startup, this
// check guards direct construction.
func NewVerifier(secret, apiKey string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	apiKey = strings.TrimSpace(apiKey)
	if secret == "" && apiKey == "" {
		return nil, errors.New("webhook secret or api key is required")
	}
	return &Verifier{
		secret: []byte(secret),
		apiKey: []byte(apiKey),
	}, nil
}

// Verify authenticates the request from its headers and exact raw body bytes.
func (v *Verifier) Verify(headers http.Header, body []byte) error {
	signature := strings.TrimSpace(headers.Get(SignatureHeader))
	if signature != "" && len(v.secret) > 0 {
		if !v.signatureMatches(signature, body) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "invalid webhook signature")
		}
		return nil
	}

	key := strings.TrimSpace(headers.Get(APIKeyHeader))
	if key == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "missing webhook credentials")
	}
	if len(v.apiKey) == 0 || subtle.ConstantTimeCompare([]byte(key), v.apiKey) != 1 {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid webhook api key")
	}
	return nil
}

func (v *Verifier) signatureMatches(signature string, body []byte) bool {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
