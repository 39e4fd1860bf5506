// Package initdata validates signed identity payloads received from the
// Telegram Mini App web view and extracts the user identity from them.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

var (
	ErrMissingSignature = errors.New("MISSING_SIGNATURE")
	ErrInvalidSignature = errors.New("INVALID_SIGNATURE")
	ErrMalformedPayload = errors.New("MALFORMED_PAYLOAD")
)

// InitData holds the validated, non-signature fields of an identity payload.
// Values that parse as JSON are decoded so structured sub-objects (e.g. the
// embedded user record) travel as one field; everything else stays a string.
type InitData map[string]interface{}

// ValidationError wraps every validation failure in a single typed error
// carrying the underlying reason. Callers never receive partially-validated
// data alongside it.
type ValidationError struct {
	Reason error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("initdata validation failed: %v", e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

func validationFailed(reason error) error {
	return &ValidationError{Reason: reason}
}

// Validate verifies the HMAC signature of a raw initData query string against
// the bot token and returns the decoded fields. Pure function; the token and
// derived key are never logged.
func Validate(raw, botToken string) (InitData, error) {
	params, err := url.ParseQuery(raw)
	if err != nil {
		return nil, validationFailed(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}

	received := params.Get("hash")
	if received == "" {
		return nil, validationFailed(ErrMissingSignature)
	}

	expected := Sign(params, botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(received))) {
		return nil, validationFailed(ErrInvalidSignature)
	}

	result := make(InitData, len(params))
	for key, values := range params {
		if key == "hash" || len(values) == 0 {
			continue
		}
		var decoded interface{}
		if err := json.Unmarshal([]byte(values[0]), &decoded); err == nil {
			result[key] = decoded
		} else {
			result[key] = values[0]
		}
	}

	return result, nil
}

// Sign computes the lowercase hex HMAC-SHA-256 signature over the canonical
// form of params: non-hash fields sorted lexicographically by key and joined
// as key=value lines. The signing key is the SHA-256 digest of the bot token.
func Sign(params url.Values, botToken string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, 0, len(keys))
	for _, key := range keys {
		lines = append(lines, key+"="+params.Get(key))
	}
	canonical := strings.Join(lines, "\n")

	secretKey := sha256.Sum256([]byte(botToken))
	mac := hmac.New(sha256.New, secretKey[:])
	mac.Write([]byte(canonical))
	return hex.EncodeToString(mac.Sum(nil))
}
