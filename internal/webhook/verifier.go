// Package webhook verifies and parses payment provider webhook deliveries.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/utafrali/commerce-engine/pkg/errors"
)

// Verifier authenticates a raw webhook delivery.
type Verifier interface {
	Verify(payload []byte, headers http.Header) error
}

// StripeSignatureHeader carries the Stripe timestamp and signatures.
const StripeSignatureHeader = "Stripe-Signature"

// StripeVerifier checks Stripe-Signature headers of the form
// "t=<unix>,v1=<hex>[,v1=<hex>...]". The signed content is "<t>.<payload>".
type StripeVerifier struct {
	secret    []byte
	tolerance time.Duration
	now       func() time.Time
}

// NewStripeVerifier creates a Stripe verifier. A zero tolerance disables the
// timestamp check.
func NewStripeVerifier(secret string, tolerance time.Duration) *StripeVerifier {
	return &StripeVerifier{secret: []byte(secret), tolerance: tolerance, now: time.Now}
}

// WithClock overrides the clock used for the tolerance check.
func (v *StripeVerifier) WithClock(now func() time.Time) *StripeVerifier {
	v.now = now
	return v
}

// Verify implements Verifier.
func (v *StripeVerifier) Verify(payload []byte, headers http.Header) error {
	header := headers.Get(StripeSignatureHeader)
	if header == "" {
		return apperrors.Unauthorized("missing webhook signature")
	}

	var (
		timestamp  string
		signatures [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "t":
			timestamp = value
		case "v1":
			if sig, err := hex.DecodeString(value); err == nil {
				signatures = append(signatures, sig)
			}
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return apperrors.Unauthorized("malformed webhook signature")
	}

	unix, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return apperrors.Unauthorized("malformed webhook signature")
	}
	if v.tolerance > 0 {
		skew := v.now().Sub(time.Unix(unix, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > v.tolerance {
			return apperrors.Unauthorized("webhook signature timestamp outside tolerance")
		}
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range signatures {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return apperrors.Unauthorized("invalid webhook signature")
}

// DefaultSignatureHeader is where HMACVerifier looks when no header is set.
const DefaultSignatureHeader = "X-Webhook-Signature"

// HMACVerifier checks a hex HMAC-SHA256 of the raw payload carried in a
// header. An optional "sha256=" prefix is accepted.
type HMACVerifier struct {
	secret []byte
	header string
}

// NewHMACVerifier creates a verifier reading the signature from header.
func NewHMACVerifier(secret, header string) *HMACVerifier {
	if header == "" {
		header = DefaultSignatureHeader
	}
	return &HMACVerifier{secret: []byte(secret), header: header}
}

// Verify implements Verifier.
func (v *HMACVerifier) Verify(payload []byte, headers http.Header) error {
	value := strings.TrimPrefix(strings.TrimSpace(headers.Get(v.header)), "sha256=")
	if value == "" {
		return apperrors.Unauthorized("missing webhook signature")
	}
	sig, err := hex.DecodeString(value)
	if err != nil {
		return apperrors.Unauthorized("malformed webhook signature")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), sig) {
		return apperrors.Unauthorized("invalid webhook signature")
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of payload. Senders and tests use it to
// produce HMACVerifier signatures.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// StripeSignature returns a Stripe-Signature header value for payload signed
// at t.
func StripeSignature(secret string, t time.Time, payload []byte) string {
	ts := strconv.FormatInt(t.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}
