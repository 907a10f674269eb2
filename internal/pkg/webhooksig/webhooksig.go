// Package webhooksig verifies the signature header the payment processor
// attaches to webhook deliveries. The header carries a unix timestamp and one
// or more HMAC-SHA256 signatures over "<timestamp>.<payload>"; the timestamp
// bounds replay of captured deliveries.
package webhooksig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTolerance is the maximum accepted clock skew between the signed
// timestamp and the receiving host.
const DefaultTolerance = 5 * time.Minute

var (
	ErrMissingSignature = errors.New("signature header is missing or malformed")
	ErrTimestampTooOld  = errors.New("signed timestamp outside tolerance")
	ErrNoMatch          = errors.New("no signature matched")
)

// Verify checks the signature header against the raw payload using the shared
// webhook secret. Header format: "t=<unix>,v1=<hex>[,v1=<hex>...]".
func Verify(payload []byte, header, secret string) error {
	return verifyAt(payload, header, secret, DefaultTolerance, time.Now())
}

func verifyAt(payload []byte, header, secret string, tolerance time.Duration, now time.Time) error {
	header = strings.TrimSpace(header)
	secret = strings.TrimSpace(secret)
	if header == "" || secret == "" {
		return ErrMissingSignature
	}

	var timestamp int64
	var candidates [][]byte
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			ts, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return ErrMissingSignature
			}
			timestamp = ts
		case "v1":
			sig, err := hex.DecodeString(strings.ToLower(value))
			if err != nil {
				continue
			}
			candidates = append(candidates, sig)
		}
	}
	if timestamp == 0 || len(candidates) == 0 {
		return ErrMissingSignature
	}

	signedAt := time.Unix(timestamp, 0)
	if now.Sub(signedAt) > tolerance || signedAt.Sub(now) > tolerance {
		return ErrTimestampTooOld
	}

	expected := computeSignature(payload, timestamp, secret)
	for _, sig := range candidates {
		if hmac.Equal(sig, expected) {
			return nil
		}
	}
	return ErrNoMatch
}

// Sign builds a valid signature header for the payload. Used by tests and the
// replay tooling.
func Sign(payload []byte, secret string, at time.Time) string {
	ts := at.Unix()
	sig := computeSignature(payload, ts, secret)
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(sig))
}

func computeSignature(payload []byte, timestamp int64, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return mac.Sum(nil)
}
