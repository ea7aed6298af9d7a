// Package auth mints and checks the HMAC token that lets a client
// attach its websocket to one specific call.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
	"time"
)

var (
	ErrTokenFormat = errors.New("invalid token format")
	ErrTokenSig    = errors.New("invalid token signature")
	ErrTokenExp    = errors.New("token expired")
	ErrTokenCall   = errors.New("call id mismatch")
)

// MintCallToken builds a bearer token bound to a call ID and expiry.
// Format: base64url(call_id + "." + exp_unix + "." + hex(hmac_sha256(secret, call_id+"."+exp))).
func MintCallToken(secret, callID string, expUnix int64) string {
	msg := callID + "." + strconv.FormatInt(expUnix, 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	sig := hex.EncodeToString(mac.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(msg + "." + sig))
}

// ValidateCallToken checks signature, call binding and expiry (with
// skew) and returns the embedded call ID.
func ValidateCallToken(secret, token, expectCallID string, now time.Time, skewSeconds int) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", ErrTokenFormat
	}
	parts := strings.Split(string(b), ".")
	if len(parts) != 3 {
		return "", ErrTokenFormat
	}
	callID, expStr, sigHex := parts[0], parts[1], parts[2]

	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return "", ErrTokenFormat
	}
	if expectCallID != "" && callID != expectCallID {
		return "", ErrTokenCall
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(callID + "." + expStr))
	want := mac.Sum(nil)
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return "", ErrTokenFormat
	}
	if !hmac.Equal(want, got) {
		return "", ErrTokenSig
	}

	if now.Unix() > exp+int64(skewSeconds) {
		return "", ErrTokenExp
	}
	return callID, nil
}
