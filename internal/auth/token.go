// Package auth mints and checks the short-lived tokens a browser presents
// when it opens the speech bridge for an assessment.
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
	ErrTokenFormat     = errors.New("invalid token format")
	ErrTokenSig        = errors.New("invalid token signature")
	ErrTokenExp        = errors.New("token expired")
	ErrTokenAssessment = errors.New("assessment id mismatch")
	ErrNoSecret        = errors.New("client token secret not configured")
)

// Claims is what a valid token carries.
type Claims struct {
	AssessmentID string
	Expires      time.Time
}

// Mint builds a token for assessmentID valid until exp.
// Format: base64url(assessment_id + "." + exp_unix + "." + hex(hmac_sha256(secret, assessment_id+"."+exp))).
func Mint(secret, assessmentID string, exp time.Time) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	msg := assessmentID + "." + strconv.FormatInt(exp.Unix(), 10)
	raw := msg + "." + hex.EncodeToString(sign(secret, msg))
	return base64.RawURLEncoding.EncodeToString([]byte(raw)), nil
}

// Verify checks the signature and expiry of token. When expectID is not
// empty the token must have been minted for it. skew extends the expiry to
// absorb clock drift.
func Verify(secret, token, expectID string, now time.Time, skew time.Duration) (Claims, error) {
	if secret == "" {
		return Claims{}, ErrNoSecret
	}
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Claims{}, ErrTokenFormat
	}
	// assessment ids are uuids, so the last two dots delimit exp and sig
	s := string(b)
	sigAt := strings.LastIndexByte(s, '.')
	if sigAt < 0 {
		return Claims{}, ErrTokenFormat
	}
	msg, sigHex := s[:sigAt], s[sigAt+1:]
	expAt := strings.LastIndexByte(msg, '.')
	if expAt < 0 {
		return Claims{}, ErrTokenFormat
	}
	id, expStr := msg[:expAt], msg[expAt+1:]
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil || id == "" {
		return Claims{}, ErrTokenFormat
	}
	if expectID != "" && id != expectID {
		return Claims{}, ErrTokenAssessment
	}
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return Claims{}, ErrTokenFormat
	}
	// constant-time compare
	if !hmac.Equal(sign(secret, msg), got) {
		return Claims{}, ErrTokenSig
	}
	expires := time.Unix(exp, 0)
	if now.After(expires.Add(skew)) {
		return Claims{}, ErrTokenExp
	}
	return Claims{AssessmentID: id, Expires: expires}, nil
}

func sign(secret, msg string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return mac.Sum(nil)
}
