package qstash

import (
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	SignatureHeader = "Upstash-Signature"
	signatureIssuer = "Upstash"
	clockLeeway     = 5 * time.Second
)

var (
	ErrSigningKeysMissing = errors.New("qstash signing keys are not configured")
	ErrInvalidSignature   = errors.New("qstash signature is invalid")
)

// SigningConfig holds the keys used to verify pushed deliveries. It is read
// separately from Config so a receiver does not need a publish token.
type SigningConfig struct {
	CurrentSigningKey string `split_words:"true"`
	NextSigningKey    string `split_words:"true"`
}

// Enabled reports whether any signing key is set.
func (c SigningConfig) Enabled() bool {
	return strings.TrimSpace(c.CurrentSigningKey) != "" || strings.TrimSpace(c.NextSigningKey) != ""
}

// Receiver verifies Upstash-Signature headers on pushed deliveries.
type Receiver struct {
	currentSigningKey string
	nextSigningKey    string
}

func NewReceiver(cfg SigningConfig) (*Receiver, error) {
	if !cfg.Enabled() {
		return nil, ErrSigningKeysMissing
	}
	return &Receiver{
		currentSigningKey: strings.TrimSpace(cfg.CurrentSigningKey),
		nextSigningKey:    strings.TrimSpace(cfg.NextSigningKey),
	}, nil
}

type signatureClaims struct {
	Body string `json:"body"`
	jwt.RegisteredClaims
}

// CanVerify reports whether at least one signing key is configured.
func (r *Receiver) CanVerify() bool {
	return r != nil && (r.currentSigningKey != "" || r.nextSigningKey != "")
}

// Verify checks a delivery signature against the current key and then the
// next key, so deliveries keep verifying across a key rotation. An empty
// destination skips the subject check.
func (r *Receiver) Verify(signature string, body []byte, destination string) error {
	if !r.CanVerify() {
		return ErrSigningKeysMissing
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("%w: missing %s header", ErrInvalidSignature, SignatureHeader)
	}

	var lastErr error
	for _, key := range []string{r.currentSigningKey, r.nextSigningKey} {
		if key == "" {
			continue
		}
		if err := verifyWithKey(key, signature, body, destination); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrInvalidSignature, lastErr)
}

func verifyWithKey(key, signature string, body []byte, destination string) error {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(signatureIssuer),
		jwt.WithLeeway(clockLeeway),
		jwt.WithExpirationRequired(),
	}
	if destination != "" {
		opts = append(opts, jwt.WithSubject(destination))
	}

	var claims signatureClaims
	_, err := jwt.ParseWithClaims(signature, &claims, func(*jwt.Token) (any, error) {
		return []byte(key), nil
	}, opts...)
	if err != nil {
		return err
	}

	sum := sha256.Sum256(body)
	want := strings.TrimRight(base64.URLEncoding.EncodeToString(sum[:]), "=")
	if strings.TrimRight(claims.Body, "=") != want {
		return errors.New("body hash mismatch")
	}
	return nil
}
