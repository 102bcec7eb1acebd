// Package signature authenticates score submissions coming from untrusted game clients.
//
// A signature is the lowercase hex SHA-256 digest of
//
//	playerName + "|" + score + "|" + timestamp + secret
//
// where score and timestamp are rendered as base-10 integers and the secret is appended
// without a separator. Clients reproduce the message byte for byte.
package signature

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// ErrSecretRequired is returned when an Authenticator is built without a shared secret.
var ErrSecretRequired = errors.New("signature secret is required")

const separator = "|"

// Sign returns the hex digest binding the submission fields to secret.
func Sign(playerName string, score, timestamp int64, secret string) string {
	var b strings.Builder
	b.Grow(len(playerName) + len(secret) + 2*len(separator) + 40)
	b.WriteString(playerName)
	b.WriteString(separator)
	b.WriteString(strconv.FormatInt(score, 10))
	b.WriteString(separator)
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteString(secret)

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Authenticator signs and verifies submissions with a single process-wide secret.
type Authenticator struct {
	secret string
}

// NewAuthenticator returns an Authenticator bound to secret, or ErrSecretRequired when the
// secret is empty.
func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	return &Authenticator{secret: secret}, nil
}

// Sign is the package-level Sign with the authenticator's secret.
func (a *Authenticator) Sign(playerName string, score, timestamp int64) string {
	return Sign(playerName, score, timestamp, a.secret)
}

// Verify reports whether claimed is the signature of the given fields. The claimed value is
// normalized to the lowercase form produced by Sign before the exact comparison.
func (a *Authenticator) Verify(playerName string, score, timestamp int64, claimed string) bool {
	expected := a.Sign(playerName, score, timestamp)
	normalized := strings.ToLower(strings.TrimSpace(claimed))
	return subtle.ConstantTimeCompare([]byte(expected), []byte(normalized)) == 1
}
