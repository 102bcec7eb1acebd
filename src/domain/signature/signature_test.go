package signature_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/multitask/scoreboard/src/domain/signature"
)

func TestSign_KnownDigest(t *testing.T) {
	tests := []struct {
		name       string
		playerName string
		score      int64
		timestamp  int64
		secret     string
		want       string
	}{
		{
			name:       "ana",
			playerName: "Ana",
			score:      200,
			timestamp:  1710000000,
			secret:     "s3cret",
			want:       "7fdeb72ce72d1e61fce6991576c4ce378ec8f12974eb0eb82996602b2f6cf32f",
		},
		{
			name:       "ana with tampered score",
			playerName: "Ana",
			score:      201,
			timestamp:  1710000000,
			secret:     "s3cret",
			want:       "31a74b9e5398240b3890c3ad9a859d6c22235c36b99628d35d5bdc3c834744f1",
		},
		{
			name:       "alice",
			playerName: "Alice",
			score:      1234,
			timestamp:  1710000000,
			secret:     "my_secret",
			want:       "fe01a52c3847af7eacb64fe4a7d6a8e066e78d0d89e96b558c000d027032bc5a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := signature.Sign(tt.playerName, tt.score, tt.timestamp, tt.secret)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, 64)
			assert.Equal(t, strings.ToLower(got), got)
		})
	}
}

func TestNewAuthenticator_RequiresSecret(t *testing.T) {
	_, err := signature.NewAuthenticator("")
	assert.ErrorIs(t, err, signature.ErrSecretRequired)
}

func TestAuthenticator_Verify(t *testing.T) {
	auth, err := signature.NewAuthenticator("s3cret")
	require.NoError(t, err)

	sig := auth.Sign("Ana", 200, 1710000000)

	tests := []struct {
		name       string
		playerName string
		score      int64
		timestamp  int64
		claimed    string
		want       bool
	}{
		{name: "round trip", playerName: "Ana", score: 200, timestamp: 1710000000, claimed: sig, want: true},
		{name: "uppercase claim", playerName: "Ana", score: 200, timestamp: 1710000000, claimed: strings.ToUpper(sig), want: true},
		{name: "tampered score", playerName: "Ana", score: 201, timestamp: 1710000000, claimed: sig, want: false},
		{name: "tampered player", playerName: "ana", score: 200, timestamp: 1710000000, claimed: sig, want: false},
		{name: "tampered timestamp", playerName: "Ana", score: 200, timestamp: 1710000001, claimed: sig, want: false},
		{name: "truncated signature", playerName: "Ana", score: 200, timestamp: 1710000000, claimed: sig[:63], want: false},
		{name: "garbage", playerName: "Bob", score: 5678, timestamp: 1710000000, claimed: "abcd1234", want: false},
		{name: "empty", playerName: "Ana", score: 200, timestamp: 1710000000, claimed: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, auth.Verify(tt.playerName, tt.score, tt.timestamp, tt.claimed))
		})
	}
}

func TestAuthenticator_SecretRotationInvalidatesSignatures(t *testing.T) {
	oldAuth, err := signature.NewAuthenticator("old")
	require.NoError(t, err)
	newAuth, err := signature.NewAuthenticator("new")
	require.NoError(t, err)

	sig := oldAuth.Sign("Luis", 180, 1710000000)
	assert.True(t, oldAuth.Verify("Luis", 180, 1710000000, sig))
	assert.False(t, newAuth.Verify("Luis", 180, 1710000000, sig))
}

func TestSign_SeparatorsPreventFieldShifting(t *testing.T) {
	// "Ana1" with score 0 must not collide with "Ana" with score 10.
	a := signature.Sign("Ana1", 0, 5, "k")
	b := signature.Sign("Ana", 10, 5, "k")
	assert.NotEqual(t, a, b)
}
