package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSignedURLSignerGenerateAndParse(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, expiresAt, err := signer.Generate("cert-1", "enr-1/cert-1.pdf")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	require.False(t, expiresAt.IsZero())

	ref, err := signer.Parse(token, false)
	require.NoError(t, err)
	require.Equal(t, "cert-1", ref.Ref)
	require.Equal(t, "enr-1/cert-1.pdf", ref.Path)
	require.WithinDuration(t, expiresAt, ref.ExpiresAt, time.Second)
}

func TestSignedURLSignerExpired(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, err := signer.GenerateUntil("cert-1", "enr-1/cert-1.pdf", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = signer.Parse(token, false)
	require.ErrorIs(t, err, ErrTokenExpired)

	ref, err := signer.Parse(token, true)
	require.NoError(t, err)
	require.Equal(t, "enr-1/cert-1.pdf", ref.Path)
}

func TestSignedURLSignerRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	token, _, err := signer.Generate("cert-1", "enr-1/cert-1.pdf")
	require.NoError(t, err)

	other := NewSignedURLSigner("other-secret", time.Hour)
	_, err = other.Parse(token, false)
	require.ErrorIs(t, err, ErrTokenSignature)

	_, err = signer.Parse("not-a-token", false)
	require.ErrorIs(t, err, ErrTokenMalformed)
}

func TestSignedURLSignerRequiresRefAndPath(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Hour)
	_, _, err := signer.Generate("", "file.pdf")
	require.Error(t, err)
	_, _, err = signer.Generate("a.b", "file.pdf")
	require.Error(t, err)
}
