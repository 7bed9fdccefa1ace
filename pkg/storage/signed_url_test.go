package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignedURLRoundTrip(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, expiresAt, err := signer.Generate("upload-1", "student-1/worksheet.pdf")
	require.NoError(t, err)
	assert.True(t, expiresAt.After(time.Now()))

	id, path, _, err := signer.Parse(token, false)
	require.NoError(t, err)
	assert.Equal(t, "upload-1", id)
	assert.Equal(t, "student-1/worksheet.pdf", path)
}

func TestSignedURLRejectsTampering(t *testing.T) {
	signer := NewSignedURLSigner("secret", time.Minute)

	token, _, err := signer.Generate("upload-1", "student-1/worksheet.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token+"x", false)
	require.Error(t, err)
}

func TestSignedURLExpires(t *testing.T) {
	signer := &SignedURLSigner{secret: []byte("secret"), ttl: -time.Minute}

	token, _, err := signer.Generate("upload-1", "file.pdf")
	require.NoError(t, err)

	_, _, _, err = signer.Parse(token, false)
	require.Error(t, err)

	_, _, _, err = signer.Parse(token, true)
	require.NoError(t, err)
}

func TestSignedURLWrongSecret(t *testing.T) {
	token, _, err := NewSignedURLSigner("secret-a", time.Minute).Generate("id", "file.pdf")
	require.NoError(t, err)

	_, _, _, err = NewSignedURLSigner("secret-b", time.Minute).Parse(token, false)
	require.Error(t, err)
}
