package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIssuer_EmptySecret(t *testing.T) {
	_, err := NewIssuer("")
	assert.Error(t, err)
}

func TestIssuer_RoundTrip(t *testing.T) {
	iss, err := NewIssuer("s3cret")
	require.NoError(t, err)

	tok, err := iss.Issue("u1", time.Hour)
	require.NoError(t, err)

	uid, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestIssuer_NoExpiry(t *testing.T) {
	iss, err := NewIssuer("s3cret")
	require.NoError(t, err)

	tok, err := iss.Issue("u1", 0)
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(24 * 365 * time.Hour) }
	uid, err := iss.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)
}

func TestIssuer_Expired(t *testing.T) {
	iss, err := NewIssuer("s3cret")
	require.NoError(t, err)

	tok, err := iss.Issue("u1", time.Minute)
	require.NoError(t, err)

	iss.now = func() time.Time { return time.Now().Add(time.Hour) }
	_, err = iss.Verify(tok)
	assert.Error(t, err)
}

func TestIssuer_WrongSecret(t *testing.T) {
	a, err := NewIssuer("one")
	require.NoError(t, err)
	b, err := NewIssuer("two")
	require.NoError(t, err)

	tok, err := a.Issue("u1", time.Hour)
	require.NoError(t, err)

	_, err = b.Verify(tok)
	assert.Error(t, err)
}

func TestIssuer_EmptyUser(t *testing.T) {
	iss, err := NewIssuer("s3cret")
	require.NoError(t, err)

	_, err = iss.Issue("", time.Hour)
	assert.Error(t, err)
}

func TestIssuer_Garbage(t *testing.T) {
	iss, err := NewIssuer("s3cret")
	require.NoError(t, err)

	_, err = iss.Verify("not-a-jwt")
	assert.Error(t, err)
}
