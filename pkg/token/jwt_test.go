package token

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionRoundTrip(t *testing.T) {
	m := NewSessionManager("secret", time.Hour)
	sid, tok, err := m.NewSession()
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	got, err := m.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, sid, got)
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	tok, err := NewSessionManager("one", time.Hour).Sign("abc")
	require.NoError(t, err)

	_, err = NewSessionManager("two", time.Hour).Verify(tok)
	assert.Error(t, err)
}

func TestVerifyRejectsExpired(t *testing.T) {
	m := NewSessionManager("secret", -time.Minute)
	tok, err := m.Sign("abc")
	require.NoError(t, err)

	_, err = m.Verify(tok)
	assert.Error(t, err)
}

func TestGenerateRandomString(t *testing.T) {
	a, err := GenerateRandomString(16)
	require.NoError(t, err)
	b, err := GenerateRandomString(16)
	require.NoError(t, err)
	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)
}

func TestGenerateRandomStringFailsWithoutRandomness(t *testing.T) {
	orig := randRead
	randRead = func([]byte) (int, error) { return 0, errors.New("entropy unavailable") }
	t.Cleanup(func() { randRead = orig })

	tok, err := GenerateRandomString(16)
	assert.Error(t, err)
	assert.Empty(t, tok)
}
