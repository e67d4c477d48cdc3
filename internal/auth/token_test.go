package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokens_RoundTrip(t *testing.T) {
	tok, err := NewTokens("secret")
	require.NoError(t, err)

	s, err := tok.Issue(PurposeDownload, "tpl-1", "alice", time.Minute)
	require.NoError(t, err)

	claims, err := tok.Verify(s, PurposeDownload, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.User)
	assert.Equal(t, "tpl-1", claims.Subject)
}

func TestTokens_Rejects(t *testing.T) {
	tok, err := NewTokens("secret")
	require.NoError(t, err)
	s, err := tok.Issue(PurposeFill, "job-1", "", time.Minute)
	require.NoError(t, err)

	_, err = tok.Verify(s, PurposeDownload, "job-1")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tok.Verify(s, PurposeFill, "job-2")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = tok.Verify("garbage", PurposeFill, "job-1")
	assert.ErrorIs(t, err, ErrInvalidToken)

	other, err := NewTokens("other")
	require.NoError(t, err)
	_, err = other.Verify(s, PurposeFill, "job-1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_Expiry(t *testing.T) {
	tok, err := NewTokens("secret")
	require.NoError(t, err)
	now := time.Now()
	tok.now = func() time.Time { return now }

	s, err := tok.Issue(PurposeFill, "job-1", "", time.Minute)
	require.NoError(t, err)

	tok.now = func() time.Time { return now.Add(2 * time.Minute) }
	_, err = tok.Verify(s, PurposeFill, "job-1")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewTokens_RandomSecret(t *testing.T) {
	a, err := NewTokens("")
	require.NoError(t, err)
	b, err := NewTokens("")
	require.NoError(t, err)

	s, err := a.Issue(PurposeDownload, "x", "", time.Minute)
	require.NoError(t, err)
	_, err = b.Verify(s, PurposeDownload, "x")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
