package server

import (
	"strings"
	"testing"
	"time"

	"word-party/internal/protocol"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityWithoutSecretTrustsClient(t *testing.T) {
	id := newIdentity("")

	who, err := id.resolve("", "tg_42", "  Ana   Lee ")
	require.NoError(t, err)
	assert.Equal(t, caller{PlayerID: "tg_42", Name: "Ana Lee"}, who)

	generated, err := id.resolve("", "", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(generated.PlayerID, "player_"))

	_, err = id.resolve("", "bad id!", "")
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
}

func TestIdentityWithSecretRequiresToken(t *testing.T) {
	id := newIdentity("s3cret")

	_, err := id.resolve("", "p1", "Ana")
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)

	token, err := IssueToken("s3cret", "p1", "Ana", time.Minute)
	require.NoError(t, err)
	who, err := id.resolve(token, "", "")
	require.NoError(t, err)
	assert.Equal(t, caller{PlayerID: "p1", Name: "Ana"}, who)

	who, err = id.resolve(token, "p1", "Annie")
	require.NoError(t, err)
	assert.Equal(t, "Annie", who.Name, "a requested name wins over the token's")

	_, err = id.resolve(token, "p2", "")
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
}

func TestIdentityRejectsBadTokens(t *testing.T) {
	id := newIdentity("s3cret")

	forged, err := IssueToken("other", "p1", "Ana", time.Minute)
	require.NoError(t, err)
	_, err = id.resolve(forged, "", "")
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, playerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "p1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)
	_, err = id.resolve(expired, "", "")
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, playerClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "p1"},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = id.resolve(none, "", "")
	assert.ErrorIs(t, err, protocol.ErrUnauthorized)
}

func TestIssueTokenValidatesInput(t *testing.T) {
	_, err := IssueToken("", "p1", "", 0)
	assert.Error(t, err)
	_, err = IssueToken("s", "", "", 0)
	assert.Error(t, err)
}
