package security

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager(testSecret, "voluntia-test", time.Hour)

	token, err := tm.GenerateAccessToken(7, "staff@example.org", []string{"admin"})
	require.NoError(t, err)

	claims, err := tm.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int32(7), claims.UserID)
	assert.Equal(t, "staff@example.org", claims.Email)
	assert.True(t, claims.HasRole("admin"))
	assert.False(t, claims.HasRole("member"))
	assert.NotEmpty(t, claims.ID)
}

func TestTokenManager_Rejects(t *testing.T) {
	tm := NewTokenManager(testSecret, "voluntia-test", time.Hour)

	t.Run("Expired", func(t *testing.T) {
		expired := &tokenManager{secret: []byte(testSecret), issuer: "voluntia-test", ttl: time.Minute,
			now: func() time.Time { return time.Now().Add(-time.Hour) }}
		token, err := expired.GenerateAccessToken(1, "a@b.c", nil)
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("WrongSecret", func(t *testing.T) {
		other := NewTokenManager("ffffffffffffffffffffffffffffffff", "voluntia-test", time.Hour)
		token, err := other.GenerateAccessToken(1, "a@b.c", nil)
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		other := NewTokenManager(testSecret, "someone-else", time.Hour)
		token, err := other.GenerateAccessToken(1, "a@b.c", nil)
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("WrongType", func(t *testing.T) {
		claims := UserClaims{UserID: 1, Type: "refresh", RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "voluntia-test",
			Audience:  jwt.ClaimStrings{accessAudience},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		}}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		_, err = tm.ValidateToken(token)
		assert.ErrorIs(t, err, ErrWrongTokenType)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := tm.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(4)

	hash, err := h.Hash("s3cret-pass")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret-pass", hash)
	assert.NoError(t, h.Compare(hash, "s3cret-pass"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), ErrPasswordMismatch)
}

func TestGenerateTempPassword(t *testing.T) {
	p, err := GenerateTempPassword(12)
	require.NoError(t, err)
	assert.Len(t, p, 14) // 12 characters plus two separators
	assert.Equal(t, 3, len(strings.Split(p, "-")))
	for _, r := range strings.ReplaceAll(p, "-", "") {
		assert.True(t, strings.ContainsRune(tempPasswordAlphabet, r), "unexpected rune %q", r)
	}

	other, err := GenerateTempPassword(12)
	require.NoError(t, err)
	assert.NotEqual(t, p, other)

	_, err = GenerateTempPassword(4)
	assert.Error(t, err)
}

func TestCredentialIssuer_Issue(t *testing.T) {
	hasher := NewPasswordHasher(4)
	issuer := NewCredentialIssuer(hasher, 12)

	cred, err := issuer.Issue()
	require.NoError(t, err)
	assert.NotEmpty(t, cred.Plain)
	assert.NoError(t, hasher.Compare(cred.Hash, cred.Plain))
}
