package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTValidator_ValidateToken(t *testing.T) {
	validator, err := NewJWTValidator("secret", "mazenrecords")
	require.NoError(t, err)
	other, err := NewJWTValidator("other-secret", "mazenrecords")
	require.NoError(t, err)
	foreignIssuer, err := NewJWTValidator("secret", "someone-else")
	require.NoError(t, err)

	valid, err := validator.GenerateToken("user-1", time.Hour)
	require.NoError(t, err)
	expired, err := validator.GenerateToken("user-1", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := other.GenerateToken("user-1", time.Hour)
	require.NoError(t, err)
	wrongIssuer, err := foreignIssuer.GenerateToken("user-1", time.Hour)
	require.NoError(t, err)
	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "mazenrecords"},
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{name: "valid", token: valid},
		{name: "valid with bearer prefix", token: "Bearer " + valid},
		{name: "empty", token: "", wantErr: ErrMissingToken},
		{name: "expired", token: expired, wantErr: ErrExpiredToken},
		{name: "wrong key", token: wrongKey, wantErr: ErrInvalidSignature},
		{name: "wrong issuer", token: wrongIssuer, wantErr: ErrInvalidClaims},
		{name: "missing subject", token: noSubject, wantErr: ErrInvalidClaims},
		{name: "garbage", token: "not-a-token", wantErr: ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Act
			claims, err := validator.ValidateToken(tt.token)

			// Assert
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "user-1", claims.Subject)
		})
	}
}

func TestNewJWTValidator_RequiresSecret(t *testing.T) {
	_, err := NewJWTValidator("", "issuer")
	assert.Error(t, err)
}

func TestUserContext(t *testing.T) {
	// Arrange
	ctx := context.Background()

	// Act
	_, missingErr := GetUserFromContext(ctx)
	user, err := GetUserFromContext(SetUserInContext(ctx, &UserContext{UserID: "u1"}))

	// Assert
	assert.ErrorIs(t, missingErr, ErrNoUser)
	require.NoError(t, err)
	assert.Equal(t, "u1", user.UserID)
}
