package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/apperr"
	"eventhub/internal/models"
	"eventhub/internal/security"
)

func newAuthService(t *testing.T) (*AuthService, *memAccounts, *security.TokenManager) {
	t.Helper()
	accounts := newMemAccounts()
	tokens := security.NewTokenManager("test-secret", 24*time.Hour)
	return NewAuthService(accounts, plainHasher{}, tokens, zerolog.Nop()), accounts, tokens
}

func TestRegisterThenLogin(t *testing.T) {
	svc, accounts, tokens := newAuthService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, RegisterInput{Role: models.RoleAdmin, Name: "Alice", Email: " Alice@Example.com ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", account.Email)
	assert.Nil(t, account.CurrentToken)
	assert.NotEqual(t, []byte("password1"), account.PasswordHash)

	res, err := svc.Login(ctx, models.RoleAdmin, "alice@example.com", "password1")
	require.NoError(t, err)

	claims, err := tokens.Verify(res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, models.RoleAdmin, claims.Role)

	stored, err := accounts.FindByEmail(ctx, models.RoleAdmin, "alice@example.com")
	require.NoError(t, err)
	assert.True(t, stored.HoldsToken(res.Token))
	assert.WithinDuration(t, time.Now().Add(24*time.Hour), *stored.TokenExpiresAt, time.Minute)
}

func TestLoginFailures(t *testing.T) {
	svc, _, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Role: models.RoleUser, Name: "Bob Smith", Email: "bob@example.com", Password: "Secret#123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, models.RoleUser, "bob@example.com", "Secret#124")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.Login(ctx, models.RoleUser, "nobody@example.com", "Secret#123")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	// accounts live in separate collections per role
	_, err = svc.Login(ctx, models.RoleAdmin, "bob@example.com", "Secret#123")
	assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))

	_, err = svc.Login(ctx, models.RoleUser, "", "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestLoginSupersedesPreviousToken(t *testing.T) {
	svc, accounts, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Role: models.RoleAdmin, Name: "Alice", Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)

	first, err := svc.Login(ctx, models.RoleAdmin, "alice@example.com", "password1")
	require.NoError(t, err)
	second, err := svc.Login(ctx, models.RoleAdmin, "alice@example.com", "password1")
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	stored, err := accounts.FindByEmail(ctx, models.RoleAdmin, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, stored.HoldsToken(first.Token))
	assert.True(t, stored.HoldsToken(second.Token))
}

func TestLoginTokenStoreFailure(t *testing.T) {
	svc, accounts, _ := newAuthService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Role: models.RoleAdmin, Name: "Alice", Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)

	accounts.setErr = errStorage
	_, err = svc.Login(ctx, models.RoleAdmin, "alice@example.com", "password1")
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.ErrorIs(t, err, errStorage)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, accounts, _ := newAuthService(t)
	ctx := context.Background()

	first, err := svc.Register(ctx, RegisterInput{Role: models.RoleAdmin, Name: "Alice", Email: "alice@example.com", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Role: models.RoleAdmin, Name: "Mallory", Email: "ALICE@example.com", Password: "password2"})
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	stored, err := accounts.FindByEmail(ctx, models.RoleAdmin, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, "Alice", stored.Name)

	_, err = svc.Login(ctx, models.RoleAdmin, "alice@example.com", "password1")
	assert.NoError(t, err)
}

func TestRegisterValidation(t *testing.T) {
	long := strings.Repeat("a", 73)

	tests := []struct {
		name  string
		input RegisterInput
		ok    bool
	}{
		{"admin minimal password", RegisterInput{Role: models.RoleAdmin, Name: "Alice", Email: "a@x.com", Password: "12345678"}, true},
		{"admin short password", RegisterInput{Role: models.RoleAdmin, Name: "Alice", Email: "a@x.com", Password: "1234567"}, false},
		{"admin name with space", RegisterInput{Role: models.RoleAdmin, Name: "Alice B", Email: "a@x.com", Password: "12345678"}, false},
		{"admin name with digit", RegisterInput{Role: models.RoleAdmin, Name: "Alice1", Email: "a@x.com", Password: "12345678"}, false},
		{"admin empty name", RegisterInput{Role: models.RoleAdmin, Name: "", Email: "a@x.com", Password: "12345678"}, false},
		{"bad email", RegisterInput{Role: models.RoleAdmin, Name: "Alice", Email: "not-an-email", Password: "12345678"}, false},
		{"password too long", RegisterInput{Role: models.RoleAdmin, Name: "Alice", Email: "a@x.com", Password: long}, false},
		{"user strong password", RegisterInput{Role: models.RoleUser, Name: "Bob Smith", Email: "b@x.com", Password: "Secret#12"}, true},
		{"user missing special", RegisterInput{Role: models.RoleUser, Name: "Bob", Email: "b@x.com", Password: "Secret123"}, false},
		{"user missing upper", RegisterInput{Role: models.RoleUser, Name: "Bob", Email: "b@x.com", Password: "secret#12"}, false},
		{"user missing digit", RegisterInput{Role: models.RoleUser, Name: "Bob", Email: "b@x.com", Password: "Secret#ab"}, false},
		{"user blank name", RegisterInput{Role: models.RoleUser, Name: "   ", Email: "b@x.com", Password: "Secret#12"}, false},
		{"unknown role", RegisterInput{Role: "owner", Name: "Eve", Email: "e@x.com", Password: "Secret#12"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _, _ := newAuthService(t)
			_, err := svc.Register(context.Background(), tt.input)
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		})
	}
}
