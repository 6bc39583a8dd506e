package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"eventhub/internal/apperr"
	"eventhub/internal/ids"
	"eventhub/internal/models"
	"eventhub/internal/repository"
)

var errInvalidCredentials = apperr.Unauthorized("Invalid credentials")

type AccountStore interface {
	Create(ctx context.Context, account models.Account) (models.Account, error)
	FindByEmail(ctx context.Context, role models.Role, email string) (models.Account, error)
	SetToken(ctx context.Context, role models.Role, id string, token string, expiresAt time.Time) error
}

type PasswordHasher interface {
	Hash(ctx context.Context, password string) ([]byte, error)
	Verify(ctx context.Context, password string, hash []byte) (bool, error)
}

type TokenIssuer interface {
	Issue(email string, role models.Role) (string, time.Time, error)
}

type AuthService struct {
	accounts AccountStore
	hasher   PasswordHasher
	tokens   TokenIssuer
	log      zerolog.Logger
}

func NewAuthService(accounts AccountStore, hasher PasswordHasher, tokens TokenIssuer, log zerolog.Logger) *AuthService {
	return &AuthService{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
		log:      log.With().Str("component", "auth").Logger(),
	}
}

type RegisterInput struct {
	Role     models.Role
	Name     string
	Email    string
	Password string
}

type adminRegistration struct {
	Name     string `json:"name" validate:"required,adminname"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,pwbytes"`
}

type userRegistration struct {
	Name     string `json:"name" validate:"required,username"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,pwbytes,strongpw"`
}

// Register creates an account with no session token. The unique index on
// email decides duplicate races.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (models.Account, error) {
	input.Email = normalizeEmail(input.Email)

	var err error
	switch input.Role {
	case models.RoleAdmin:
		err = validateStruct(adminRegistration{Name: input.Name, Email: input.Email, Password: input.Password})
	case models.RoleUser:
		err = validateStruct(userRegistration{Name: input.Name, Email: input.Email, Password: input.Password})
	default:
		return models.Account{}, apperr.Validation("Unknown account type")
	}
	if err != nil {
		return models.Account{}, err
	}

	hash, err := s.hasher.Hash(ctx, input.Password)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindInternal, "hash password", err)
	}

	account, err := s.accounts.Create(ctx, models.Account{
		ID:           ids.New(),
		Role:         input.Role,
		Name:         input.Name,
		Email:        input.Email,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return models.Account{}, apperr.Conflict("Email already exists")
		}
		return models.Account{}, apperr.Wrap(apperr.KindInternal, "create account", err)
	}

	s.log.Info().Str("role", string(account.Role)).Str("account_id", account.ID).Msg("account registered")
	return account, nil
}

// Authenticate checks credentials without touching the session token.
func (s *AuthService) Authenticate(ctx context.Context, role models.Role, email string, password string) (models.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return models.Account{}, apperr.Validation("Email and password are required")
	}

	account, err := s.accounts.FindByEmail(ctx, role, email)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return models.Account{}, errInvalidCredentials
		}
		return models.Account{}, apperr.Wrap(apperr.KindInternal, "find account", err)
	}

	ok, err := s.hasher.Verify(ctx, password, account.PasswordHash)
	if err != nil {
		return models.Account{}, apperr.Wrap(apperr.KindInternal, "verify password", err)
	}
	if !ok {
		return models.Account{}, errInvalidCredentials
	}
	return account, nil
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	Account   models.Account
}

// Login issues a fresh token and stores it on the account, which supersedes
// whatever token the account held before.
func (s *AuthService) Login(ctx context.Context, role models.Role, email string, password string) (LoginResult, error) {
	account, err := s.Authenticate(ctx, role, email, password)
	if err != nil {
		return LoginResult{}, err
	}

	token, expiresAt, err := s.tokens.Issue(account.Email, account.Role)
	if err != nil {
		return LoginResult{}, apperr.Wrap(apperr.KindInternal, "issue token", err)
	}

	if err := s.accounts.SetToken(ctx, account.Role, account.ID, token, expiresAt); err != nil {
		return LoginResult{}, apperr.Wrap(apperr.KindInternal, "store token", err)
	}
	account.CurrentToken = &token
	account.TokenExpiresAt = &expiresAt

	return LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		Account:   account,
	}, nil
}
