package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"eventhub/internal/models"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrEmailTaken      = errors.New("email already registered")
)

const uniqueViolation = "23505"

// AccountRepository stores admins and users in two tables with the same
// shape. The table is picked from the role, never from caller input.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func tableFor(role models.Role) (string, error) {
	switch role {
	case models.RoleAdmin:
		return "admins", nil
	case models.RoleUser:
		return "users", nil
	default:
		return "", fmt.Errorf("unknown account role %q", role)
	}
}

func (r *AccountRepository) Create(ctx context.Context, account models.Account) (models.Account, error) {
	table, err := tableFor(account.Role)
	if err != nil {
		return models.Account{}, err
	}

	query := `
		INSERT INTO ` + table + ` (id, name, email, password_hash, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING created_at
	`

	row := r.pool.QueryRow(ctx, query,
		account.ID,
		account.Name,
		account.Email,
		account.PasswordHash,
	)
	if err := row.Scan(&account.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return models.Account{}, ErrEmailTaken
		}
		return models.Account{}, fmt.Errorf("insert %s: %w", table, err)
	}
	return account, nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, role models.Role, email string) (models.Account, error) {
	table, err := tableFor(role)
	if err != nil {
		return models.Account{}, err
	}

	query := `
		SELECT id, name, email, password_hash, current_token, token_expires_at, created_at
		FROM ` + table + ` WHERE email = $1
	`

	row := r.pool.QueryRow(ctx, query, email)
	account := models.Account{Role: role}
	if err := row.Scan(
		&account.ID,
		&account.Name,
		&account.Email,
		&account.PasswordHash,
		&account.CurrentToken,
		&account.TokenExpiresAt,
		&account.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, ErrAccountNotFound
		}
		return models.Account{}, fmt.Errorf("select %s: %w", table, err)
	}
	return account, nil
}

// SetToken replaces the account's session token, which invalidates any
// token issued before it.
func (r *AccountRepository) SetToken(ctx context.Context, role models.Role, id string, token string, expiresAt time.Time) error {
	table, err := tableFor(role)
	if err != nil {
		return err
	}

	query := `UPDATE ` + table + ` SET current_token = $2, token_expires_at = $3 WHERE id = $1`
	cmd, err := r.pool.Exec(ctx, query, id, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update %s token: %w", table, err)
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ClearExpiredTokens drops stored tokens whose expiry has passed and
// returns how many accounts were touched across both tables.
func (r *AccountRepository) ClearExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	for _, role := range []models.Role{models.RoleAdmin, models.RoleUser} {
		table, _ := tableFor(role)
		query := `
			UPDATE ` + table + `
			SET current_token = NULL, token_expires_at = NULL
			WHERE token_expires_at IS NOT NULL AND token_expires_at < $1
		`
		cmd, err := r.pool.Exec(ctx, query, now)
		if err != nil {
			return total, fmt.Errorf("clear %s tokens: %w", table, err)
		}
		total += cmd.RowsAffected()
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
