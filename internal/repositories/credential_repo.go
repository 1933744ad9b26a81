package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/foliumhq/folium/internal/database"
	"github.com/foliumhq/folium/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

const credentialColumns = `id, email, password_hash, role, active, failed_attempt_count, locked_until, two_factor_enabled, two_factor_secret, last_totp_step, created_at, updated_at`

// CredentialRepository is the persistence side of the credential store
// contract. failed_attempt_count and locked_until are written only through
// IncrementFailedAttempts and ResetFailedAttempts.
type CredentialRepository struct {
	pool *pgxpool.Pool
}

func NewCredentialRepository(db *database.DB) *CredentialRepository {
	return &CredentialRepository{pool: db.Pool}
}

// rowScanner covers both pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCredentialRow(scanner rowScanner) (*models.Credential, error) {
	var cred models.Credential
	var lockedUntil *time.Time
	var secret *string

	err := scanner.Scan(
		&cred.ID, &cred.Email, &cred.PasswordHash, &cred.Role, &cred.Active,
		&cred.FailedAttemptCount, &lockedUntil,
		&cred.TwoFactorEnabled, &secret, &cred.LastTOTPStep,
		&cred.CreatedAt, &cred.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	cred.LockedUntil = lockedUntil
	if secret != nil {
		cred.TwoFactorSecret = *secret
	}

	return &cred, nil
}

func (r *CredentialRepository) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE email = $1`, credentialColumns)
	return scanCredentialRow(r.pool.QueryRow(ctx, query, email))
}

func (r *CredentialRepository) GetByID(ctx context.Context, id string) (*models.Credential, error) {
	query := fmt.Sprintf(`SELECT %s FROM credentials WHERE id = $1`, credentialColumns)
	return scanCredentialRow(r.pool.QueryRow(ctx, query, id))
}

func (r *CredentialRepository) Create(ctx context.Context, cred *models.Credential) (*models.Credential, error) {
	cred.ID = uuid.New().String()

	now := time.Now()
	cred.CreatedAt = now
	cred.UpdatedAt = now

	if cred.Role == "" {
		cred.Role = models.RoleUser
	}

	query := fmt.Sprintf(`
		INSERT INTO credentials (id, email, password_hash, role, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING %s
	`, credentialColumns)

	return scanCredentialRow(r.pool.QueryRow(ctx, query,
		cred.ID, cred.Email, cred.PasswordHash, cred.Role, cred.Active,
		cred.CreatedAt, cred.UpdatedAt,
	))
}

// IncrementFailedAttempts bumps the failure counter for an identity and, if
// the new count reaches maxAttempts, sets locked_until. A lapsed lock means
// the previous window is over, so the counter restarts at 1. The row lock
// makes concurrent attempts for the same identity linearizable; the
// read-increment-write never happens in application code.
func (r *CredentialRepository) IncrementFailedAttempts(ctx context.Context, email string, maxAttempts int, lockedUntil time.Time) (*models.Credential, error) {
	query := fmt.Sprintf(`
		WITH prev AS (
			SELECT id,
			       CASE WHEN locked_until IS NOT NULL AND locked_until <= now()
			            THEN 0
			            ELSE failed_attempt_count
			       END AS base
			FROM credentials
			WHERE email = $1
			FOR UPDATE
		)
		UPDATE credentials c SET
			failed_attempt_count = prev.base + 1,
			locked_until = CASE WHEN prev.base + 1 >= $2 THEN $3 ELSE NULL END,
			updated_at = now()
		FROM prev
		WHERE c.id = prev.id
		RETURNING %s
	`, prefixColumns("c."))

	return scanCredentialRow(r.pool.QueryRow(ctx, query, email, maxAttempts, lockedUntil))
}

// ResetFailedAttempts zeroes the counter and clears any lock. Called only
// after a successful full login.
func (r *CredentialRepository) ResetFailedAttempts(ctx context.Context, id string) error {
	query := `
		UPDATE credentials
		SET failed_attempt_count = 0, locked_until = NULL, updated_at = now()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// AdvanceTOTPStep records the time step of an accepted TOTP code. Returns
// false when the step does not advance, which means the code (or an older
// one) was already redeemed.
func (r *CredentialRepository) AdvanceTOTPStep(ctx context.Context, id string, step int64) (bool, error) {
	query := `
		UPDATE credentials
		SET last_totp_step = $2, updated_at = now()
		WHERE id = $1 AND last_totp_step < $2
	`

	result, err := r.pool.Exec(ctx, query, id, step)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return result.RowsAffected() > 0, nil
}

// UpdateTwoFactor writes the enrollment state. An empty secret stores NULL
// and resets the replay step so a future re-enrollment starts clean.
func (r *CredentialRepository) UpdateTwoFactor(ctx context.Context, id string, enabled bool, secret string) error {
	var secretParam *string
	if secret != "" {
		secretParam = &secret
	}

	query := `
		UPDATE credentials
		SET two_factor_enabled = $2,
		    two_factor_secret = $3,
		    last_totp_step = CASE WHEN $3::text IS NULL THEN 0 ELSE last_totp_step END,
		    updated_at = now()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, enabled, secretParam)
	if err != nil {
		return database.MapPostgresError(err)
	}
	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// prefixColumns qualifies the shared column list for queries that join.
func prefixColumns(prefix string) string {
	return prefix + "id, " + prefix + "email, " + prefix + "password_hash, " + prefix + "role, " +
		prefix + "active, " + prefix + "failed_attempt_count, " + prefix + "locked_until, " +
		prefix + "two_factor_enabled, " + prefix + "two_factor_secret, " + prefix + "last_totp_step, " +
		prefix + "created_at, " + prefix + "updated_at"
}
