package repositories

import (
	"context"
	"time"

	"github.com/foliumhq/folium/internal/database"
	"github.com/foliumhq/folium/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginChallengeRepository persists pending-2FA markers. A challenge row is
// created when password verification succeeds for a 2FA-enabled credential
// and is consumed exactly once by a successful code verification.
type LoginChallengeRepository struct {
	pool *pgxpool.Pool
}

func NewLoginChallengeRepository(db *database.DB) *LoginChallengeRepository {
	return &LoginChallengeRepository{pool: db.Pool}
}

func (r *LoginChallengeRepository) Create(ctx context.Context, challenge *models.LoginChallenge) error {
	query := `
		INSERT INTO login_challenges (id, credential_id, ref_hash, attempts, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	challenge.CreatedAt = time.Now()
	_, err := r.pool.Exec(ctx, query,
		challenge.ID, challenge.CredentialID, challenge.RefHash,
		challenge.Attempts, challenge.ExpiresAt, challenge.CreatedAt,
	)
	return database.MapPostgresError(err)
}

func (r *LoginChallengeRepository) GetByRefHash(ctx context.Context, refHash string) (*models.LoginChallenge, error) {
	query := `
		SELECT id, credential_id, ref_hash, attempts, expires_at, consumed_at, created_at
		FROM login_challenges WHERE ref_hash = $1
	`

	var challenge models.LoginChallenge
	err := r.pool.QueryRow(ctx, query, refHash).Scan(
		&challenge.ID, &challenge.CredentialID, &challenge.RefHash,
		&challenge.Attempts, &challenge.ExpiresAt, &challenge.ConsumedAt, &challenge.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &challenge, nil
}

// Consume marks the challenge redeemed. Concurrent verifications race on the
// consumed_at IS NULL predicate, so exactly one caller sees true.
func (r *LoginChallengeRepository) Consume(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE login_challenges
		SET consumed_at = now()
		WHERE id = $1 AND consumed_at IS NULL AND expires_at > now()
	`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return false, database.MapPostgresError(err)
	}
	return result.RowsAffected() > 0, nil
}

// RecordFailure counts a wrong code against the challenge's own budget.
// Returns true when the budget is exhausted, in which case the challenge is
// deleted and the client has to restart from the password step.
func (r *LoginChallengeRepository) RecordFailure(ctx context.Context, id string, maxAttempts int) (bool, error) {
	query := `
		UPDATE login_challenges
		SET attempts = attempts + 1
		WHERE id = $1 AND consumed_at IS NULL
		RETURNING attempts
	`

	var attempts int
	if err := r.pool.QueryRow(ctx, query, id).Scan(&attempts); err != nil {
		return false, database.MapPostgresError(err)
	}

	if attempts >= maxAttempts {
		if _, err := r.pool.Exec(ctx, `DELETE FROM login_challenges WHERE id = $1`, id); err != nil {
			return true, database.MapPostgresError(err)
		}
		return true, nil
	}

	return false, nil
}

// DeleteExpired purges challenges that can never be redeemed again. Expiry is
// enforced at read time; this only keeps the table small.
func (r *LoginChallengeRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM login_challenges WHERE expires_at <= now() OR consumed_at IS NOT NULL`

	result, err := r.pool.Exec(ctx, query)
	if err != nil {
		return 0, database.MapPostgresError(err)
	}
	return result.RowsAffected(), nil
}
