package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/foliumhq/folium/internal/database"
	"github.com/foliumhq/folium/internal/models"
	"github.com/foliumhq/folium/internal/repositories"

	pkgauth "github.com/foliumhq/folium/pkg/auth"
)

// TestDB manages a PostgreSQL testcontainer with the schema applied.
type TestDB struct {
	Container  testcontainers.Container
	ConnString string
	Pool       *pgxpool.Pool
	DB         *database.DB
}

// SetupTestDatabase starts a PostgreSQL container and runs the embedded
// migrations against it.
func SetupTestDatabase(ctx context.Context) (*TestDB, error) {
	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:16-alpine"),
		postgres.WithDatabase("folium"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to get connection string: %w", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := database.NewFromPool(pool, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := db.Migrate(ctx); err != nil {
		pool.Close()
		container.Terminate(ctx)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &TestDB{
		Container:  container,
		ConnString: connStr,
		Pool:       pool,
		DB:         db,
	}, nil
}

// Teardown stops the container and closes the connection pool
func (db *TestDB) Teardown(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	if db.Container != nil {
		return db.Container.Terminate(ctx)
	}
	return nil
}

// CleanupTables truncates all tables for test isolation
func (db *TestDB) CleanupTables(ctx context.Context) error {
	tables := []string{
		"login_challenges",
		"credentials",
	}

	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return nil
}

// Repositories builds the repository layer over the test database.
func (db *TestDB) Repositories() (*repositories.CredentialRepository, *repositories.LoginChallengeRepository) {
	return repositories.NewCredentialRepository(db.DB), repositories.NewLoginChallengeRepository(db.DB)
}

// SeedCredential inserts a credential with a hashed password.
func SeedCredential(ctx context.Context, repo *repositories.CredentialRepository, email, password string, twoFactorSecret string) (*models.Credential, error) {
	hash, err := pkgauth.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	cred, err := repo.Create(ctx, &models.Credential{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleUser,
		Active:       true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to insert credential: %w", err)
	}

	if twoFactorSecret != "" {
		if err := repo.UpdateTwoFactor(ctx, cred.ID, true, twoFactorSecret); err != nil {
			return nil, fmt.Errorf("failed to enable 2FA: %w", err)
		}
		cred.TwoFactorEnabled = true
		cred.TwoFactorSecret = twoFactorSecret
	}

	return cred, nil
}
