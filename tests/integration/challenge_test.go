//go:build integration

package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/foliumhq/folium/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestChallengeConsumedExactlyOnce races many consumers against one
// challenge; the consumed_at IS NULL predicate must let exactly one through.
func TestChallengeConsumedExactlyOnce(t *testing.T) {
	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	credRepo, challengeRepo := testDB.Repositories()

	cred, err := SeedCredential(ctx, credRepo, "race@example.com", "Correct-Horse1", "")
	require.NoError(t, err)

	challenge := &models.LoginChallenge{
		ID:           uuid.New().String(),
		CredentialID: cred.ID,
		RefHash:      "deadbeef",
		ExpiresAt:    time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, challengeRepo.Create(ctx, challenge))

	const consumers = 10
	var wg sync.WaitGroup
	wins := make(chan bool, consumers)

	for i := 0; i < consumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := challengeRepo.Consume(ctx, challenge.ID)
			assert.NoError(t, err)
			wins <- ok
		}()
	}
	wg.Wait()
	close(wins)

	winners := 0
	for won := range wins {
		if won {
			winners++
		}
	}
	assert.Equal(t, 1, winners)
}

func TestExpiredChallengeCannotBeConsumed(t *testing.T) {
	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	credRepo, challengeRepo := testDB.Repositories()

	cred, err := SeedCredential(ctx, credRepo, "expired@example.com", "Correct-Horse1", "")
	require.NoError(t, err)

	challenge := &models.LoginChallenge{
		ID:           uuid.New().String(),
		CredentialID: cred.ID,
		RefHash:      "cafebabe",
		ExpiresAt:    time.Now().Add(-time.Second),
	}
	require.NoError(t, challengeRepo.Create(ctx, challenge))

	ok, err := challengeRepo.Consume(ctx, challenge.ID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeleteExpiredPurgesDeadChallenges(t *testing.T) {
	ctx := context.Background()

	testDB, err := SetupTestDatabase(ctx)
	require.NoError(t, err)
	defer testDB.Teardown(ctx)

	credRepo, challengeRepo := testDB.Repositories()

	cred, err := SeedCredential(ctx, credRepo, "purge@example.com", "Correct-Horse1", "")
	require.NoError(t, err)

	live := &models.LoginChallenge{
		ID:           uuid.New().String(),
		CredentialID: cred.ID,
		RefHash:      "live",
		ExpiresAt:    time.Now().Add(5 * time.Minute),
	}
	dead := &models.LoginChallenge{
		ID:           uuid.New().String(),
		CredentialID: cred.ID,
		RefHash:      "dead",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}
	require.NoError(t, challengeRepo.Create(ctx, live))
	require.NoError(t, challengeRepo.Create(ctx, dead))

	deleted, err := challengeRepo.DeleteExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = challengeRepo.GetByRefHash(ctx, "live")
	assert.NoError(t, err)
}
