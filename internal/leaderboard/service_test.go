package leaderboard

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opennirman/nirmanwatch/internal/database"
)

func newTestService(t *testing.T) (*Service, *database.Repository) {
	t.Helper()

	db, err := database.NewDB(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := database.NewRepository(db)
	return NewService(repo), repo
}

func seedContractor(t *testing.T, repo *database.Repository, id string, overall float64) {
	t.Helper()

	now := time.Now()
	require.NoError(t, repo.CreateUser(&database.User{
		ID:        id,
		Name:      "Contractor " + id,
		Email:     id + "@example.com",
		Role:      database.RoleContractor,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	require.NoError(t, repo.WithTx(func(tx *sql.Tx) error {
		return repo.UpsertRatingTx(tx, &database.ContractorRating{
			ContractorID:  id,
			OverallRating: overall,
			LastUpdated:   now,
		})
	}))
}

func TestTopContractorsOrdering(t *testing.T) {
	svc, repo := newTestService(t)

	seedContractor(t, repo, "con-low", 2.5)
	seedContractor(t, repo, "con-high", 4.8)
	seedContractor(t, repo, "con-mid", 3.9)

	response, err := svc.TopContractors(10)
	require.NoError(t, err)
	require.Len(t, response.Entries, 3)

	assert.Equal(t, "con-high", response.Entries[0].ContractorID)
	assert.Equal(t, 1, response.Entries[0].Rank)
	assert.Equal(t, "con-mid", response.Entries[1].ContractorID)
	assert.Equal(t, 2, response.Entries[1].Rank)
	assert.Equal(t, "con-low", response.Entries[2].ContractorID)
	assert.Equal(t, 3, response.Entries[2].Rank)
}

func TestTopContractorsLimitClamped(t *testing.T) {
	svc, repo := newTestService(t)
	seedContractor(t, repo, "con-1", 4.0)

	// Zero and oversized limits fall back to sane page sizes
	response, err := svc.TopContractors(0)
	require.NoError(t, err)
	assert.Equal(t, 1, response.Total)

	response, err = svc.TopContractors(5000)
	require.NoError(t, err)
	assert.Equal(t, 1, response.Total)
}

func TestTopContractorsServedFromCache(t *testing.T) {
	svc, repo := newTestService(t)
	seedContractor(t, repo, "con-1", 4.0)

	first, err := svc.TopContractors(10)
	require.NoError(t, err)
	require.Len(t, first.Entries, 1)

	// A new contractor does not appear until the cache is invalidated
	seedContractor(t, repo, "con-2", 4.9)

	cached, err := svc.TopContractors(10)
	require.NoError(t, err)
	assert.Len(t, cached.Entries, 1)

	svc.Invalidate()

	fresh, err := svc.TopContractors(10)
	require.NoError(t, err)
	assert.Len(t, fresh.Entries, 2)
	assert.Equal(t, "con-2", fresh.Entries[0].ContractorID)
}

func TestContractorRank(t *testing.T) {
	svc, repo := newTestService(t)
	seedContractor(t, repo, "con-1", 4.0)
	seedContractor(t, repo, "con-2", 4.9)

	entry, err := svc.ContractorRank("con-1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Equal(t, 2, entry.Rank)

	missing, err := svc.ContractorRank("con-unknown")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
