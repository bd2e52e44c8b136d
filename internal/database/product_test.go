package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/listing-scraper/internal/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("Test database not configured")
	}

	db, err := New(context.Background(), Config{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	require.NoError(t, db.EnsureSchema(context.Background()))
	return db
}

func sampleRecords() []models.ProductRecord {
	return []models.ProductRecord{
		models.NewProductRecord("https://www.nike.com/t/1", models.StaticFields{
			Name:          "Nike Air Max 90",
			Category:      "Men's Shoes",
			OriginalPrice: models.String("Rp 1,849,000"),
			Reviews:       12,
			Rating:        4.5,
		}, models.DynamicFields{Sizes: []string{"US 8"}, Images: []string{"https://static.nike.com/a.png"}}),
		models.NewProductRecord("https://www.nike.com/t/2", models.StaticFields{}, models.Degraded(models.SentinelTimedOut)),
	}
}

func TestProductArgs(t *testing.T) {
	runID := uuid.New()
	records := sampleRecords()

	args, err := productArgs(runID, 0, records[0])
	require.NoError(t, err)
	require.Len(t, args, 17)

	assert.Equal(t, runID, args[0])
	assert.Equal(t, 0, args[1])
	assert.Equal(t, "https://www.nike.com/t/1", args[2])
	assert.Nil(t, args[3].(*string))

	var sizes []string
	require.NoError(t, json.Unmarshal(args[14].([]byte), &sizes))
	assert.Equal(t, []string{"US 8"}, sizes)
	assert.Nil(t, args[16].(*string))

	args, err = productArgs(runID, 1, records[1])
	require.NoError(t, err)
	assert.Equal(t, "[]", string(args[15].([]byte)))
	require.NotNil(t, args[16].(*string))
	assert.Equal(t, models.SentinelTimedOut, *args[16].(*string))
}

func TestUpsertProducts(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	runID := uuid.New()

	t.Run("snapshot is idempotent", func(t *testing.T) {
		records := sampleRecords()

		require.NoError(t, db.UpsertProducts(ctx, runID, records[:1]))
		require.NoError(t, db.UpsertProducts(ctx, runID, records))
		require.NoError(t, db.UpsertProducts(ctx, runID, records))

		n, err := db.CountProducts(ctx, runID)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("empty snapshot is a no-op", func(t *testing.T) {
		require.NoError(t, db.UpsertProducts(ctx, uuid.New(), nil))
	})
}
