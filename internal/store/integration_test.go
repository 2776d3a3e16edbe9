package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jjenkins/bobbot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

func setupIntegrationDB(t *testing.T) *RegulationStore {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		postgres.WithDatabase("bobbot_test"),
		postgres.WithUsername("bobbot"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := NewDB(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, Migrate(db, zap.NewNop()))
	// A second run must be a no-op.
	require.NoError(t, Migrate(db, zap.NewNop()))

	return NewRegulationStore(db)
}

func TestIntegration_RegulationLifecycle(t *testing.T) {
	s := setupIntegrationDB(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)

	post := &model.RegulationPost{
		Type:       model.TypeRegulation,
		Title:      "여비규정",
		CreateDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		FileURL:    "/download.do?file_name_origin=a.hwp",
	}

	result, err := s.Upsert(ctx, post, now)
	require.NoError(t, err)
	assert.Equal(t, model.Inserted, result)

	// Same post again: nothing changes.
	result, err = s.Upsert(ctx, post, now)
	require.NoError(t, err)
	assert.Equal(t, model.Unchanged, result)

	pending, err := s.ListPendingConversion(ctx, 5)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	id := pending[0].ID

	require.NoError(t, s.SetHTMLURL(ctx, id, "[규정]여비규정_2024-03-01/index.xhtml", now))

	// An older sighting never regresses the row.
	older := *post
	older.CreateDate = post.CreateDate.AddDate(0, -1, 0)
	result, err = s.Upsert(ctx, &older, now)
	require.NoError(t, err)
	assert.Equal(t, model.Unchanged, result)

	reg, err := s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.True(t, reg.HTMLURL.Valid)

	// A newer sighting forces reconversion.
	newer := *post
	newer.CreateDate = post.CreateDate.AddDate(0, 1, 0)
	result, err = s.Upsert(ctx, &newer, now)
	require.NoError(t, err)
	assert.Equal(t, model.Updated, result)

	reg, err = s.GetByID(ctx, id)
	require.NoError(t, err)
	assert.False(t, reg.HTMLURL.Valid)
	assert.True(t, newer.CreateDate.Equal(reg.CreateDate))

	// Attempts cap hides poison rows.
	for i := 0; i < 2; i++ {
		require.NoError(t, s.RecordConversionFailure(ctx, id, "boom"))
	}
	pending, err = s.ListPendingConversion(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, pending)

	pending, err = s.ListPendingConversion(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	regs, err := s.SearchTitles(ctx, []string{"여비"}, 10)
	require.NoError(t, err)
	assert.Len(t, regs, 1)
}

func TestIntegration_NullTypeIsUnique(t *testing.T) {
	s := setupIntegrationDB(t)
	ctx := context.Background()

	post := &model.RegulationPost{
		Title:      "분류없는 문서",
		CreateDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}

	result, err := s.Upsert(ctx, post, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.Inserted, result)

	result, err = s.Upsert(ctx, post, time.Now())
	require.NoError(t, err)
	assert.Equal(t, model.Unchanged, result)

	total, _, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
