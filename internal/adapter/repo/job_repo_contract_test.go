package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mentorapi/internal/domain"
)

func newGormRepo(t *testing.T) domain.JobRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	r := NewJobRepositoryGorm(db)
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

func jobStores() map[string]func(t *testing.T) domain.JobRepository {
	return map[string]func(t *testing.T) domain.JobRepository{
		"memory": func(*testing.T) domain.JobRepository { return NewMemoryJobRepository() },
		"gorm":   newGormRepo,
	}
}

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func pendingJob() *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:              uuid.NewString(),
		PromptOriginal:  "고양이",
		PromptEffective: "a cat",
		Model:           "veo3.1",
		AspectRatio:     "1280:720",
		DurationSeconds: 6,
		State:           domain.JobStatePending,
		CreatedAt:       baseTime,
		UpdatedAt:       baseTime,
	}
}

func TestJobRepositories_Lifecycle(t *testing.T) {
	for name, open := range jobStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			job := pendingJob()
			require.NoError(t, store.Create(ctx, job))

			ok, err := store.MarkSubmitted(ctx, job.ID, "task-1", baseTime.Add(time.Second))
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.MarkSubmitted(ctx, job.ID, "task-2", baseTime.Add(2*time.Second))
			require.NoError(t, err)
			assert.False(t, ok, "second submission must not rebind the task")

			got, err := store.GetByProviderTaskID(ctx, "task-1")
			require.NoError(t, err)
			assert.Equal(t, job.ID, got.ID)
			assert.Equal(t, domain.JobStateRunning, got.State)

			ok, err = store.UpdateProgress(ctx, job.ID, 40, baseTime.Add(3*time.Second))
			require.NoError(t, err)
			assert.True(t, ok)
			ok, err = store.UpdateProgress(ctx, job.ID, 20, baseTime.Add(4*time.Second))
			require.NoError(t, err)
			assert.False(t, ok, "progress must not go backwards")

			ok, err = store.UpdateTerminal(ctx, job.ID, domain.Succeeded("https://cdn.test/v.mp4"), baseTime.Add(5*time.Second))
			require.NoError(t, err)
			assert.True(t, ok)

			ok, err = store.UpdateTerminal(ctx, job.ID, domain.Failed(domain.ErrorCodeProviderFailed, "late"), baseTime.Add(6*time.Second))
			require.NoError(t, err)
			assert.False(t, ok, "terminal state is write-once")

			ok, err = store.UpdateProgress(ctx, job.ID, 90, baseTime.Add(7*time.Second))
			require.NoError(t, err)
			assert.False(t, ok)

			final, err := store.GetByID(ctx, job.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.JobStateSucceeded, final.State)
			assert.Equal(t, "https://cdn.test/v.mp4", domain.Deref(final.ResultURL))
			assert.Nil(t, final.ErrorCode)
			require.NotNil(t, final.ProgressPercent)
			assert.Equal(t, 40, *final.ProgressPercent)
		})
	}
}

func TestJobRepositories_NotFoundAndDuplicates(t *testing.T) {
	for name, open := range jobStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			_, err := store.GetByID(ctx, uuid.NewString())
			assert.ErrorIs(t, err, domain.ErrNotFound)
			_, err = store.GetByProviderTaskID(ctx, "missing")
			assert.ErrorIs(t, err, domain.ErrNotFound)
			assert.ErrorIs(t, store.MarkCancelRequested(ctx, uuid.NewString(), baseTime), domain.ErrNotFound)

			job := pendingJob()
			require.NoError(t, store.Create(ctx, job))
			assert.ErrorIs(t, store.Create(ctx, job), domain.ErrDuplicateOperation)

			_, err = store.UpdateTerminal(ctx, job.ID, domain.TerminalUpdate{State: domain.JobStateRunning}, baseTime)
			assert.ErrorIs(t, err, domain.ErrInvalidTransition)
		})
	}
}

func TestJobRepositories_CancelRequestIsSticky(t *testing.T) {
	for name, open := range jobStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)
			job := pendingJob()
			require.NoError(t, store.Create(ctx, job))

			require.NoError(t, store.MarkCancelRequested(ctx, job.ID, baseTime.Add(time.Minute)))
			require.NoError(t, store.MarkCancelRequested(ctx, job.ID, baseTime.Add(time.Hour)))

			got, err := store.GetByID(ctx, job.ID)
			require.NoError(t, err)
			require.NotNil(t, got.CancelRequestedAt)
			assert.True(t, got.CancelRequestedAt.Equal(baseTime.Add(time.Minute)))
		})
	}
}

func TestJobRepositories_ListActive(t *testing.T) {
	for name, open := range jobStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			var ids []string
			for i := 0; i < 3; i++ {
				job := pendingJob()
				require.NoError(t, store.Create(ctx, job))
				_, err := store.MarkSubmitted(ctx, job.ID, uuid.NewString(), baseTime.Add(time.Duration(i)*time.Minute))
				require.NoError(t, err)
				ids = append(ids, job.ID)
			}
			_, err := store.UpdateTerminal(ctx, ids[0], domain.Failed(domain.ErrorCodeProviderFailed, "x"), baseTime)
			require.NoError(t, err)
			require.NoError(t, store.Create(ctx, pendingJob()))

			active, err := store.ListActive(ctx, baseTime.Add(10*time.Minute), 10)
			require.NoError(t, err)
			require.Len(t, active, 2)
			assert.Equal(t, ids[1], active[0].ID)
			assert.Equal(t, ids[2], active[1].ID)

			limited, err := store.ListActive(ctx, baseTime.Add(10*time.Minute), 1)
			require.NoError(t, err)
			assert.Len(t, limited, 1)

			none, err := store.ListActive(ctx, baseTime.Add(30*time.Second), 10)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestJobRepositories_MarkCheckedRotatesActive(t *testing.T) {
	for name, open := range jobStores() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := open(t)

			var ids []string
			for i := 0; i < 2; i++ {
				job := pendingJob()
				require.NoError(t, store.Create(ctx, job))
				_, err := store.MarkSubmitted(ctx, job.ID, uuid.NewString(), baseTime.Add(time.Duration(i)*time.Minute))
				require.NoError(t, err)
				ids = append(ids, job.ID)
			}
			cutoff := baseTime.Add(time.Hour)

			first, err := store.ListActive(ctx, cutoff, 1)
			require.NoError(t, err)
			require.Len(t, first, 1)
			assert.Equal(t, ids[0], first[0].ID)

			require.NoError(t, store.MarkChecked(ctx, ids[0], baseTime.Add(5*time.Minute)))

			second, err := store.ListActive(ctx, cutoff, 1)
			require.NoError(t, err)
			require.Len(t, second, 1)
			assert.Equal(t, ids[1], second[0].ID)

			// A check is not a transition.
			got, err := store.GetByID(ctx, ids[0])
			require.NoError(t, err)
			assert.True(t, got.UpdatedAt.Equal(baseTime))

			// Recently checked jobs are not stale yet.
			stale, err := store.ListActive(ctx, baseTime.Add(3*time.Minute), 10)
			require.NoError(t, err)
			require.Len(t, stale, 1)
			assert.Equal(t, ids[1], stale[0].ID)

			require.NoError(t, store.MarkChecked(ctx, "missing", baseTime))
		})
	}
}

func TestMemoryJobRepository_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryJobRepository()
	job := pendingJob()
	require.NoError(t, store.Create(ctx, job))

	job.State = domain.JobStateFailed
	got, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatePending, got.State)

	got.PromptEffective = "mutated"
	again, err := store.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "a cat", again.PromptEffective)
}
