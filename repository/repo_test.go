package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lecture-gen/constant"
)

func newMockRepo(t *testing.T) (JobRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	r, err := NewRepo(db, false)
	require.NoError(t, err)
	return r, mock
}

const (
	advanceSQL = `UPDATE "jobs" SET "status"=\$1,"updated_at"=\$2 WHERE .*user_id = \$3 AND run_id = \$4 AND status >= \$5 AND status < \$6`
	failSQL    = `UPDATE "jobs" SET "status"=\$1,"updated_at"=\$2 WHERE .*user_id = \$3 AND run_id = \$4 AND status BETWEEN \$5 AND \$6`
)

func TestRepo_FindJobByUserId(t *testing.T) {
	ctx := context.Background()
	runId := uuid.New()
	now := time.Now().UTC()

	t.Run("found", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT \* FROM "jobs" WHERE user_id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "status", "video_id", "run_id", "pdf_url", "created_at", "updated_at"}).
				AddRow("user-1", 3, nil, runId.String(), "https://example.com/a.pdf", now, now))

		job, err := r.FindJobByUserId(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, constant.JobStatusExtractingText, job.Status)
		assert.Equal(t, runId, job.RunId)
		assert.Nil(t, job.VideoId)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectQuery(`SELECT \* FROM "jobs" WHERE user_id = \$1`).
			WillReturnRows(sqlmock.NewRows([]string{"user_id"}))

		_, err := r.FindJobByUserId(ctx, "user-1")
		assert.ErrorIs(t, err, ErrJobNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepo_QueueJobUpsertsSingleRecord(t *testing.T) {
	r, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "jobs" .+ ON CONFLICT \("user_id"\) DO UPDATE SET "pdf_url"=\$\d+,"run_id"=\$\d+,"status"=\$\d+,"updated_at"=\$\d+,"video_id"=`).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectCommit()

	job, err := r.QueueJob(context.Background(), "user-1", "https://example.com/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, constant.JobStatusQueued, job.Status)
	assert.NotEqual(t, uuid.Nil, job.RunId)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_AdvanceStatus(t *testing.T) {
	ctx := context.Background()
	runId := uuid.New()

	t.Run("owning run moves forward", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(advanceSQL).
			WithArgs(constant.JobStatusSummarizing, sqlmock.AnyArg(), "user-1", runId, constant.JobStatusQueued, constant.JobStatusSummarizing).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, r.AdvanceStatus(ctx, "user-1", runId, constant.JobStatusSummarizing))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no matching row is a stale run", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(advanceSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.ErrorIs(t, r.AdvanceStatus(ctx, "user-1", runId, constant.JobStatusSummarizing), ErrStaleRun)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("out of range target never reaches the store", func(t *testing.T) {
		r, mock := newMockRepo(t)

		assert.ErrorIs(t, r.AdvanceStatus(ctx, "user-1", runId, constant.JobStatusQueued), ErrInvalidTransition)
		assert.ErrorIs(t, r.AdvanceStatus(ctx, "user-1", runId, constant.JobStatusVideoComposed), ErrInvalidTransition)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("driver error is returned as is", func(t *testing.T) {
		r, mock := newMockRepo(t)
		dbErr := errors.New("connection reset")
		mock.ExpectBegin()
		mock.ExpectExec(advanceSQL).WillReturnError(dbErr)
		mock.ExpectRollback()

		err := r.AdvanceStatus(ctx, "user-1", runId, constant.JobStatusSummarizing)
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, ErrStaleRun)
	})
}

func TestRepo_FailJob(t *testing.T) {
	ctx := context.Background()
	runId := uuid.New()

	t.Run("owning run resets to idle", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(failSQL).
			WithArgs(constant.JobStatusIdle, sqlmock.AnyArg(), "user-1", runId, constant.JobStatusQueued, constant.JobStatusAudioGenerated).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		require.NoError(t, r.FailJob(ctx, "user-1", runId))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("superseded run is stale", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(failSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.ErrorIs(t, r.FailJob(ctx, "user-1", runId), ErrStaleRun)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepo_CompleteJob(t *testing.T) {
	ctx := context.Background()
	runId := uuid.New()
	completeSQL := `UPDATE "jobs" SET "status"=\$1,"updated_at"=\$2,"video_id"=\$3 WHERE .*user_id = \$4 AND run_id = \$5 AND status BETWEEN \$6 AND \$7`

	t.Run("job update and video insert commit together", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(completeSQL).
			WithArgs(constant.JobStatusVideoComposed, sqlmock.AnyArg(), sqlmock.AnyArg(), "user-1", runId, constant.JobStatusQueued, constant.JobStatusAudioGenerated).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`INSERT INTO "videos"`).
			WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now().UTC()))
		mock.ExpectCommit()

		video, err := r.CompleteJob(ctx, "user-1", runId, "https://videos.example.com/v.mp4")
		require.NoError(t, err)
		assert.Equal(t, "user-1", video.CreatorId)
		assert.Equal(t, "https://videos.example.com/v.mp4", video.VideoLink)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("superseded run rolls back without a video", func(t *testing.T) {
		r, mock := newMockRepo(t)
		mock.ExpectBegin()
		mock.ExpectExec(completeSQL).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		video, err := r.CompleteJob(ctx, "user-1", runId, "https://videos.example.com/v.mp4")
		assert.ErrorIs(t, err, ErrStaleRun)
		assert.Nil(t, video)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestRepo_ResetStaleJobs(t *testing.T) {
	r, mock := newMockRepo(t)
	before := time.Now().Add(-time.Hour).UTC()

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "jobs" SET "status"=\$1,"updated_at"=\$2 WHERE .*status BETWEEN \$3 AND \$4 AND updated_at < \$5`).
		WithArgs(constant.JobStatusIdle, sqlmock.AnyArg(), constant.JobStatusQueued, constant.JobStatusAudioGenerated, before).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	n, err := r.ResetStaleJobs(context.Background(), before)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepo_ListVideosByCreator(t *testing.T) {
	r, mock := newMockRepo(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "videos" WHERE creator_id = \$1 ORDER BY created_at DESC LIMIT`).
		WillReturnRows(sqlmock.NewRows([]string{"uuid", "video_link", "creator_id", "created_at"}).
			AddRow(id.String(), "https://videos.example.com/v.mp4", "user-1", time.Now().UTC()))

	videos, err := r.ListVideosByCreator(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, videos, 1)
	assert.Equal(t, id, videos[0].Uuid)
	assert.NoError(t, mock.ExpectationsWereMet())
}
