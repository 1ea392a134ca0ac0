package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
	"lecture-gen/constant"
	"lecture-gen/entities"
)

var (
	ErrJobNotFound       = errors.New("job not found")
	ErrStaleRun          = errors.New("run no longer owns the job")
	ErrInvalidTransition = errors.New("invalid job status transition")
)

// JobRepository is the status store. Every write made on behalf of a pipeline
// run is a compare-and-set on (user_id, run_id): once a newer dispatch
// replaces the run id, the older run's writes fail with ErrStaleRun.
type JobRepository interface {
	FindJobByUserId(ctx context.Context, userId string) (*entities.Job, error)
	QueueJob(ctx context.Context, userId string, pdfUrl string) (*entities.Job, error)
	AdvanceStatus(ctx context.Context, userId string, runId uuid.UUID, to constant.JobStatus) error
	FailJob(ctx context.Context, userId string, runId uuid.UUID) error
	CompleteJob(ctx context.Context, userId string, runId uuid.UUID, videoLink string) (*entities.Video, error)
	ResetStaleJobs(ctx context.Context, before time.Time) (int64, error)
	ListVideosByCreator(ctx context.Context, creatorId string, limit int) ([]*entities.Video, error)
}

type repo struct {
	db *gorm.DB
}

func openGorm(db *sql.DB, debug bool) (*gorm.DB, error) {
	level := logger.Warn
	if debug {
		level = logger.Info
	}
	return gorm.Open(postgres.New(postgres.Config{
		Conn: db}),
		&gorm.Config{
			Logger: logger.Default.LogMode(level),
		},
	)
}

func NewRepo(db *sql.DB, debug bool) (JobRepository, error) {
	gormDB, err := openGorm(db, debug)
	if err != nil {
		return nil, err
	}
	return &repo{
		db: gormDB,
	}, nil
}

// Migrate creates or updates the jobs and videos tables.
func Migrate(ctx context.Context, db *sql.DB) error {
	gormDB, err := openGorm(db, true)
	if err != nil {
		return err
	}
	return gormDB.WithContext(ctx).AutoMigrate(&entities.Job{}, &entities.Video{})
}

func (r *repo) FindJobByUserId(ctx context.Context, userId string) (*entities.Job, error) {
	job := &entities.Job{}
	err := r.db.WithContext(ctx).First(job, "user_id = ?", userId).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (r *repo) QueueJob(ctx context.Context, userId string, pdfUrl string) (*entities.Job, error) {
	now := time.Now().UTC()
	job := &entities.Job{
		UserId:    userId,
		Status:    constant.JobStatusQueued,
		RunId:     uuid.New(),
		PdfUrl:    pdfUrl,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"status":     constant.JobStatusQueued,
			"run_id":     job.RunId,
			"pdf_url":    pdfUrl,
			"video_id":   nil,
			"updated_at": now,
		}),
	}).Create(job).Error
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (r *repo) AdvanceStatus(ctx context.Context, userId string, runId uuid.UUID, to constant.JobStatus) error {
	if to <= constant.JobStatusQueued || to >= constant.JobStatusFinal {
		return ErrInvalidTransition
	}

	res := r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("user_id = ? AND run_id = ? AND status >= ? AND status < ?", userId, runId, constant.JobStatusQueued, to).
		Updates(map[string]interface{}{
			"status":     to,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRun
	}

	return nil
}

func (r *repo) FailJob(ctx context.Context, userId string, runId uuid.UUID) error {
	res := r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("user_id = ? AND run_id = ? AND status BETWEEN ? AND ?", userId, runId, constant.JobStatusQueued, constant.JobStatusFinal-1).
		Updates(map[string]interface{}{
			"status":     constant.JobStatusIdle,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRun
	}

	return nil
}

func (r *repo) CompleteJob(ctx context.Context, userId string, runId uuid.UUID, videoLink string) (*entities.Video, error) {
	video := &entities.Video{
		Uuid:      uuid.New(),
		VideoLink: videoLink,
		CreatorId: userId,
		CreatedAt: time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.Job{}).
			Where("user_id = ? AND run_id = ? AND status BETWEEN ? AND ?", userId, runId, constant.JobStatusQueued, constant.JobStatusFinal-1).
			Updates(map[string]interface{}{
				"status":     constant.JobStatusVideoComposed,
				"video_id":   video.Uuid,
				"updated_at": video.CreatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleRun
		}

		return tx.Create(video).Error
	})
	if err != nil {
		return nil, err
	}

	return video, nil
}

func (r *repo) ResetStaleJobs(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entities.Job{}).
		Where("status BETWEEN ? AND ? AND updated_at < ?", constant.JobStatusQueued, constant.JobStatusFinal-1, before).
		Updates(map[string]interface{}{
			"status":     constant.JobStatusIdle,
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *repo) ListVideosByCreator(ctx context.Context, creatorId string, limit int) ([]*entities.Video, error) {
	var videos []*entities.Video
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorId).
		Order("created_at DESC").
		Limit(limit).
		Find(&videos).Error
	if err != nil {
		return nil, err
	}
	return videos, nil
}
