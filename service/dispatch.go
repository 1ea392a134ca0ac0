package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"lecture-gen/constant"
	"lecture-gen/dto"
	"lecture-gen/entities"
	"lecture-gen/repository"
)

const (
	DefaultVideoLimit = 10
	MaxVideoLimit     = 100
)

// Enqueuer hands a queued job to background execution without waiting for it.
type Enqueuer interface {
	Enqueue(ctx context.Context, message dto.LectureJobMessage) error
}

type JobService interface {
	Dispatch(ctx context.Context, req dto.DispatchRequest) (*entities.Job, error)
	Status(ctx context.Context, userId string) (dto.JobStatusView, error)
	ListVideos(ctx context.Context, creatorId string, limit int) ([]*entities.Video, error)
}

type jobService struct {
	repo     repository.JobRepository
	enqueuer Enqueuer
}

func NewJobService(repo repository.JobRepository, enqueuer Enqueuer) JobService {
	return &jobService{
		repo:     repo,
		enqueuer: enqueuer,
	}
}

// Dispatch queues a fresh run for the user, superseding any run in flight,
// and returns as soon as the run is handed off.
func (s *jobService) Dispatch(ctx context.Context, req dto.DispatchRequest) (*entities.Job, error) {
	job, err := s.repo.QueueJob(ctx, req.User, req.PdfUrl)
	if err != nil {
		return nil, fmt.Errorf("queue job: %w", err)
	}

	message := dto.LectureJobMessage{
		UserId: job.UserId,
		RunId:  job.RunId,
		PdfUrl: job.PdfUrl,
	}
	if err := s.enqueuer.Enqueue(ctx, message); err != nil {
		err = fmt.Errorf("enqueue job: %w", err)
		if failErr := s.repo.FailJob(context.WithoutCancel(ctx), job.UserId, job.RunId); failErr != nil && !errors.Is(failErr, repository.ErrStaleRun) {
			zerolog.Ctx(ctx).Error().Err(failErr).Str("user_id", job.UserId).Msg("failed to reset job after enqueue error")
			err = errors.Join(err, failErr)
		}
		return nil, err
	}

	zerolog.Ctx(ctx).Info().
		Str("user_id", job.UserId).
		Str("run_id", job.RunId.String()).
		Msg("lecture job dispatched")
	return job, nil
}

// Status reports the user's job. A user who never dispatched is idle.
func (s *jobService) Status(ctx context.Context, userId string) (dto.JobStatusView, error) {
	job, err := s.repo.FindJobByUserId(ctx, userId)
	if errors.Is(err, repository.ErrJobNotFound) {
		return dto.NewJobStatusView(userId, constant.JobStatusIdle, nil), nil
	}
	if err != nil {
		return dto.JobStatusView{}, err
	}
	return dto.NewJobStatusView(job.UserId, job.Status, job.VideoId), nil
}

func (s *jobService) ListVideos(ctx context.Context, creatorId string, limit int) ([]*entities.Video, error) {
	switch {
	case limit <= 0:
		limit = DefaultVideoLimit
	case limit > MaxVideoLimit:
		limit = MaxVideoLimit
	}
	return s.repo.ListVideosByCreator(ctx, creatorId, limit)
}
