package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"lecture-gen/constant"
	"lecture-gen/entities"
)

type memoryRepo struct {
	mu     sync.RWMutex
	jobs   map[string]*entities.Job
	videos []*entities.Video
	now    func() time.Time
}

// NewMemoryRepo keeps jobs and videos in process memory with the same
// compare-and-set rules as the postgres repository.
func NewMemoryRepo() JobRepository {
	return &memoryRepo{
		jobs: make(map[string]*entities.Job),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func cloneJob(job *entities.Job) *entities.Job {
	cp := *job
	if job.VideoId != nil {
		id := *job.VideoId
		cp.VideoId = &id
	}
	return &cp
}

func (r *memoryRepo) FindJobByUserId(_ context.Context, userId string) (*entities.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[userId]
	if !ok {
		return nil, ErrJobNotFound
	}
	return cloneJob(job), nil
}

func (r *memoryRepo) QueueJob(_ context.Context, userId string, pdfUrl string) (*entities.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	job, ok := r.jobs[userId]
	if !ok {
		job = &entities.Job{UserId: userId, CreatedAt: now}
		r.jobs[userId] = job
	}
	job.Status = constant.JobStatusQueued
	job.RunId = uuid.New()
	job.PdfUrl = pdfUrl
	job.VideoId = nil
	job.UpdatedAt = now

	return cloneJob(job), nil
}

// owned returns the job when runId still owns it and it is mid-run.
func (r *memoryRepo) owned(userId string, runId uuid.UUID) (*entities.Job, bool) {
	job, ok := r.jobs[userId]
	if !ok || job.RunId != runId || !job.Status.Running() {
		return nil, false
	}
	return job, true
}

func (r *memoryRepo) AdvanceStatus(_ context.Context, userId string, runId uuid.UUID, to constant.JobStatus) error {
	if to <= constant.JobStatusQueued || to >= constant.JobStatusFinal {
		return ErrInvalidTransition
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.owned(userId, runId)
	if !ok || !job.Status.CanTransition(to) {
		return ErrStaleRun
	}
	job.Status = to
	job.UpdatedAt = r.now()
	return nil
}

func (r *memoryRepo) FailJob(_ context.Context, userId string, runId uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.owned(userId, runId)
	if !ok {
		return ErrStaleRun
	}
	job.Status = constant.JobStatusIdle
	job.UpdatedAt = r.now()
	return nil
}

func (r *memoryRepo) CompleteJob(_ context.Context, userId string, runId uuid.UUID, videoLink string) (*entities.Video, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.owned(userId, runId)
	if !ok {
		return nil, ErrStaleRun
	}

	video := &entities.Video{
		Uuid:      uuid.New(),
		VideoLink: videoLink,
		CreatorId: userId,
		CreatedAt: r.now(),
	}
	r.videos = append(r.videos, video)

	job.Status = constant.JobStatusVideoComposed
	job.VideoId = &video.Uuid
	job.UpdatedAt = video.CreatedAt

	cp := *video
	return &cp, nil
}

func (r *memoryRepo) ResetStaleJobs(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, job := range r.jobs {
		if job.Status.Running() && job.UpdatedAt.Before(before) {
			job.Status = constant.JobStatusIdle
			job.UpdatedAt = r.now()
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) ListVideosByCreator(_ context.Context, creatorId string, limit int) ([]*entities.Video, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	videos := make([]*entities.Video, 0)
	for _, v := range r.videos {
		if v.CreatorId == creatorId {
			cp := *v
			videos = append(videos, &cp)
		}
	}
	sort.SliceStable(videos, func(i, j int) bool {
		return videos[i].CreatedAt.After(videos[j].CreatedAt)
	})
	if limit > 0 && len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}
