package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
	"lecture-gen/constant"
	"lecture-gen/dto"
	"lecture-gen/entities"
	"lecture-gen/repository"
)

type wordCounter struct{}

func (wordCounter) Count(text string) int {
	return len(strings.Fields(text))
}

// spyRepo records every status a job was successfully moved to.
type spyRepo struct {
	repository.JobRepository
	mu      sync.Mutex
	history map[string][]constant.JobStatus
}

func newSpyRepo() *spyRepo {
	return &spyRepo{
		JobRepository: repository.NewMemoryRepo(),
		history:       make(map[string][]constant.JobStatus),
	}
}

func (r *spyRepo) record(userId string, status constant.JobStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[userId] = append(r.history[userId], status)
}

func (r *spyRepo) statuses(userId string) []constant.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]constant.JobStatus(nil), r.history[userId]...)
}

func (r *spyRepo) QueueJob(ctx context.Context, userId string, pdfUrl string) (*entities.Job, error) {
	job, err := r.JobRepository.QueueJob(ctx, userId, pdfUrl)
	if err == nil {
		r.record(userId, constant.JobStatusQueued)
	}
	return job, err
}

func (r *spyRepo) AdvanceStatus(ctx context.Context, userId string, runId uuid.UUID, to constant.JobStatus) error {
	err := r.JobRepository.AdvanceStatus(ctx, userId, runId, to)
	if err == nil {
		r.record(userId, to)
	}
	return err
}

func (r *spyRepo) FailJob(ctx context.Context, userId string, runId uuid.UUID) error {
	err := r.JobRepository.FailJob(ctx, userId, runId)
	if err == nil {
		r.record(userId, constant.JobStatusIdle)
	}
	return err
}

func (r *spyRepo) CompleteJob(ctx context.Context, userId string, runId uuid.UUID, videoLink string) (*entities.Video, error) {
	video, err := r.JobRepository.CompleteJob(ctx, userId, runId, videoLink)
	if err == nil {
		r.record(userId, constant.JobStatusVideoComposed)
	}
	return video, err
}

var errCollaborator = errors.New("collaborator unavailable")

// fakeCollaborators answers every stage successfully unless a hook says
// otherwise, and counts the calls it receives.
type fakeCollaborators struct {
	mu    sync.Mutex
	calls map[string]int

	stripErr   error
	onStrip    func()
	rawText    string
	rawSlides  string
	extract    func(block string) (dto.Slide, error)
	synthesize func(text string) ([]byte, error)

	reorganizeInput string
	composedSlides  []dto.Slide
	composedAudio   []dto.Voiceover
}

func newFakeCollaborators() *fakeCollaborators {
	return &fakeCollaborators{
		calls:     make(map[string]int),
		rawText:   "Title\nAbstract\nBody",
		rawSlides: "# Intro\n---\n# Method\n---\n# Results",
	}
}

func (f *fakeCollaborators) called(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
}

func (f *fakeCollaborators) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeCollaborators) laterStageCalls() int {
	total := 0
	for _, name := range []string{"ExtractText", "Reorganize", "GenerateSlides", "ExtractSlide", "Synthesize", "ComposeVideo"} {
		total += f.count(name)
	}
	return total
}

func (f *fakeCollaborators) StripReferences(_ context.Context, _ string) ([]byte, error) {
	f.called("StripReferences")
	if f.onStrip != nil {
		f.onStrip()
	}
	if f.stripErr != nil {
		return nil, f.stripErr
	}
	return []byte("%PDF filtered"), nil
}

func (f *fakeCollaborators) ExtractText(_ context.Context, _ []byte) (string, error) {
	f.called("ExtractText")
	return f.rawText, nil
}

func (f *fakeCollaborators) Reorganize(_ context.Context, rawPaper string) (string, error) {
	f.called("Reorganize")
	f.mu.Lock()
	f.reorganizeInput = rawPaper
	f.mu.Unlock()
	return "reorganized " + rawPaper, nil
}

func (f *fakeCollaborators) GenerateSlides(_ context.Context, _ string) (string, error) {
	f.called("GenerateSlides")
	return f.rawSlides, nil
}

func (f *fakeCollaborators) ExtractSlide(_ context.Context, block string) (dto.Slide, error) {
	f.called("ExtractSlide")
	if f.extract != nil {
		return f.extract(block)
	}
	return dto.Slide{Title: block, MarkdownContent: block, SpeakerNotes: "notes for " + block}, nil
}

func (f *fakeCollaborators) Synthesize(_ context.Context, text string) ([]byte, error) {
	f.called("Synthesize")
	if f.synthesize != nil {
		return f.synthesize(text)
	}
	return []byte("mp3:" + text), nil
}

func (f *fakeCollaborators) ComposeVideo(_ context.Context, slides []dto.Slide, voiceovers []dto.Voiceover) (string, error) {
	f.called("ComposeVideo")
	f.mu.Lock()
	f.composedSlides = slides
	f.composedAudio = voiceovers
	f.mu.Unlock()
	return "https://videos.example.com/lecture.mp4", nil
}

type recordingEnqueuer struct {
	mu       sync.Mutex
	messages []dto.LectureJobMessage
	err      error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, message dto.LectureJobMessage) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return e.err
	}
	e.messages = append(e.messages, message)
	return nil
}

// inlineEnqueuer runs the pipeline before returning.
type inlineEnqueuer struct {
	svc Service
}

func (e inlineEnqueuer) Enqueue(ctx context.Context, message dto.LectureJobMessage) error {
	return e.svc.Process(ctx, message)
}
