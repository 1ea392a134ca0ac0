package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"lecture-gen/config"
	"lecture-gen/constant"
	"lecture-gen/dto"
	"lecture-gen/pkg/collaborator"
	"lecture-gen/pkg/metrics"
	"lecture-gen/pkg/storage"
	"lecture-gen/pkg/tokens"
	"lecture-gen/repository"
)

// Collaborators are the remote services a lecture is built from.
type Collaborators interface {
	StripReferences(ctx context.Context, pdfUrl string) ([]byte, error)
	ExtractText(ctx context.Context, pdf []byte) (string, error)
	Reorganize(ctx context.Context, rawPaper string) (string, error)
	GenerateSlides(ctx context.Context, paper string) (string, error)
	ExtractSlide(ctx context.Context, block string) (dto.Slide, error)
	Synthesize(ctx context.Context, text string) ([]byte, error)
	ComposeVideo(ctx context.Context, slides []dto.Slide, voiceovers []dto.Voiceover) (string, error)
}

type Service interface {
	Process(ctx context.Context, message dto.LectureJobMessage) error
	Abandon(ctx context.Context, message dto.LectureJobMessage) error
}

type service struct {
	repo          repository.JobRepository
	collaborators Collaborators
	counter       tokens.Counter
	artifacts     storage.ArtifactStore
	metrics       *metrics.Metrics
	cfg           config.Pipeline
}

func NewService(
	repo repository.JobRepository,
	collaborators Collaborators,
	counter tokens.Counter,
	artifacts storage.ArtifactStore,
	m *metrics.Metrics,
	cfg config.Pipeline,
) Service {
	if artifacts == nil {
		artifacts = storage.NewNopStore()
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 25000
	}
	if cfg.VoiceoverConcurrency <= 0 {
		cfg.VoiceoverConcurrency = 4
	}
	return &service{
		repo:          repo,
		collaborators: collaborators,
		counter:       counter,
		artifacts:     artifacts,
		metrics:       m,
		cfg:           cfg,
	}
}

// run is the state a single pipeline execution threads through its stages.
type run struct {
	message    dto.LectureJobMessage
	pdf        []byte
	rawText    string
	paper      string
	rawSlides  string
	slides     []dto.Slide
	voiceovers []dto.Voiceover
	videoLink  string
}

func (s *service) Process(ctx context.Context, message dto.LectureJobMessage) (err error) {
	logger := zerolog.Ctx(ctx).With().
		Str("user_id", message.UserId).
		Str("run_id", message.RunId.String()).
		Logger()
	ctx = logger.WithContext(ctx)

	job, err := s.repo.FindJobByUserId(ctx, message.UserId)
	if err != nil {
		logger.Error().Err(err).Msg("failed to find job by user id")
		return err
	}
	if job.RunId != message.RunId || !job.Status.Running() {
		logger.Info().Int("status", int(job.Status)).Msg("job no longer belongs to this run, skipping")
		return nil
	}

	logger.Info().Str("pdf_url", message.PdfUrl).Msg("processing lecture job")
	done := s.metrics.JobStarted()

	defer func() {
		switch {
		case err == nil:
			done("success")
			logger.Info().Msg("lecture job completed")
		case errors.Is(err, ErrSuperseded):
			done("superseded")
			logger.Info().Err(err).Msg("run was superseded, stopping")
			err = nil
		default:
			owned, failErr := s.fail(ctx, message)
			if !owned {
				done("superseded")
				logger.Info().Err(err).Msg("run was superseded, stopping")
				err = nil
				return
			}
			done("failed")
			logger.Error().Err(err).Msg("lecture job failed")
			if failErr != nil {
				err = errors.Join(err, failErr)
			}
		}
	}()

	r := &run{message: message}
	stages := []struct {
		stage constant.Stage
		fn    func(ctx context.Context, r *run) error
	}{
		{constant.StageReferenceStripping, s.stripReferences},
		{constant.StageTextExtraction, s.extractText},
		{constant.StageReorganization, s.reorganize},
		{constant.StageSlideGeneration, s.generateSlides},
		{constant.StageStructuredExtract, s.extractSlides},
		{constant.StageVoiceoverSynthesis, s.synthesizeVoiceovers},
		{constant.StageVideoComposition, s.composeVideo},
	}

	for _, st := range stages {
		if err := s.runStage(ctx, r, st.stage, st.fn); err != nil {
			return err
		}
	}

	return nil
}

// Abandon releases a run that was dropped before Process picked it up, so its
// record does not sit at queued until the sweeper runs.
func (s *service) Abandon(ctx context.Context, message dto.LectureJobMessage) error {
	logger := zerolog.Ctx(ctx).With().
		Str("user_id", message.UserId).
		Str("run_id", message.RunId.String()).
		Logger()

	owned, err := s.fail(logger.WithContext(ctx), message)
	if owned && err == nil {
		logger.Info().Msg("released dropped run")
	}
	return err
}

func (s *service) runStage(ctx context.Context, r *run, stage constant.Stage, fn func(ctx context.Context, r *run) error) error {
	logger := zerolog.Ctx(ctx).With().Str("stage", string(stage)).Logger()
	ctx = logger.WithContext(ctx)

	started := time.Now()
	logger.Debug().Msg("stage started")
	err := fn(ctx, r)
	s.metrics.ObserveStage(string(stage), started, err)
	if err != nil {
		if errors.Is(err, ErrSuperseded) {
			return err
		}
		return &StageError{Stage: stage, Err: err}
	}
	logger.Info().Dur("took", time.Since(started)).Msg("stage finished")

	if stage.StatusAfter() == constant.JobStatusFinal {
		return nil
	}
	return s.advance(ctx, r.message, stage.StatusAfter())
}

// advance records progress. Losing ownership stops the run; any other store
// error is logged and the run carries on.
func (s *service) advance(ctx context.Context, message dto.LectureJobMessage, to constant.JobStatus) error {
	err := s.repo.AdvanceStatus(ctx, message.UserId, message.RunId, to)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrStaleRun):
		return ErrSuperseded
	default:
		zerolog.Ctx(ctx).Error().Err(err).Int("status", int(to)).Msg("failed to update job status")
		return nil
	}
}

// fail resets the job to idle. owned is false when a newer run had already
// taken the record over.
func (s *service) fail(ctx context.Context, message dto.LectureJobMessage) (owned bool, err error) {
	err = s.repo.FailJob(context.WithoutCancel(ctx), message.UserId, message.RunId)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, repository.ErrStaleRun):
		return false, nil
	default:
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to reset job status")
		return true, fmt.Errorf("reset job status: %w", err)
	}
}

func (s *service) archive(ctx context.Context, message dto.LectureJobMessage, name string, data []byte, contentType string) {
	key := storage.ArtifactKey(message.UserId, message.RunId, name)
	if err := s.artifacts.Put(ctx, key, data, contentType); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("key", key).Msg("failed to archive artifact")
	}
}

func (s *service) stripReferences(ctx context.Context, r *run) error {
	pdf, err := s.collaborators.StripReferences(ctx, r.message.PdfUrl)
	if err != nil {
		return err
	}
	r.pdf = pdf
	s.archive(ctx, r.message, "filtered.pdf", pdf, "application/pdf")
	return nil
}

func (s *service) extractText(ctx context.Context, r *run) error {
	text, err := s.collaborators.ExtractText(ctx, r.pdf)
	if err != nil {
		return err
	}
	r.rawText = text
	return nil
}

func (s *service) reorganize(ctx context.Context, r *run) error {
	truncated := tokens.Truncate(s.counter, r.rawText, s.cfg.MaxTokens, reorganizationPrompt)
	if len(truncated) < len(r.rawText) {
		zerolog.Ctx(ctx).Info().
			Int("raw_bytes", len(r.rawText)).
			Int("truncated_bytes", len(truncated)).
			Int("max_tokens", s.cfg.MaxTokens).
			Msg("paper truncated to token budget")
	}

	paper, err := s.collaborators.Reorganize(ctx, truncated)
	if err != nil {
		return err
	}
	r.paper = paper
	s.archive(ctx, r.message, "paper.txt", []byte(paper), "text/plain; charset=utf-8")
	return nil
}

func (s *service) generateSlides(ctx context.Context, r *run) error {
	raw, err := s.collaborators.GenerateSlides(ctx, r.paper)
	if err != nil {
		return err
	}
	r.rawSlides = raw
	s.archive(ctx, r.message, "slides.md", []byte(raw), "text/markdown; charset=utf-8")
	return nil
}

// extractSlides structures every block concurrently. One failed block fails
// the stage and cancels the rest.
func (s *service) extractSlides(ctx context.Context, r *run) error {
	blocks := SplitSlides(r.rawSlides)
	if len(blocks) == 0 {
		return ErrNoSlides
	}

	slides := make([]dto.Slide, len(blocks))
	g, gctx := errgroup.WithContext(ctx)
	if s.cfg.ExtractConcurrency > 0 {
		g.SetLimit(s.cfg.ExtractConcurrency)
	}
	for i, block := range blocks {
		g.Go(func() error {
			slide, err := s.collaborators.ExtractSlide(gctx, block)
			if err != nil {
				return err
			}
			slides[i] = slide
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	r.slides = slides
	zerolog.Ctx(ctx).Info().Int("slides", len(slides)).Msg("slides structured")
	if data, err := json.Marshal(slides); err == nil {
		s.archive(ctx, r.message, "slides.json", data, "application/json")
	}
	return nil
}

// synthesizeVoiceovers narrates each slide. A slide without notes, or whose
// synthesis fails, gets an empty placeholder; the stage itself never fails
// on a single slide.
func (s *service) synthesizeVoiceovers(ctx context.Context, r *run) error {
	voiceovers := make([]dto.Voiceover, len(r.slides))

	var g errgroup.Group
	g.SetLimit(s.cfg.VoiceoverConcurrency)
	for i, slide := range r.slides {
		voiceovers[i] = dto.Voiceover{Index: i}
		notes := strings.TrimSpace(slide.SpeakerNotes)
		if notes == "" {
			continue
		}

		g.Go(func() error {
			audio, err := s.collaborators.Synthesize(ctx, notes)
			if err != nil {
				s.metrics.VoiceoverFailed()
				zerolog.Ctx(ctx).Warn().Err(err).Int("slide", i).Msg("voiceover synthesis failed, leaving slide silent")
				return nil
			}
			voiceovers[i].Audio = audio
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.voiceovers = voiceovers
	for _, v := range voiceovers {
		if !v.Empty() {
			s.archive(ctx, r.message, collaborator.VoiceoverFileName(v.Index), v.Audio, "audio/mpeg")
		}
	}
	return nil
}

func (s *service) composeVideo(ctx context.Context, r *run) error {
	link, err := s.collaborators.ComposeVideo(ctx, r.slides, r.voiceovers)
	if err != nil {
		return err
	}
	r.videoLink = link

	video, err := s.repo.CompleteJob(ctx, r.message.UserId, r.message.RunId, link)
	if errors.Is(err, repository.ErrStaleRun) {
		return ErrSuperseded
	}
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("video_id", video.Uuid.String()).
		Str("video_link", link).
		Msg("lecture video recorded")
	return nil
}
