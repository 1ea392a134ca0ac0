package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"lecture-gen/dto"
	"lecture-gen/service"
)

type ServiceDependencies struct {
	LectureService service.Service
}

// LectureJobHandler runs the pipeline for one queued lecture job.
func LectureJobHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var job dto.LectureJobMessage
	if err := json.Unmarshal(msg.Body, &job); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal lecture job message")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("user_id", job.UserId).
		Str("run_id", job.RunId.String()).
		Msg("received lecture job message")

	return deps.LectureService.Process(ctx, job)
}
