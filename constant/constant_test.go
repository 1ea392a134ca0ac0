package constant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatus_CanTransition(t *testing.T) {
	tests := []struct {
		name string
		from JobStatus
		to   JobStatus
		want bool
	}{
		{name: "idle to queued", from: JobStatusIdle, to: JobStatusQueued, want: true},
		{name: "finished to queued", from: JobStatusVideoComposed, to: JobStatusQueued, want: true},
		{name: "running to queued", from: JobStatusSummarizing, to: JobStatusQueued, want: true},
		{name: "forward one step", from: JobStatusQueued, to: JobStatusExtractingInfo, want: true},
		{name: "forward to final", from: JobStatusAudioGenerated, to: JobStatusVideoComposed, want: true},
		{name: "backwards", from: JobStatusSummarizing, to: JobStatusExtractingText, want: false},
		{name: "same status", from: JobStatusSummarizing, to: JobStatusSummarizing, want: false},
		{name: "running fails to idle", from: JobStatusStructuringSlides, to: JobStatusIdle, want: true},
		{name: "idle cannot fail", from: JobStatusIdle, to: JobStatusIdle, want: false},
		{name: "final cannot fail", from: JobStatusVideoComposed, to: JobStatusIdle, want: false},
		{name: "idle cannot skip queue", from: JobStatusIdle, to: JobStatusExtractingInfo, want: false},
		{name: "out of range", from: JobStatusQueued, to: JobStatus(9), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}
}

func TestJobStatus_LabelAndProgress(t *testing.T) {
	assert.Equal(t, "No job in progress", JobStatusIdle.Label())
	assert.Equal(t, "Video ready", JobStatusVideoComposed.Label())
	assert.Equal(t, "Unknown", JobStatus(42).Label())

	assert.Equal(t, 0.0, JobStatusIdle.Progress())
	assert.Equal(t, 0.5, JobStatusSummarizing.Progress())
	assert.Equal(t, 1.0, JobStatusVideoComposed.Progress())
	assert.Equal(t, 0.0, JobStatus(-1).Progress())
}

func TestJobStatus_Running(t *testing.T) {
	for s := JobStatusIdle; s <= JobStatusFinal; s++ {
		assert.Equal(t, s >= JobStatusQueued && s <= JobStatusAudioGenerated, s.Running(), s.Label())
	}
}

func TestStage_StatusAfterIsStrictlyIncreasing(t *testing.T) {
	stages := []Stage{
		StageReferenceStripping,
		StageTextExtraction,
		StageReorganization,
		StageSlideGeneration,
		StageStructuredExtract,
		StageVoiceoverSynthesis,
		StageVideoComposition,
	}

	prev := JobStatusQueued
	for _, st := range stages {
		assert.Equal(t, prev+1, st.StatusAfter(), string(st))
		prev = st.StatusAfter()
	}
	assert.Equal(t, JobStatusFinal, prev)
}
