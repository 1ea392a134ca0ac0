package constant

type JobStatus int

const (
	JobStatusIdle JobStatus = iota
	JobStatusQueued
	JobStatusExtractingInfo
	JobStatusExtractingText
	JobStatusSummarizing
	JobStatusStructuringSlides
	JobStatusSlidesExtracted
	JobStatusAudioGenerated
	JobStatusVideoComposed
)

// JobStatusFinal is the highest code a job can reach.
const JobStatusFinal = JobStatusVideoComposed

var jobStatusLabels = map[JobStatus]string{
	JobStatusIdle:              "No job in progress",
	JobStatusQueued:            "Queued",
	JobStatusExtractingInfo:    "Extracting info",
	JobStatusExtractingText:    "Extracting text",
	JobStatusSummarizing:       "Summarizing",
	JobStatusStructuringSlides: "Structuring slides",
	JobStatusSlidesExtracted:   "Creating slides",
	JobStatusAudioGenerated:    "Creating audio",
	JobStatusVideoComposed:     "Video ready",
}

func (s JobStatus) Valid() bool {
	return s >= JobStatusIdle && s <= JobStatusFinal
}

func (s JobStatus) Label() string {
	if label, ok := jobStatusLabels[s]; ok {
		return label
	}
	return "Unknown"
}

// Progress maps a status onto [0, 1].
func (s JobStatus) Progress() float64 {
	if !s.Valid() {
		return 0
	}
	return float64(s) / float64(JobStatusFinal)
}

// Running reports whether a pipeline run currently owns the record.
func (s JobStatus) Running() bool {
	return s >= JobStatusQueued && s < JobStatusFinal
}

// CanTransition enforces the status machine: any state may be re-queued, a
// running job may fail to idle, and otherwise a job only moves forward.
func (s JobStatus) CanTransition(to JobStatus) bool {
	if !s.Valid() || !to.Valid() {
		return false
	}
	switch {
	case to == JobStatusQueued:
		return true
	case to == JobStatusIdle:
		return s.Running()
	case s.Running():
		return to > s
	default:
		return false
	}
}

type Stage string

const (
	StageReferenceStripping Stage = "reference_stripping"
	StageTextExtraction     Stage = "text_extraction"
	StageReorganization     Stage = "reorganization"
	StageSlideGeneration    Stage = "slide_generation"
	StageStructuredExtract  Stage = "structured_extraction"
	StageVoiceoverSynthesis Stage = "voiceover_synthesis"
	StageVideoComposition   Stage = "video_composition"
)

// StatusAfter is the status a job reaches once the stage succeeds.
func (s Stage) StatusAfter() JobStatus {
	switch s {
	case StageReferenceStripping:
		return JobStatusExtractingInfo
	case StageTextExtraction:
		return JobStatusExtractingText
	case StageReorganization:
		return JobStatusSummarizing
	case StageSlideGeneration:
		return JobStatusStructuringSlides
	case StageStructuredExtract:
		return JobStatusSlidesExtracted
	case StageVoiceoverSynthesis:
		return JobStatusAudioGenerated
	case StageVideoComposition:
		return JobStatusVideoComposed
	default:
		return JobStatusIdle
	}
}

type DispatchMode string

const (
	DispatchModeRabbitMQ DispatchMode = "rabbitmq"
	DispatchModeLocal    DispatchMode = "local"
)

type DBDriver string

const (
	DBDriverPostgres DBDriver = "postgres"
	DBDriverMemory   DBDriver = "memory"
)

type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentStaging    Environment = "staging"
	EnvironmentDevelop    Environment = "develop"
)

func (e Environment) String() string {
	return string(e)
}
