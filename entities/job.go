package entities

import (
	"github.com/google/uuid"
	"lecture-gen/constant"
	"time"
)

// Job is the single status record a user owns. RunId changes on every
// dispatch and guards writes from superseded runs.
type Job struct {
	UserId    string             `json:"user_id" gorm:"type:varchar(255);primary_key"`
	Status    constant.JobStatus `json:"status" gorm:"type:smallint;not null;default:0;index:idx_jobs_status"`
	VideoId   *uuid.UUID         `json:"video_id" gorm:"type:uuid"`
	RunId     uuid.UUID          `json:"run_id" gorm:"type:uuid;not null"`
	PdfUrl    string             `json:"pdf_url" gorm:"type:text"`
	CreatedAt time.Time          `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time          `json:"updated_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP;index:idx_jobs_updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}
