package dto

import (
	"github.com/google/uuid"
	"lecture-gen/constant"
)

// LectureJobMessage is what the dispatcher hands to background execution.
type LectureJobMessage struct {
	UserId string    `json:"userId"`
	RunId  uuid.UUID `json:"runId"`
	PdfUrl string    `json:"pdfUrl"`
}

type DispatchRequest struct {
	PdfUrl string `json:"pdfUrl" binding:"required,url,startswith=http"`
	User   string `json:"user" binding:"required"`
}

type DispatchResponse struct {
	Status  string `json:"status"`
	JobId   string `json:"jobId,omitempty"`
	RunId   string `json:"runId,omitempty"`
	Message string `json:"message,omitempty"`
}

type JobStatusView struct {
	UserId   string             `json:"user_id"`
	Status   constant.JobStatus `json:"status"`
	Label    string             `json:"label"`
	Progress float64            `json:"progress"`
	VideoId  *uuid.UUID         `json:"video_id,omitempty"`
}

func NewJobStatusView(userId string, status constant.JobStatus, videoId *uuid.UUID) JobStatusView {
	return JobStatusView{
		UserId:   userId,
		Status:   status,
		Label:    status.Label(),
		Progress: status.Progress(),
		VideoId:  videoId,
	}
}

// Equal compares views by value, including the referenced video id.
func (v JobStatusView) Equal(o JobStatusView) bool {
	if v.UserId != o.UserId || v.Status != o.Status {
		return false
	}
	if v.VideoId == nil || o.VideoId == nil {
		return v.VideoId == o.VideoId
	}
	return *v.VideoId == *o.VideoId
}

type Slide struct {
	Title           string `json:"title"`
	MarkdownContent string `json:"markdownContent"`
	SpeakerNotes    string `json:"speakerNotes"`
}

// Voiceover is the synthesized narration for the slide at Index. An empty
// Audio is a placeholder and is never sent to the compositor.
type Voiceover struct {
	Index int
	Audio []byte
}

func (v Voiceover) Empty() bool {
	return len(v.Audio) == 0
}
