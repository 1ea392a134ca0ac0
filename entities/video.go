package entities

import (
	"github.com/google/uuid"
	"time"
)

type Video struct {
	Uuid      uuid.UUID `json:"uuid" gorm:"type:uuid;primary_key"`
	VideoLink string    `json:"video_link" gorm:"type:text;not null"`
	CreatorId string    `json:"creator_id" gorm:"type:varchar(255);not null;index:idx_videos_creator_id"`
	CreatedAt time.Time `json:"created_at" gorm:"type:timestamptz;not null;default:CURRENT_TIMESTAMP"`
}

func (Video) TableName() string {
	return "videos"
}
