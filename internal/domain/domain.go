// Package domain holds the relational record shapes shared by the pipeline
// and the query surface.
package domain

import "time"

type User struct {
	ID           string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Username     string `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// VectorStatus mirrors the lifecycle of the background embedding task. It is
// nil until the worker creates the embed task.
type VectorStatus string

const (
	VectorStatusPending    VectorStatus = "pending"
	VectorStatusProcessing VectorStatus = "processing"
	VectorStatusCompleted  VectorStatus = "completed"
	VectorStatusFailed     VectorStatus = "failed"
)

// Video is the relational record created exactly once by the worker after
// the summary is obtained.
type Video struct {
	VideoID           string        `gorm:"column:video_id;type:uuid;primaryKey" json:"video_id"`
	UserID            string        `gorm:"column:user_id;type:uuid;index;not null" json:"user_id"`
	Timestamp         time.Time     `gorm:"column:timestamp;index" json:"timestamp"`
	Datetime          time.Time     `gorm:"column:datetime" json:"datetime"`
	DetailedSummary   string        `gorm:"column:detailed_summary;type:text" json:"detailed_summary"`
	S3Link            *string       `gorm:"column:s3_link" json:"s3_link"`
	FileSize          int64         `gorm:"column:file_size" json:"file_size"`
	ProcessedAt       time.Time     `gorm:"column:processed_at" json:"processed_at"`
	TwelveLabsVideoID *string       `gorm:"column:twelvelabs_video_id" json:"twelvelabs_video_id"`
	VectorStatus      *VectorStatus `gorm:"column:vector_status" json:"vector_status"`
	VectorUpdatedAt   *time.Time    `gorm:"column:vector_updated_at" json:"vector_updated_at"`
	VectorID          *string       `gorm:"column:vector_id;type:uuid" json:"vector_id"`
	CreatedAt         time.Time     `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Video) TableName() string { return "videos" }

// Highlight is inserted when the automation classifier elects "highlights".
// Duplicates are tolerated by design.
type Highlight struct {
	HighlightID string    `gorm:"column:highlight_id;type:uuid;primaryKey;default:gen_random_uuid()" json:"highlight_id"`
	UserID      string    `gorm:"column:user_id;type:uuid;index;not null" json:"user_id"`
	VideoID     string    `gorm:"column:video_id;type:uuid;index;not null" json:"video_id"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Highlight) TableName() string { return "highlights" }
