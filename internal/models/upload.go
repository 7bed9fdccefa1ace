package models

import "time"

// WorkUpload records a completed-work file uploaded by a student. The file
// itself lives on local storage; downloads go through signed URLs.
type WorkUpload struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	TimeBlockID *string   `db:"time_block_id" json:"time_block_id,omitempty"`
	Filename    string    `db:"filename" json:"filename"`
	StoragePath string    `db:"storage_path" json:"-"`
	ContentType string    `db:"content_type" json:"content_type"`
	SizeBytes   int64     `db:"size_bytes" json:"size_bytes"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
