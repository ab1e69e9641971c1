package models

import "time"

// TempUpload represents an uploaded file persisted for the lifetime of one request.
type TempUpload struct {
	ID         string    `json:"id"`
	FileName   string    `json:"file_name"`
	StoredPath string    `json:"stored_path"`
	Size       int64     `json:"size"`
	Digest     string    `json:"digest"`
	CreatedAt  time.Time `json:"created_at"`
}
