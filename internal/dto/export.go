package dto

import "time"

// StatementRequest payload for generating a wallet statement export.
type StatementRequest struct {
	StudentID string    `json:"student_id" validate:"required"`
	From      time.Time `json:"from" validate:"required"`
	To        time.Time `json:"to" validate:"required,gtfield=From"`
	Format    string    `json:"format" validate:"required,oneof=csv pdf"`
}

// StatementResponse points at a generated export artifact.
type StatementResponse struct {
	ExportID    string    `json:"export_id"`
	Format      string    `json:"format"`
	DownloadURL string    `json:"download_url"`
	ExpiresAt   time.Time `json:"expires_at"`
}
