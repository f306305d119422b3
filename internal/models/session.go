package models

// SessionStatus represents the status of a decode session.
type SessionStatus string

const (
	SessionStatusPending  SessionStatus = "pending"
	SessionStatusDecoding SessionStatus = "decoding"
	SessionStatusComplete SessionStatus = "complete"
	SessionStatusError    SessionStatus = "error"
)

// DecodeSession tracks one file → canonical model decode.
type DecodeSession struct {
	ID               string          `json:"id"`
	FileID           string          `json:"fileId"`
	Status           SessionStatus   `json:"status"`
	Format           string          `json:"format,omitempty"` // decoder name, e.g. "urdf"
	RobotName        string          `json:"robotName,omitempty"`
	LinkCount        int             `json:"linkCount,omitempty"`
	JointCount       int             `json:"jointCount,omitempty"`
	ProcessingTimeMs int64           `json:"processingTimeMs,omitempty"`
	Warnings         []DecodeWarning `json:"warnings,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// NewDecodeSession creates a new DecodeSession in pending status.
func NewDecodeSession(id, fileID string) *DecodeSession {
	return &DecodeSession{
		ID:       id,
		FileID:   fileID,
		Status:   SessionStatusPending,
		Warnings: make([]DecodeWarning, 0),
	}
}
