package model

import "time"

type BackupStatus string

const (
	BackupStatusPending   BackupStatus = "pending"
	BackupStatusUploading BackupStatus = "uploading"
	BackupStatusCompleted BackupStatus = "completed"
	BackupStatusFailed    BackupStatus = "failed"
)

// BackupKind records which way a snapshot travelled.
type BackupKind string

const (
	BackupKindExport  BackupKind = "export"
	BackupKindImport  BackupKind = "import"
	BackupKindOffsite BackupKind = "offsite"
)

type Backup struct {
	ID            int64        `json:"id"`
	Kind          BackupKind   `json:"kind"`
	Filename      string       `json:"filename"`
	ObjectKey     string       `json:"object_key,omitempty"`
	SizeBytes     int64        `json:"size_bytes"`
	SchemaVersion int          `json:"schema_version"`
	Migrated      bool         `json:"migrated"`
	Status        BackupStatus `json:"status"`
	ErrorMessage  string       `json:"error_message,omitempty"`
	StartedAt     *time.Time   `json:"started_at,omitempty"`
	CompletedAt   *time.Time   `json:"completed_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}
