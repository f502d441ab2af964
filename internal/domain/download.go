package domain

import "time"

// TaskState is the lifecycle state of an in-flight metadata download.
type TaskState string

const (
	TaskStatePending    TaskState = "pending"
	TaskStateInProgress TaskState = "in_progress"
	TaskStateCompleted  TaskState = "completed"
	TaskStateFailed     TaskState = "failed"
)

// DownloadTask is the ephemeral bookkeeping record for one fetch. It lives
// only while the task is in flight; terminal states remove it.
type DownloadTask struct {
	ID          string
	SourceURL   string
	ReleaseName string
	ReleaseID   string
	State       TaskState
	Progress    float64
	StartedAt   time.Time
}

// DownloadedFile is the persisted record of a completed metadata download.
// It survives restarts; records whose backing file disappears are dropped
// the next time history is loaded.
type DownloadedFile struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName"`
	LocalPath    string    `json:"localPath"`
	DownloadedAt time.Time `json:"downloadedAt"`
	SourceURL    string    `json:"sourceURL"`
	ReleaseName  string    `json:"releaseName"`
	ReleaseID    string    `json:"releaseId"`
	InfoHash     string    `json:"infoHash,omitempty"`
	SizeBytes    int64     `json:"sizeBytes"`
}
