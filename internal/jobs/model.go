package jobs

import "time"

const (
	TypeReclassify = "RECLASSIFY"

	StatusPending = "PENDING"
	StatusRunning = "RUNNING"
	StatusDone    = "DONE"
	StatusFailed  = "FAILED"
)

type Job struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"`

	Type      string  `gorm:"type:text;not null"` // RECLASSIFY
	DedupeKey *string `gorm:"uniqueIndex:uq_jobs_dedupe_key"`
	Payload   []byte  `gorm:"not null"`

	RunAt  time.Time `gorm:"index;not null"`
	Status string    `gorm:"index;not null;default:'PENDING'"` // PENDING/RUNNING/DONE/FAILED

	Attempts    int `gorm:"not null;default:0"`
	MaxAttempts int `gorm:"not null;default:8"`

	LockedBy *string `gorm:"type:text"`
	LockedAt *time.Time

	LastError *string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

type reclassifyPayload struct {
	Fingerprint string `json:"fingerprint"`
}
