package model

import (
	"time"

	"gorm.io/datatypes"
)

// AuditLog records every progression action and its outcome.
type AuditLog struct {
	ID         int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	TraceID    string         `gorm:"index:idx_audit_trace;size:36;not null" json:"trace_id"`
	DiscordID  *int64         `gorm:"column:discord_id;index:idx_audit_user" json:"discord_id"`
	TargetID   *int64         `json:"target_id"`
	Action     string         `gorm:"size:128;not null" json:"action"`
	Detail     datatypes.JSON `json:"detail"`
	Error      string         `gorm:"type:text" json:"error"`
	DurationMs int            `json:"duration_ms"`
	CreatedAt  time.Time      `gorm:"index:idx_audit_created;autoCreateTime:milli" json:"created_at"`
}

func (AuditLog) TableName() string { return "egb_log" }
