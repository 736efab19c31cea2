package model

import "time"

// Character is the persisted progression state of one chat user.
type Character struct {
	DiscordID             int64      `gorm:"column:discord_id;primaryKey;autoIncrement:false" json:"discord_id"`
	Level                 int        `gorm:"not null;default:1;index:idx_char_rank,priority:1,sort:desc" json:"level"`
	LastAttempt           *time.Time `gorm:"column:last_attempt" json:"last_attempt"`
	LastSuccessfulLevelup *time.Time `gorm:"column:last_successful_levelup;type:date;index:idx_char_rank,priority:2" json:"last_successful_levelup"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (Character) TableName() string { return "egb_characters" }
