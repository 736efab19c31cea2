package model

import "time"

// AbilityUsage records the last time a user activated an ability.
type AbilityUsage struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	DiscordID   int64     `gorm:"column:discord_id;not null;uniqueIndex:uq_ability_usage" json:"discord_id"`
	AbilityName string    `gorm:"size:32;not null;uniqueIndex:uq_ability_usage" json:"ability_name"`
	LastUsed    time.Time `gorm:"not null" json:"last_used"`
}

func (AbilityUsage) TableName() string { return "egb_ability_usage" }
