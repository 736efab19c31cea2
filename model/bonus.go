package model

// CharacterBonus holds the pending modifiers applied to a user's next level-up attempt.
type CharacterBonus struct {
	DiscordID         int64 `gorm:"column:discord_id;primaryKey;autoIncrement:false" json:"discord_id"`
	DevourBonus       int   `gorm:"not null;default:0" json:"devour_bonus"`
	CursePenalty      int   `gorm:"not null;default:0" json:"curse_penalty"`
	GuaranteedLevelup bool  `gorm:"not null;default:false" json:"guaranteed_levelup"`
	SwimActive        bool  `gorm:"not null;default:false" json:"swim_active"`
}

func (CharacterBonus) TableName() string { return "egb_character_bonuses" }
