package model

// LoreCharacter is a quotable character from the game's lore.
type LoreCharacter struct {
	ID     int64   `gorm:"primaryKey;autoIncrement" json:"id"`
	NameEN string  `gorm:"column:name_en;size:100;not null;uniqueIndex" json:"name_en"`
	NameFR string  `gorm:"column:name_fr;size:100;not null;uniqueIndex" json:"name_fr"`
	Quotes []Quote `gorm:"foreignKey:CharacterID" json:"-"`
}

func (LoreCharacter) TableName() string { return "egb_dim_characters" }

type Quote struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	CharacterID int64  `gorm:"index;not null" json:"character_id"`
	QuoteEN     string `gorm:"column:quote_en;type:text" json:"quote_en"`
	QuoteFR     string `gorm:"column:quote_fr;type:text" json:"quote_fr"`
}

func (Quote) TableName() string { return "egb_quotes" }
