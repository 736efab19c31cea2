// Package bonus stores the pending modifiers of a user's next level-up
// attempt and hands them out as a single consumable token.
package bonus

import (
	"context"
	"errors"
	"fmt"

	"github.com/nosgoth/eldergod/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const table = "egb_character_bonuses"

// Token is the state of one ledger row at the moment it was read.
type Token struct {
	DevourBonus  int  `json:"devour_bonus"`
	CursePenalty int  `json:"curse_penalty"`
	Guaranteed   bool `json:"guaranteed"`
	Swim         bool `json:"swim"`
	Present      bool `json:"-"` // a ledger row existed
}

// Modifier is the percentage added to the time-based success chance.
func (t Token) Modifier() int {
	return t.DevourBonus + t.CursePenalty
}

// Neutral reports whether the token changes nothing.
func (t Token) Neutral() bool {
	return t.DevourBonus == 0 && t.CursePenalty == 0 && !t.Guaranteed && !t.Swim
}

// Ledger reads and writes the per-user bonus rows.
type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// WithTx returns a Ledger bound to tx.
func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{db: tx}
}

func (l *Ledger) upsert(ctx context.Context, row *model.CharacterBonus, set map[string]interface{}) error {
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.Assignments(set),
	}).Create(row).Error
}

// AddDevour adds amount to the devour accumulator.
func (l *Ledger) AddDevour(ctx context.Context, userID int64, amount int) error {
	err := l.upsert(ctx, &model.CharacterBonus{DiscordID: userID, DevourBonus: amount}, map[string]interface{}{
		"devour_bonus": gorm.Expr(table+".devour_bonus + ?", amount),
	})
	if err != nil {
		return fmt.Errorf("add devour bonus for %d: %w", userID, err)
	}
	return nil
}

// AddCurse adds amount (normally negative) to the curse accumulator.
func (l *Ledger) AddCurse(ctx context.Context, userID int64, amount int) error {
	err := l.upsert(ctx, &model.CharacterBonus{DiscordID: userID, CursePenalty: amount}, map[string]interface{}{
		"curse_penalty": gorm.Expr(table+".curse_penalty + ?", amount),
	})
	if err != nil {
		return fmt.Errorf("add curse penalty for %d: %w", userID, err)
	}
	return nil
}

// Guarantee sets the one-shot forced success flag.
func (l *Ledger) Guarantee(ctx context.Context, userID int64) error {
	err := l.upsert(ctx, &model.CharacterBonus{DiscordID: userID, GuaranteedLevelup: true}, map[string]interface{}{
		"guaranteed_levelup": true,
	})
	if err != nil {
		return fmt.Errorf("guarantee levelup for %d: %w", userID, err)
	}
	return nil
}

// ActivateSwim sets the one-shot cooldown bypass flag.
func (l *Ledger) ActivateSwim(ctx context.Context, userID int64) error {
	err := l.upsert(ctx, &model.CharacterBonus{DiscordID: userID, SwimActive: true}, map[string]interface{}{
		"swim_active": true,
	})
	if err != nil {
		return fmt.Errorf("activate swim for %d: %w", userID, err)
	}
	return nil
}

func (l *Ledger) read(ctx context.Context, db *gorm.DB, userID int64) (Token, error) {
	var row model.CharacterBonus
	err := db.WithContext(ctx).Where("discord_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Token{}, nil
	}
	if err != nil {
		return Token{}, fmt.Errorf("load bonuses for %d: %w", userID, err)
	}
	return Token{
		DevourBonus:  row.DevourBonus,
		CursePenalty: row.CursePenalty,
		Guaranteed:   row.GuaranteedLevelup,
		Swim:         row.SwimActive,
		Present:      true,
	}, nil
}

// Peek returns the pending token without consuming it.
func (l *Ledger) Peek(ctx context.Context, userID int64) (Token, error) {
	return l.read(ctx, l.db, userID)
}

// Consume returns the pending token and resets the row to neutral. Run it in
// the same transaction as the attempt that uses the token, so a rolled back
// attempt leaves the token in place.
func (l *Ledger) Consume(ctx context.Context, userID int64) (Token, error) {
	tok, err := l.read(ctx, l.db.Clauses(clause.Locking{Strength: "UPDATE"}), userID)
	if err != nil || !tok.Present {
		return tok, err
	}
	err = l.db.WithContext(ctx).Model(&model.CharacterBonus{}).
		Where("discord_id = ?", userID).
		Updates(map[string]interface{}{
			"devour_bonus":       0,
			"curse_penalty":      0,
			"guaranteed_levelup": false,
			"swim_active":        false,
		}).Error
	if err != nil {
		return Token{}, fmt.Errorf("reset bonuses for %d: %w", userID, err)
	}
	return tok, nil
}
