package ability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nosgoth/eldergod/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Manager reads and writes ability usage records.
type Manager struct {
	db  *gorm.DB
	now func() time.Time
}

// NewManager creates a Manager. A nil clock defaults to time.Now.
func NewManager(db *gorm.DB, clock func() time.Time) *Manager {
	if clock == nil {
		clock = time.Now
	}
	return &Manager{db: db, now: clock}
}

// WithTx returns a Manager bound to tx.
func (m *Manager) WithTx(tx *gorm.DB) *Manager {
	return &Manager{db: tx, now: m.now}
}

// LastUsed returns when userID last used name, or nil if never.
func (m *Manager) LastUsed(ctx context.Context, userID int64, name string) (*time.Time, error) {
	var row model.AbilityUsage
	err := m.db.WithContext(ctx).
		Where("discord_id = ? AND ability_name = ?", userID, name).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s usage of %d: %w", name, userID, err)
	}
	t := row.LastUsed.UTC()
	return &t, nil
}

// CanUse reports whether the cooldown has elapsed. The denial message states
// whole days and hours left.
func (m *Manager) CanUse(ctx context.Context, userID int64, name string, cooldown time.Duration) (bool, string, error) {
	last, err := m.LastUsed(ctx, userID, name)
	if err != nil {
		return false, "", err
	}
	if last == nil {
		return true, "", nil
	}
	elapsed := m.now().Sub(*last)
	if elapsed >= cooldown {
		return true, "", nil
	}
	return false, CooldownMessage(cooldown - elapsed), nil
}

// CooldownMessage renders a remaining duration as "Available in 4 day(s) and 3h"
// or "Available in 3h", truncating to whole units.
func CooldownMessage(remaining time.Duration) string {
	days := int(remaining / Day)
	hours := int((remaining % Day) / time.Hour)
	if days > 0 {
		return fmt.Sprintf("Available in %d day(s) and %dh", days, hours)
	}
	return fmt.Sprintf("Available in %dh", hours)
}

// Use marks name as used now, overwriting any previous record. It does not
// check the cooldown.
func (m *Manager) Use(ctx context.Context, userID int64, name string) error {
	row := model.AbilityUsage{DiscordID: userID, AbilityName: name, LastUsed: m.now().UTC()}
	err := m.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_id"}, {Name: "ability_name"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_used"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("mark %s used by %d: %w", name, userID, err)
	}
	return nil
}

// TryUse checks and marks the cooldown in one conditional write: the usage
// row is only claimed when the cooldown has elapsed or no row exists. When it
// returns false the record is untouched and the message explains the wait.
func (m *Manager) TryUse(ctx context.Context, userID int64, name string, cooldown time.Duration) (bool, string, error) {
	now := m.now().UTC()
	db := m.db.WithContext(ctx)

	res := db.Model(&model.AbilityUsage{}).
		Where("discord_id = ? AND ability_name = ? AND last_used <= ?", userID, name, now.Add(-cooldown)).
		Update("last_used", now)
	if res.Error != nil {
		return false, "", fmt.Errorf("claim %s for %d: %w", name, userID, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, "", nil
	}

	res = db.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.AbilityUsage{DiscordID: userID, AbilityName: name, LastUsed: now})
	if res.Error != nil {
		return false, "", fmt.Errorf("claim %s for %d: %w", name, userID, res.Error)
	}
	if res.RowsAffected > 0 {
		return true, "", nil
	}

	ok, msg, err := m.CanUse(ctx, userID, name, cooldown)
	if err != nil {
		return false, "", err
	}
	if ok {
		// The row became claimable between the two writes; report a generic wait.
		return false, CooldownMessage(0), nil
	}
	return false, msg, nil
}
