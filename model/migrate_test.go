package model_test

import (
	"testing"
	"time"

	"github.com/nosgoth/eldergod/model"
	"github.com/nosgoth/eldergod/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	now := time.Now().UTC().Truncate(time.Second)
	day := time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC)

	char := &model.Character{DiscordID: 1001, Level: 3, LastAttempt: &now, LastSuccessfulLevelup: &day}
	require.NoError(t, db.Create(char).Error)

	var found model.Character
	require.NoError(t, db.First(&found, "discord_id = ?", 1001).Error)
	assert.Equal(t, 3, found.Level)
	require.NotNil(t, found.LastSuccessfulLevelup)
	assert.Equal(t, 18, found.LastSuccessfulLevelup.Day())

	// Level defaults to 1.
	require.NoError(t, db.Create(&model.Character{DiscordID: 1002}).Error)
	var fresh model.Character
	require.NoError(t, db.First(&fresh, "discord_id = ?", 1002).Error)
	assert.Equal(t, 1, fresh.Level)
	assert.Nil(t, fresh.LastAttempt)

	// Ability usage is unique per (user, ability).
	require.NoError(t, db.Create(&model.AbilityUsage{DiscordID: 1001, AbilityName: "devour", LastUsed: now}).Error)
	assert.Error(t, db.Create(&model.AbilityUsage{DiscordID: 1001, AbilityName: "devour", LastUsed: now}).Error)

	require.NoError(t, db.Create(&model.CharacterBonus{DiscordID: 1001, DevourBonus: 4}).Error)

	lc := &model.LoreCharacter{NameEN: "Raziel", NameFR: "Raziel"}
	require.NoError(t, db.Create(lc).Error)
	require.NoError(t, db.Create(&model.Quote{CharacterID: lc.ID, QuoteEN: "Vae victis", QuoteFR: "Malheur aux vaincus"}).Error)

	al := &model.AuditLog{TraceID: "trace-001", Action: "levelup attempt (success)", Detail: datatypes.JSON(`{"level":4}`)}
	require.NoError(t, db.Create(al).Error)
	assert.Greater(t, al.ID, int64(0))
}

func TestTableNames(t *testing.T) {
	assert.Equal(t, "egb_characters", model.Character{}.TableName())
	assert.Equal(t, "egb_ability_usage", model.AbilityUsage{}.TableName())
	assert.Equal(t, "egb_character_bonuses", model.CharacterBonus{}.TableName())
	assert.Equal(t, "egb_log", model.AuditLog{}.TableName())
	assert.Equal(t, "egb_dim_characters", model.LoreCharacter{}.TableName())
	assert.Equal(t, "egb_quotes", model.Quote{}.TableName())
}
