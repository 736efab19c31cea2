package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Mode)
	assert.Equal(t, 20.0, cfg.Progression.BaseChance)
	assert.Equal(t, 5.0, cfg.Progression.BonusPerHour)
	assert.Equal(t, 80.0, cfg.Progression.MaxChance)
	assert.Equal(t, time.Hour, cfg.Progression.Cooldown)
	assert.Equal(t, 60*time.Second, cfg.Progression.SwapTimeout)
	assert.Equal(t, 10, cfg.Progression.LeaderboardSize)
	assert.Equal(t, "Joueur", cfg.Discord.PlayerRole)
	assert.Equal(t, "Ailes", cfg.Discord.WingsRole)
	assert.Equal(t, "fr", cfg.Locale.Default)
	assert.Equal(t, []string{"en", "fr"}, cfg.Locale.Allowed)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
server:
  port: 9090
progression:
  base_chance: 30
  cooldown: 30m
abilities:
  cooldowns:
    devour: 12h
clans:
  zephonim:
    name: Zephonim
    color: "#00ff00"
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 30.0, cfg.Progression.BaseChance)
	assert.Equal(t, 30*time.Minute, cfg.Progression.Cooldown)
	assert.Equal(t, 12*time.Hour, cfg.Abilities.Cooldowns["devour"])
	assert.Equal(t, "Zephonim", cfg.Clans["zephonim"].Name)
	assert.Equal(t, "#00ff00", cfg.Clans["zephonim"].Color)
	// untouched defaults survive
	assert.Equal(t, 80.0, cfg.Progression.MaxChance)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ELDERGOD_PROGRESSION_MAX_CHANCE", "95")
	t.Setenv("ROLE_PLAYER", "Player")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 95.0, cfg.Progression.MaxChance)
	assert.Equal(t, "Player", cfg.Discord.PlayerRole)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestProgressionLocation(t *testing.T) {
	assert.Equal(t, time.Local, ProgressionConfig{}.Location())
	assert.Equal(t, time.Local, ProgressionConfig{Timezone: "Not/AZone"}.Location())
	assert.Equal(t, "UTC", ProgressionConfig{Timezone: "UTC"}.Location().String())
}
