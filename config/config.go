package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g.
// ELDERGOD_PROGRESSION_BASE_CHANCE.
const EnvPrefix = "ELDERGOD"

type Config struct {
	Server      ServerConfig         `mapstructure:"server"`
	Database    DatabaseConfig       `mapstructure:"database"`
	Cache       CacheConfig          `mapstructure:"cache"`
	Discord     DiscordConfig        `mapstructure:"discord"`
	Progression ProgressionConfig    `mapstructure:"progression"`
	Abilities   AbilitiesConfig      `mapstructure:"abilities"`
	Locale      LocaleConfig         `mapstructure:"locale"`
	Clans       map[string]ClanStyle `mapstructure:"clans"`
	Security    SecurityConfig       `mapstructure:"security"`
	Scheduler   SchedulerConfig      `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Port  int  `mapstructure:"port"`
	Debug bool `mapstructure:"debug"`
	// AdminKeyHash is the bcrypt hash of the admin key. Empty disables admin routes.
	AdminKeyHash string `mapstructure:"admin_key_hash"`
}

type DatabaseConfig struct {
	Mode       string        `mapstructure:"mode"` // sqlite | mysql | postgres
	SQLitePath string        `mapstructure:"sqlite_path"`
	DSN        string        `mapstructure:"dsn"`
	MaxOpen    int           `mapstructure:"max_open"`
	MaxIdle    int           `mapstructure:"max_idle"`
	MaxLife    time.Duration `mapstructure:"max_life"`
}

type CacheConfig struct {
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
	LocalGCInterval time.Duration `mapstructure:"local_gc_interval"`
	LocalPubSubBuf  int           `mapstructure:"local_pubsub_buf"`
}

type DiscordConfig struct {
	Token             string `mapstructure:"token"`
	AppID             string `mapstructure:"app_id"`
	GuildID           string `mapstructure:"guild_id"`
	GreetingChannelID string `mapstructure:"greeting_channel_id"`
	PlayerRole        string `mapstructure:"player_role"`
	WingsRole         string `mapstructure:"wings_role"`
	RegisterCommands  bool   `mapstructure:"register_commands"`
}

type ProgressionConfig struct {
	BaseChance        float64       `mapstructure:"base_chance"`
	BonusPerHour      float64       `mapstructure:"bonus_per_hour"`
	MaxChance         float64       `mapstructure:"max_chance"`
	Cooldown          time.Duration `mapstructure:"cooldown"`
	Timezone          string        `mapstructure:"timezone"`
	SwapTimeout       time.Duration `mapstructure:"swap_timeout"`
	LeaderboardSize   int           `mapstructure:"leaderboard_size"`
	CharacterCacheTTL time.Duration `mapstructure:"character_cache_ttl"`
	DevourMin         int           `mapstructure:"devour_min"`
	DevourMax         int           `mapstructure:"devour_max"`
	CursePenalty      int           `mapstructure:"curse_penalty"`
}

// Location resolves Timezone, falling back to time.Local.
func (p ProgressionConfig) Location() *time.Location {
	if p.Timezone == "" || p.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

type AbilitiesConfig struct {
	// Cooldowns overrides the built-in cooldown of an ability, keyed by command name.
	Cooldowns map[string]time.Duration `mapstructure:"cooldowns"`
}

type LocaleConfig struct {
	Default string   `mapstructure:"default"`
	Allowed []string `mapstructure:"allowed"`
}

// ClanStyle is the display override of one clan, keyed by clan key.
type ClanStyle struct {
	Name  string `mapstructure:"name"`
	Color string `mapstructure:"color"`
}

type SecurityConfig struct {
	JWTSecret      string        `mapstructure:"jwt_secret"`
	JWTTTLH        time.Duration `mapstructure:"jwt_ttl_h"`
	RateLimitRPS   float64       `mapstructure:"rate_limit_rps"`
	RateLimitBurst int           `mapstructure:"rate_limit_burst"`
	// AdminIPs restricts admin routes to these client IPs. Empty allows all.
	AdminIPs []string `mapstructure:"admin_ips"`
}

type SchedulerConfig struct {
	LoreRefresh   time.Duration `mapstructure:"lore_refresh"`
	MetricsSample time.Duration `mapstructure:"metrics_sample"`
}

// Load reads config from the given YAML file path. A missing file is not an
// error: defaults, a .env file and ELDERGOD_* variables still apply.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Names used by the first deployments of the bot.
	_ = v.BindEnv("discord.token", EnvPrefix+"_DISCORD_TOKEN", "DISCORD_TOKEN")
	_ = v.BindEnv("discord.greeting_channel_id", EnvPrefix+"_DISCORD_GREETING_CHANNEL_ID", "TEST_CHANNEL_ID")
	_ = v.BindEnv("discord.player_role", EnvPrefix+"_DISCORD_PLAYER_ROLE", "ROLE_PLAYER")
	_ = v.BindEnv("discord.wings_role", EnvPrefix+"_DISCORD_WINGS_ROLE", "ROLE_WINGS")
	_ = v.BindEnv("locale.default", EnvPrefix+"_LOCALE_DEFAULT", "DEFAULT_LANGUAGE")

	if path != "" {
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.admin_key_hash", "")
	v.SetDefault("database.mode", "sqlite")
	v.SetDefault("database.sqlite_path", "./data/eldergod.db")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open", 20)
	v.SetDefault("database.max_idle", 5)
	v.SetDefault("database.max_life", "1h")
	v.SetDefault("cache.redis_addr", "")
	v.SetDefault("cache.redis_password", "")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.local_gc_interval", "30s")
	v.SetDefault("cache.local_pubsub_buf", 256)
	v.SetDefault("discord.token", "")
	v.SetDefault("discord.app_id", "")
	v.SetDefault("discord.guild_id", "")
	v.SetDefault("discord.greeting_channel_id", "")
	v.SetDefault("discord.player_role", "Joueur")
	v.SetDefault("discord.wings_role", "Ailes")
	v.SetDefault("discord.register_commands", true)
	v.SetDefault("progression.base_chance", 20)
	v.SetDefault("progression.bonus_per_hour", 5)
	v.SetDefault("progression.max_chance", 80)
	v.SetDefault("progression.cooldown", "1h")
	v.SetDefault("progression.timezone", "Local")
	v.SetDefault("progression.swap_timeout", "60s")
	v.SetDefault("progression.leaderboard_size", 10)
	v.SetDefault("progression.character_cache_ttl", "5m")
	v.SetDefault("progression.devour_min", 3)
	v.SetDefault("progression.devour_max", 8)
	v.SetDefault("progression.curse_penalty", 5)
	v.SetDefault("locale.default", "fr")
	v.SetDefault("locale.allowed", []string{"en", "fr"})
	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_ttl_h", "12h")
	v.SetDefault("security.rate_limit_rps", 20)
	v.SetDefault("security.rate_limit_burst", 40)
	v.SetDefault("scheduler.lore_refresh", "10m")
	v.SetDefault("scheduler.metrics_sample", "1m")
}
