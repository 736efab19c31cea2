package character

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/nosgoth/eldergod/cache"
	"github.com/nosgoth/eldergod/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a user has no character yet.
var ErrNotFound = errors.New("character: not found")

const cacheKeyPrefix = "character:"

func cacheKey(userID int64) string {
	return cacheKeyPrefix + strconv.FormatInt(userID, 10)
}

// Repository persists characters. Reads outside a transaction go through a
// short-lived cache which every Save invalidates.
type Repository struct {
	db    *gorm.DB
	cache cache.Cache
	ttl   time.Duration
	inTx  bool
	gens  *generations
}

// generations counts invalidations per user. A read only caches its
// snapshot when no invalidation happened since it started.
type generations struct {
	mu sync.Mutex
	m  map[int64]uint64
}

func (g *generations) current(userID int64) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.m[userID]
}

// NewRepository creates a Repository. A nil cache or zero ttl disables caching.
func NewRepository(db *gorm.DB, c cache.Cache, ttl time.Duration) *Repository {
	return &Repository{db: db, cache: c, ttl: ttl, gens: &generations{m: make(map[int64]uint64)}}
}

// WithTx returns a Repository bound to tx. Reads bypass the cache.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx, cache: r.cache, ttl: r.ttl, inTx: true, gens: r.gens}
}

func (r *Repository) caching() bool {
	return r.cache != nil && r.ttl > 0
}

type snapshot struct {
	Level       int        `json:"level"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastSuccess string     `json:"last_success,omitempty"`
}

func (r *Repository) fromCache(ctx context.Context, userID int64) (*Character, bool) {
	raw, err := r.cache.Get(ctx, cacheKey(userID))
	if err != nil {
		return nil, false
	}
	var s snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, false
	}
	c := &Character{UserID: userID, Level: s.Level, LastAttempt: s.LastAttempt}
	if s.LastSuccess != "" {
		t, err := time.Parse("2006-01-02", s.LastSuccess)
		if err != nil {
			return nil, false
		}
		c.LastSuccess = DayFromTime(&t)
	}
	return c, true
}

// store caches c unless userID was invalidated after gen was taken.
func (r *Repository) store(ctx context.Context, c *Character, gen uint64) {
	raw, err := json.Marshal(snapshot{Level: c.Level, LastAttempt: c.LastAttempt, LastSuccess: c.LastSuccess.String()})
	if err != nil {
		return
	}
	r.gens.mu.Lock()
	defer r.gens.mu.Unlock()
	if r.gens.m[c.UserID] != gen {
		return
	}
	_ = r.cache.Set(ctx, cacheKey(c.UserID), string(raw), r.ttl)
}

// Invalidate drops the cached snapshot of userID. Reads already in flight
// will not cache what they loaded.
func (r *Repository) Invalidate(ctx context.Context, userID int64) {
	if r.cache == nil {
		return
	}
	r.gens.mu.Lock()
	defer r.gens.mu.Unlock()
	r.gens.m[userID]++
	_ = r.cache.Del(ctx, cacheKey(userID))
}

func toModel(c *Character) *model.Character {
	return &model.Character{
		DiscordID:             c.UserID,
		Level:                 c.Level,
		LastAttempt:           c.LastAttempt,
		LastSuccessfulLevelup: c.LastSuccess.Time(),
	}
}

func fromModel(m *model.Character) *Character {
	c := &Character{UserID: m.DiscordID, Level: m.Level, LastSuccess: DayFromTime(m.LastSuccessfulLevelup)}
	if m.LastAttempt != nil {
		t := m.LastAttempt.UTC()
		c.LastAttempt = &t
	}
	return c
}

// Get loads a character or returns ErrNotFound.
func (r *Repository) Get(ctx context.Context, userID int64) (*Character, error) {
	var gen uint64
	if !r.inTx && r.caching() {
		if c, ok := r.fromCache(ctx, userID); ok {
			return c, nil
		}
		gen = r.gens.current(userID)
	}
	var row model.Character
	err := r.db.WithContext(ctx).Where("discord_id = ?", userID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load character %d: %w", userID, err)
	}
	c := fromModel(&row)
	if !r.inTx && r.caching() {
		r.store(ctx, c, gen)
	}
	return c, nil
}

// Exists reports whether userID has a character, without creating one.
func (r *Repository) Exists(ctx context.Context, userID int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&model.Character{}).Where("discord_id = ?", userID).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count character %d: %w", userID, err)
	}
	return n > 0, nil
}

// Create inserts a level 1 character. Creating an existing user is a no-op
// and returns the stored row.
func (r *Repository) Create(ctx context.Context, userID int64) (*Character, error) {
	row := model.Character{DiscordID: userID, Level: 1}
	if err := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error; err != nil {
		return nil, fmt.Errorf("create character %d: %w", userID, err)
	}
	var stored model.Character
	if err := r.db.WithContext(ctx).Where("discord_id = ?", userID).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("reload character %d: %w", userID, err)
	}
	return fromModel(&stored), nil
}

// GetOrCreate loads userID's character, creating it on first contact.
func (r *Repository) GetOrCreate(ctx context.Context, userID int64) (*Character, error) {
	c, err := r.Get(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		return r.Create(ctx, userID)
	}
	return c, err
}

// Save upserts every progression column and invalidates the cache.
func (r *Repository) Save(ctx context.Context, c *Character) error {
	r.Invalidate(ctx, c.UserID)
	row := toModel(c)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "discord_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"level", "last_attempt", "last_successful_levelup", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("save character %d: %w", c.UserID, err)
	}
	return nil
}

// TopByLevel ranks characters by level, then by the earliest last success.
// Characters that never succeeded rank after those that did at equal level.
func (r *Repository) TopByLevel(ctx context.Context, limit int) ([]*Character, error) {
	var rows []model.Character
	err := r.db.WithContext(ctx).
		Order("level DESC").
		Order("CASE WHEN last_successful_levelup IS NULL THEN 1 ELSE 0 END").
		Order("last_successful_levelup ASC").
		Order("discord_id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("top characters: %w", err)
	}
	out := make([]*Character, len(rows))
	for i := range rows {
		out[i] = fromModel(&rows[i])
	}
	return out, nil
}

// LevelCounts returns the number of characters per level.
func (r *Repository) LevelCounts(ctx context.Context) (map[int]int64, error) {
	var rows []struct {
		Level int
		N     int64
	}
	err := r.db.WithContext(ctx).Model(&model.Character{}).
		Select("level, COUNT(*) AS n").
		Group("level").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count levels: %w", err)
	}
	out := make(map[int]int64, len(rows))
	for _, row := range rows {
		out[row.Level] = row.N
	}
	return out, nil
}
