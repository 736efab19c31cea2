// Package character holds one user's progression state and the rules that
// decide whether a level-up may be attempted and how likely it is to succeed.
package character

import (
	"fmt"
	"math"
	"time"

	"github.com/nosgoth/eldergod/config"
)

// Params are the tunables of the probability engine.
type Params struct {
	BaseChance   float64 // percent
	BonusPerHour float64 // percent gained per hour since the last attempt
	MaxChance    float64 // percent cap
	Cooldown     time.Duration
	Location     *time.Location // defines "today"
}

func ParamsFromConfig(cfg config.ProgressionConfig) Params {
	return Params{
		BaseChance:   cfg.BaseChance,
		BonusPerHour: cfg.BonusPerHour,
		MaxChance:    cfg.MaxChance,
		Cooldown:     cfg.Cooldown,
		Location:     cfg.Location(),
	}
}

// Roller draws uniform floats in [0,1). *rand.Rand satisfies it.
type Roller interface {
	Float64() float64
}

// Character is the progression state of a single user.
type Character struct {
	UserID      int64
	Level       int
	LastAttempt *time.Time
	LastSuccess Day
}

// New returns a fresh level 1 character with no history.
func New(userID int64) *Character {
	return &Character{UserID: userID, Level: 1}
}

// Clone returns a deep copy.
func (c *Character) Clone() *Character {
	out := *c
	if c.LastAttempt != nil {
		t := *c.LastAttempt
		out.LastAttempt = &t
	}
	return &out
}

// LeveledUpOn reports whether the last success happened on or after day.
func (c *Character) LeveledUpOn(day Day) bool {
	return !c.LastSuccess.IsZero() && !c.LastSuccess.Before(day)
}

// CanAttemptLevelup checks, in order: bypass, the attempt cooldown, and the
// one-success-per-day rule.
func (c *Character) CanAttemptLevelup(now time.Time, p Params, bypass bool) (bool, string) {
	if bypass {
		return true, "Swim bonus active!"
	}
	if c.LastAttempt != nil {
		elapsed := now.Sub(*c.LastAttempt)
		if elapsed < p.Cooldown {
			return false, cooldownMessage(p.Cooldown - elapsed)
		}
	}
	if c.LeveledUpOn(DayOf(now, p.Location)) {
		return false, "You already leveled up today! Come back tomorrow."
	}
	return true, "Ready!"
}

func cooldownMessage(remaining time.Duration) string {
	secs := int(remaining / time.Second)
	minutes, seconds := secs/60, secs%60
	if minutes > 0 {
		return fmt.Sprintf("Wait %d minute(s) and %d second(s) before trying again.", minutes, seconds)
	}
	return fmt.Sprintf("Wait %d second(s) before trying again.", seconds)
}

// SuccessChance grows linearly with the fractional hours elapsed since the
// last attempt, capped at MaxChance.
func (c *Character) SuccessChance(now time.Time, p Params) float64 {
	if c.LastAttempt == nil {
		return p.BaseChance
	}
	hours := now.Sub(*c.LastAttempt).Hours()
	if hours < 0 {
		hours = 0
	}
	return math.Min(p.BaseChance+hours*p.BonusPerHour, p.MaxChance)
}

// Clamp bounds a percentage to [0,100].
func Clamp(p float64) float64 {
	return math.Max(0, math.Min(100, p))
}

// Attempt is the outcome of one evaluation of the probability engine.
type Attempt struct {
	Allowed    bool
	Success    bool
	Message    string
	BaseChance float64 // time-based chance before modifiers
	Chance     float64 // chance actually rolled against
	Modifier   int
}

// AttemptLevelup re-validates eligibility and, when allowed, records now as
// the last attempt, adds modifier to the time-based chance, clamps it and
// rolls against the adjusted value. A denied attempt mutates nothing.
func (c *Character) AttemptLevelup(now time.Time, p Params, bypass bool, modifier int, rng Roller) Attempt {
	ok, msg := c.CanAttemptLevelup(now, p, bypass)
	if !ok {
		return Attempt{Message: msg}
	}

	base := c.SuccessChance(now, p)
	chance := Clamp(base + float64(modifier))
	at := now.UTC()
	c.LastAttempt = &at

	res := Attempt{Allowed: true, BaseChance: base, Chance: chance, Modifier: modifier}
	if rng.Float64() < chance/100 {
		c.levelUp(now, p.Location)
		res.Success = true
		res.Message = fmt.Sprintf("Success! You are now level %d!", c.Level)
		return res
	}
	res.Message = fmt.Sprintf("Failed... try again later! (%.1f%% chance)", chance)
	return res
}

// ForceLevelup grants one level without rolling.
func (c *Character) ForceLevelup(now time.Time, loc *time.Location) {
	c.levelUp(now, loc)
}

func (c *Character) levelUp(now time.Time, loc *time.Location) {
	c.Level++
	c.LastSuccess = DayOf(now, loc)
}
