package progression

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nosgoth/eldergod/game/ability"
	"github.com/nosgoth/eldergod/game/character"
	"github.com/nosgoth/eldergod/game/clan"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DevourResult reports the bonus added by devour.
type DevourResult struct {
	Amount int
	Clan   clan.Clan
}

// Devour adds a random bonus to the user's next level-up attempt.
func (c *Coordinator) Devour(ctx context.Context, m Member) (*DevourResult, error) {
	start := time.Now()
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(m.ID)
	defer unlock()

	a := c.catalog.MustGet(ability.Devour)
	res := &DevourResult{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ch, err := c.chars.WithTx(tx).GetOrCreate(ctx, m.ID)
		if err != nil {
			return err
		}
		if err := c.requireLevel(ch, a); err != nil {
			return err
		}
		if err := c.claim(ctx, tx, m.ID, a); err != nil {
			return err
		}
		res.Clan = c.clans.ByLevel(ch.Level)
		res.Amount = c.opts.DevourMin + c.rng.IntN(c.opts.DevourMax-c.opts.DevourMin+1)
		return c.ledger.WithTx(tx).AddDevour(ctx, m.ID, res.Amount)
	})
	if err != nil {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	c.abilityUsed(ctx, start, m.ID, nil, a.Name, fmt.Sprintf("devour (+%d%%)", res.Amount), map[string]int{"bonus": res.Amount})
	return res, nil
}

// Swim lets the next attempt ignore the cooldown and the daily limit. It is
// only available while a normal attempt would be refused.
func (c *Coordinator) Swim(ctx context.Context, m Member) (clan.Clan, error) {
	start := time.Now()
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return clan.Clan{}, err
	}
	unlock := c.locks.Lock(m.ID)
	defer unlock()

	a := c.catalog.MustGet(ability.Swim)
	now := c.now()
	var cl clan.Clan
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ch, err := c.chars.WithTx(tx).GetOrCreate(ctx, m.ID)
		if err != nil {
			return err
		}
		if err := c.requireLevel(ch, a); err != nil {
			return err
		}
		if ok, _ := ch.CanAttemptLevelup(now, c.opts.Params, false); ok {
			return userErr(ErrNotNeeded, "You have not leveled up today yet. Use `/levelup` normally.")
		}
		if err := c.claim(ctx, tx, m.ID, a); err != nil {
			return err
		}
		cl = c.clans.ByLevel(ch.Level)
		return c.ledger.WithTx(tx).ActivateSwim(ctx, m.ID)
	})
	if err != nil {
		return clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	c.abilityUsed(ctx, start, m.ID, nil, a.Name, "swim (bypass cooldown)", nil)
	return cl, nil
}

// CurseResult reports a curse and whether the target could be told.
type CurseResult struct {
	Penalty  int
	Notified bool
	Clan     clan.Clan
}

// Curse lowers the chance of the target's next level-up attempt.
func (c *Coordinator) Curse(ctx context.Context, m, target Member) (*CurseResult, error) {
	start := time.Now()
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(m.ID)
	defer unlock()

	a := c.catalog.MustGet(ability.Curse)
	res := &CurseResult{Penalty: c.opts.CursePenalty}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ch, err := c.chars.WithTx(tx).GetOrCreate(ctx, m.ID)
		if err != nil {
			return err
		}
		if err := c.requireLevel(ch, a); err != nil {
			return err
		}
		if target.ID == m.ID {
			return userErr(ErrSelfTarget, "You cannot curse yourself!")
		}
		if err := c.requirePlayer(ctx, target, false); err != nil {
			return err
		}
		if err := c.claim(ctx, tx, m.ID, a); err != nil {
			return err
		}
		res.Clan = c.clans.ByLevel(ch.Level)
		return c.ledger.WithTx(tx).AddCurse(ctx, target.ID, -c.opts.CursePenalty)
	})
	if err != nil {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}

	notice := Notice{
		Title: "Curse!",
		Body: fmt.Sprintf("%s cursed you!\n\nYour next level-up attempt has **-%d%%** chance.",
			m.Name, c.opts.CursePenalty),
		Color: 0x992d22,
	}
	res.Notified = c.guild.SendDirect(ctx, target.ID, notice) == nil

	tid := target.ID
	c.abilityUsed(ctx, start, m.ID, &tid, a.Name, "curse on "+strconv.FormatInt(target.ID, 10),
		map[string]interface{}{"penalty": -c.opts.CursePenalty, "notified": res.Notified})
	return res, nil
}

// Evolve grants the wings role.
func (c *Coordinator) Evolve(ctx context.Context, m Member) (clan.Clan, error) {
	start := time.Now()
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return clan.Clan{}, err
	}
	a := c.catalog.MustGet(ability.Evolve)

	ch, err := c.chars.GetOrCreate(ctx, m.ID)
	if err != nil {
		return clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	if err := c.requireLevel(ch, a); err != nil {
		return clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	held, err := c.guild.HasRole(ctx, m.ID, c.opts.WingsRole)
	if err != nil {
		return clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	if held {
		return clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name,
			userErr(ErrAlreadyHeld, "You already have the wings of Raziel!"))
	}
	if err := c.guild.GrantRole(ctx, m.ID, c.opts.WingsRole); err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			err = userErr(ErrPermissionDenied, "I cannot give you the role. Please assign yourself the **%s** role manually.", c.opts.WingsRole)
		}
		return clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	c.abilityUsed(ctx, start, m.ID, nil, a.Name, "evolve (obtained wings)", nil)
	return c.clans.ByLevel(ch.Level), nil
}

// RankEntry is one row of a ranking.
type RankEntry struct {
	Rank        int        `json:"rank"`
	UserID      int64      `json:"user_id,string"`
	Level       int        `json:"level"`
	Clan        clan.Clan  `json:"-"`
	ClanKey     string     `json:"clan"`
	ClanName    string     `json:"clan_name"`
	LastAttempt *time.Time `json:"last_attempt,omitempty"`
	LastSuccess string     `json:"last_success,omitempty"`
	Chance      float64    `json:"chance"`
}

func (c *Coordinator) rank(ctx context.Context, limit int) ([]RankEntry, error) {
	top, err := c.chars.TopByLevel(ctx, limit)
	if err != nil {
		return nil, err
	}
	now := c.now()
	out := make([]RankEntry, len(top))
	for i, ch := range top {
		cl := c.clans.ByLevel(ch.Level)
		out[i] = RankEntry{
			Rank:        i + 1,
			UserID:      ch.UserID,
			Level:       ch.Level,
			Clan:        cl,
			ClanKey:     cl.Key,
			ClanName:    cl.Name,
			LastAttempt: ch.LastAttempt,
			LastSuccess: ch.LastSuccess.String(),
			Chance:      ch.SuccessChance(now, c.opts.Params),
		}
	}
	return out, nil
}

// Leaderboard ranks the top characters. limit is clamped to [1,100]; zero
// uses the configured size.
func (c *Coordinator) Leaderboard(ctx context.Context, limit int) ([]RankEntry, error) {
	if limit <= 0 {
		limit = c.opts.LeaderboardSize
	}
	if limit > 100 {
		limit = 100
	}
	entries, err := c.rank(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return entries, nil
}

// Spectral shows the top characters with their live success chance.
func (c *Coordinator) Spectral(ctx context.Context, m Member) ([]RankEntry, clan.Clan, error) {
	start := time.Now()
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return nil, clan.Clan{}, err
	}
	a := c.catalog.MustGet(ability.Spectral)

	ch, err := c.chars.GetOrCreate(ctx, m.ID)
	if err != nil {
		return nil, clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	if err := c.requireLevel(ch, a); err != nil {
		return nil, clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	entries, err := c.rank(ctx, c.opts.LeaderboardSize)
	if err != nil {
		return nil, clan.Clan{}, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	if len(entries) == 0 {
		return nil, clan.Clan{}, userErr(ErrNoCharacter, "No character found.")
	}
	c.abilityUsed(ctx, start, m.ID, nil, a.Name, "spectral (view leaderboard)", nil)
	return entries, c.clans.ByLevel(ch.Level), nil
}

// StatsView is the private status of a character.
type StatsView struct {
	Character  *character.Character
	Clan       clan.Clan
	CanAttempt bool
	Status     string
	Chance     float64
	Pending    int // devour bonus plus curse penalty waiting for the next attempt
	Unlocked   []clan.Unlock
	Next       *clan.Unlock
	Wings      bool
}

// Stats returns the caller's own progression status, creating the character
// on first contact.
func (c *Coordinator) Stats(ctx context.Context, m Member) (*StatsView, error) {
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return nil, err
	}
	ch, err := c.chars.GetOrCreate(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("stats %d: %w", m.ID, err)
	}
	tok, err := c.ledger.Peek(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("stats %d: %w", m.ID, err)
	}
	now := c.now()
	v := &StatsView{
		Character: ch,
		Clan:      c.clans.ByLevel(ch.Level),
		Chance:    ch.SuccessChance(now, c.opts.Params),
		Pending:   tok.Modifier(),
		Unlocked:  c.clans.UnlockedAbilities(ch.Level),
	}
	v.CanAttempt, v.Status = ch.CanAttemptLevelup(now, c.opts.Params, tok.Swim)
	if next, ok := c.clans.NextUnlock(ch.Level); ok {
		v.Next = &next
	}
	if v.Clan.HasWings {
		if v.Wings, err = c.guild.HasRole(ctx, m.ID, c.opts.WingsRole); err != nil {
			return nil, fmt.Errorf("stats %d: %w", m.ID, err)
		}
	}
	return v, nil
}

// ProfileView is the public status of a character.
type ProfileView struct {
	Member    Member
	Character *character.Character
	Clan      clan.Clan
	Wings     bool
}

// Profile shows target's public status. Unlike Stats it never creates a
// character.
func (c *Coordinator) Profile(ctx context.Context, target Member) (*ProfileView, error) {
	if err := c.requirePlayer(ctx, target, false); err != nil {
		return nil, err
	}
	ch, err := c.chars.Get(ctx, target.ID)
	if errors.Is(err, character.ErrNotFound) {
		return nil, userErr(ErrNoCharacter, "**%s** has no character yet.", target.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("profile %d: %w", target.ID, err)
	}
	v := &ProfileView{Member: target, Character: ch, Clan: c.clans.ByLevel(ch.Level)}
	if v.Clan.HasWings {
		if v.Wings, err = c.guild.HasRole(ctx, target.ID, c.opts.WingsRole); err != nil {
			return nil, fmt.Errorf("profile %d: %w", target.ID, err)
		}
	}
	return v, nil
}

// ClanOf returns the clan of userID for display. Users without a character
// belong to the first clan.
func (c *Coordinator) ClanOf(ctx context.Context, userID int64) clan.Clan {
	ch, err := c.chars.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, character.ErrNotFound) {
			c.logger.Warn("clan lookup", zap.Int64("user_id", userID), zap.Error(err))
		}
		return c.clans.ByLevel(1)
	}
	return c.clans.ByLevel(ch.Level)
}
