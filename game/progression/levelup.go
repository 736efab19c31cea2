package progression

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nosgoth/eldergod/game/ability"
	"github.com/nosgoth/eldergod/game/bonus"
	"github.com/nosgoth/eldergod/game/clan"
	"github.com/nosgoth/eldergod/metrics"
	"github.com/nosgoth/eldergod/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// errDenied rolls back an attempt vetoed by a BeforeLevelup hook.
var errDenied = errors.New("attempt denied")

const vetoMessage = "The Elder God ignores you for now. Try again later."

// LevelupResult is the outcome of a level-up attempt or of chaussette.
type LevelupResult struct {
	Allowed    bool
	Success    bool
	Guaranteed bool
	Message    string
	BaseChance float64
	Chance     float64 // chance rolled against, 100 when forced
	Modifier   int     // devour bonus plus curse penalty applied
	OldLevel   int
	NewLevel   int
	Clan       clan.Clan
	Change     *ClanChange
	Token      bonus.Token
}

// Levelup runs one level-up attempt for m.
func (c *Coordinator) Levelup(ctx context.Context, m Member) (*LevelupResult, error) {
	start := time.Now()
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(m.ID)
	defer unlock()

	now := c.now()
	res := &LevelupResult{}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chars := c.chars.WithTx(tx)
		ch, err := chars.GetOrCreate(ctx, m.ID)
		if err != nil {
			return err
		}
		res.OldLevel = ch.Level

		tok, err := c.ledger.WithTx(tx).Consume(ctx, m.ID)
		if err != nil {
			return err
		}
		res.Token = tok

		req := &hook.LevelupRequest{UserID: m.ID, Level: ch.Level, Modifier: tok.Modifier()}
		if out, err := c.hooks.Trigger(ctx, hook.BeforeLevelup, req); errors.Is(err, hook.ErrInterrupt) {
			res.Message = vetoMessage
			return errDenied
		} else if r, ok := out.(*hook.LevelupRequest); ok && r != nil {
			req = r
		}

		att := ch.AttemptLevelup(now, c.opts.Params, tok.Swim, req.Modifier, c.rng)
		res.Allowed, res.Success, res.Message = att.Allowed, att.Success, att.Message
		res.BaseChance, res.Chance, res.Modifier = att.BaseChance, att.Chance, att.Modifier

		if tok.Guaranteed {
			if !att.Success {
				ch.ForceLevelup(now, c.opts.Params.Location)
			}
			res.Allowed, res.Success, res.Guaranteed = true, true, true
			res.Chance = 100
			res.Message = fmt.Sprintf("Success guaranteed by the sacrifice! You are now level %d!", ch.Level)
		}
		if !res.Allowed {
			// The token reset commits, the character stays as it was.
			return nil
		}

		res.NewLevel = ch.Level
		return chars.Save(ctx, ch)
	})
	vetoed := errors.Is(err, errDenied)
	if vetoed || (err == nil && !res.Allowed) {
		metrics.LevelupAttempts.WithLabelValues("denied").Inc()
		c.record(ctx, start, m.ID, nil, "levelup attempt (fail)", map[string]interface{}{
			"denied":  true,
			"vetoed":  vetoed,
			"reason":  res.Message,
			"cleared": !vetoed && !res.Token.Neutral(),
		}, nil)
		res.Allowed, res.Success = false, false
		res.NewLevel = res.OldLevel
		if vetoed {
			res.Token = bonus.Token{}
		}
		res.Clan = c.clans.ByLevel(res.OldLevel)
		return res, nil
	}
	if err != nil {
		c.record(ctx, start, m.ID, nil, "levelup attempt (error)", nil, err)
		return nil, fmt.Errorf("levelup %d: %w", m.ID, err)
	}
	c.chars.Invalidate(ctx, m.ID)

	res.Clan = c.clans.ByLevel(res.NewLevel)
	if res.Success {
		res.Change = c.changeClan(ctx, m.ID, res.OldLevel, res.NewLevel)
	}

	outcome := "fail"
	switch {
	case res.Guaranteed:
		outcome = "guaranteed"
	case res.Success:
		outcome = "success"
	}
	metrics.LevelupAttempts.WithLabelValues(outcome).Inc()

	action := "levelup attempt (fail)"
	if res.Success {
		action = "levelup attempt (success)"
	}
	c.record(ctx, start, m.ID, nil, action, map[string]interface{}{
		"old_level":  res.OldLevel,
		"new_level":  res.NewLevel,
		"chance":     res.Chance,
		"modifier":   res.Modifier,
		"guaranteed": res.Guaranteed,
		"swim":       res.Token.Swim,
	}, nil)
	c.trigger(ctx, hook.AfterLevelup, hook.LevelupResult{
		UserID:     m.ID,
		OldLevel:   res.OldLevel,
		NewLevel:   res.NewLevel,
		Chance:     res.Chance,
		Success:    res.Success,
		Guaranteed: res.Guaranteed,
	})
	c.logger.Debug("levelup",
		zap.Int64("user_id", m.ID),
		zap.Bool("success", res.Success),
		zap.Float64("chance", res.Chance),
		zap.Int("level", res.NewLevel))
	return res, nil
}

// Chaussette grants one level without rolling and discards every pending
// bonus of the user.
func (c *Coordinator) Chaussette(ctx context.Context, m Member) (*LevelupResult, error) {
	start := time.Now()
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return nil, err
	}
	unlock := c.locks.Lock(m.ID)
	defer unlock()

	a := c.catalog.MustGet(ability.Chaussette)
	now := c.now()
	res := &LevelupResult{Allowed: true, Success: true, Chance: 100}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chars := c.chars.WithTx(tx)
		ch, err := chars.GetOrCreate(ctx, m.ID)
		if err != nil {
			return err
		}
		if err := c.requireLevel(ch, a); err != nil {
			return err
		}
		if err := c.claim(ctx, tx, m.ID, a); err != nil {
			return err
		}
		res.OldLevel = ch.Level
		ch.ForceLevelup(now, c.opts.Params.Location)
		res.NewLevel = ch.Level

		if res.Token, err = c.ledger.WithTx(tx).Consume(ctx, m.ID); err != nil {
			return err
		}
		return chars.Save(ctx, ch)
	})
	if err != nil {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	c.chars.Invalidate(ctx, m.ID)

	res.Message = "You shouted CHAUSSETTE and gained **1 level**!"
	res.Clan = c.clans.ByLevel(res.NewLevel)
	res.Change = c.changeClan(ctx, m.ID, res.OldLevel, res.NewLevel)

	c.abilityUsed(ctx, start, m.ID, nil, a.Name, "chaussette", map[string]interface{}{
		"old_level": res.OldLevel,
		"new_level": res.NewLevel,
	})
	return res, nil
}

// GrantGuarantee makes the next level-up attempt of userID succeed.
func (c *Coordinator) GrantGuarantee(ctx context.Context, userID int64) error {
	start := time.Now()
	err := c.ledger.Guarantee(ctx, userID)
	c.record(ctx, start, userID, nil, "sacrifice (guaranteed levelup)", nil, err)
	if err != nil {
		return fmt.Errorf("guarantee %d: %w", userID, err)
	}
	return nil
}

// abilityFailed counts a denied ability and wraps infrastructure errors.
// Validation errors are returned unchanged.
func (c *Coordinator) abilityFailed(ctx context.Context, start time.Time, userID int64, name string, err error) error {
	if _, ok := UserMessage(err); ok {
		metrics.AbilityUses.WithLabelValues(name, "denied").Inc()
		return err
	}
	c.record(ctx, start, userID, nil, name+" (error)", nil, err)
	return fmt.Errorf("%s by %d: %w", name, userID, err)
}

func (c *Coordinator) abilityUsed(ctx context.Context, start time.Time, userID int64, target *int64, name, action string, detail interface{}) {
	metrics.AbilityUses.WithLabelValues(name, "used").Inc()
	c.record(ctx, start, userID, target, action, detail, nil)
	use := hook.AbilityUse{UserID: userID, Ability: name}
	if target != nil {
		use.TargetID = *target
	}
	c.trigger(ctx, hook.OnAbilityUsed, use)
}
