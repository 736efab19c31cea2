// Package progression orchestrates level-up attempts and abilities over the
// character, ledger and cooldown stores, and reports the outcome.
package progression

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nosgoth/eldergod/audit"
	"github.com/nosgoth/eldergod/cache"
	"github.com/nosgoth/eldergod/config"
	"github.com/nosgoth/eldergod/game/ability"
	"github.com/nosgoth/eldergod/game/bonus"
	"github.com/nosgoth/eldergod/game/character"
	"github.com/nosgoth/eldergod/game/clan"
	"github.com/nosgoth/eldergod/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Rand is the randomness source of the coordinator. *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  Rand
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// Auditor receives one entry per completed operation. *audit.Service
// satisfies it.
type Auditor interface {
	Log(entry audit.Entry)
}

// Options are the tunables of the coordinator.
type Options struct {
	Params          character.Params
	PlayerRole      string
	WingsRole       string
	DevourMin       int
	DevourMax       int
	CursePenalty    int // positive; subtracted from the target's chance
	SwapTimeout     time.Duration
	LeaderboardSize int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Params:          character.ParamsFromConfig(cfg.Progression),
		PlayerRole:      cfg.Discord.PlayerRole,
		WingsRole:       cfg.Discord.WingsRole,
		DevourMin:       cfg.Progression.DevourMin,
		DevourMax:       cfg.Progression.DevourMax,
		CursePenalty:    cfg.Progression.CursePenalty,
		SwapTimeout:     cfg.Progression.SwapTimeout,
		LeaderboardSize: cfg.Progression.LeaderboardSize,
	}
}

// Deps are the collaborators of the coordinator. Hooks, Audit, Rand and Clock
// are optional.
type Deps struct {
	DB         *gorm.DB
	Characters *character.Repository
	Abilities  *ability.Manager
	Catalog    *ability.Catalog
	Ledger     *bonus.Ledger
	Clans      *clan.Table
	Guild      Guild
	Cache      cache.Cache
	PubSub     cache.PubSub
	Audit      Auditor
	Hooks      *hook.Center
	Logger     *zap.Logger
	Rand       Rand
	Clock      func() time.Time
}

// Coordinator runs every progression command.
type Coordinator struct {
	db        *gorm.DB
	chars     *character.Repository
	abilities *ability.Manager
	catalog   *ability.Catalog
	ledger    *bonus.Ledger
	clans     *clan.Table
	guild     Guild
	cache     cache.Cache
	pubsub    cache.PubSub
	audit     Auditor
	hooks     *hook.Center
	logger    *zap.Logger
	rng       Rand
	now       func() time.Time
	opts      Options
	locks     *locker
}

func New(d Deps, opts Options) *Coordinator {
	c := &Coordinator{
		db:        d.DB,
		chars:     d.Characters,
		abilities: d.Abilities,
		catalog:   d.Catalog,
		ledger:    d.Ledger,
		clans:     d.Clans,
		guild:     d.Guild,
		cache:     d.Cache,
		pubsub:    d.PubSub,
		audit:     d.Audit,
		hooks:     d.Hooks,
		logger:    d.Logger,
		rng:       d.Rand,
		now:       d.Clock,
		opts:      opts,
		locks:     newLocker(),
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	if c.hooks == nil {
		c.hooks = hook.NewCenter(c.logger)
	}
	if c.rng == nil {
		c.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed))
	}
	c.rng = &lockedRand{r: c.rng}
	if c.now == nil {
		c.now = time.Now
	}
	if c.catalog == nil {
		c.catalog = ability.NewCatalog(nil)
	}
	if c.opts.SwapTimeout <= 0 {
		c.opts.SwapTimeout = 60 * time.Second
	}
	if c.opts.LeaderboardSize <= 0 {
		c.opts.LeaderboardSize = 10
	}
	if c.opts.DevourMax < c.opts.DevourMin {
		c.opts.DevourMax = c.opts.DevourMin
	}
	return c
}

// Clans exposes the clan table for rendering.
func (c *Coordinator) Clans() *clan.Table { return c.clans }

// Options returns the effective tunables.
func (c *Coordinator) Options() Options { return c.opts }

type traceKey struct{}

// WithTrace attaches a trace id to ctx; audit entries carry it.
func WithTrace(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

// TraceID returns the trace id attached to ctx, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func traceOf(ctx context.Context) string {
	if id := TraceID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func (c *Coordinator) record(ctx context.Context, start time.Time, userID int64, target *int64, action string, detail interface{}, err error) {
	if c.audit == nil {
		return
	}
	uid := userID
	e := audit.Entry{
		TraceID:    traceOf(ctx),
		UserID:     &uid,
		TargetID:   target,
		Action:     action,
		Detail:     detail,
		DurationMs: int(time.Since(start).Milliseconds()),
	}
	if err != nil {
		e.Error = err.Error()
	}
	c.audit.Log(e)
}

func (c *Coordinator) trigger(ctx context.Context, event string, data interface{}) {
	if _, err := c.hooks.Trigger(ctx, event, data); err != nil && !errors.Is(err, hook.ErrInterrupt) {
		c.logger.Warn("hook trigger failed", zap.String("event", event), zap.Error(err))
	}
}

func (c *Coordinator) requirePlayer(ctx context.Context, m Member, self bool) error {
	ok, err := c.guild.HasRole(ctx, m.ID, c.opts.PlayerRole)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if self {
		return userErr(ErrNotPlayer, "You need the **%s** role to take part.", c.opts.PlayerRole)
	}
	return userErr(ErrNotPlayer, "**%s** does not have the **%s** role.", m.Name, c.opts.PlayerRole)
}

func (c *Coordinator) requireLevel(ch *character.Character, a ability.Ability) error {
	if ch.Level < a.MinLevel {
		return userErr(ErrLevelTooLow, "You must be level %d or higher to use this ability.", a.MinLevel)
	}
	return nil
}

// claim marks the ability used inside tx, or fails with ErrOnCooldown.
func (c *Coordinator) claim(ctx context.Context, tx *gorm.DB, userID int64, a ability.Ability) error {
	if a.Cooldown <= 0 {
		return nil
	}
	ok, msg, err := c.abilities.WithTx(tx).TryUse(ctx, userID, a.Name, a.Cooldown)
	if err != nil {
		return err
	}
	if !ok {
		return userErr(ErrOnCooldown, "Ability on cooldown. %s", msg)
	}
	return nil
}

// ClanChange describes a clan transition and how the role update went.
type ClanChange struct {
	From         clan.Clan
	To           clan.Clan
	RoleAssigned bool
	Unlocked     []clan.Unlock // abilities unlocked by the new level range
}

// changeClan assigns the new clan role when oldLevel and newLevel resolve to
// different clans. On a permission failure the user is told by direct message
// which role to pick up.
func (c *Coordinator) changeClan(ctx context.Context, userID int64, oldLevel, newLevel int) *ClanChange {
	if !c.clans.HasChanged(oldLevel, newLevel) {
		return nil
	}
	ch := &ClanChange{From: c.clans.ByLevel(oldLevel), To: c.clans.ByLevel(newLevel)}
	for _, u := range c.clans.UnlockedAbilities(newLevel) {
		if u.Level > oldLevel {
			ch.Unlocked = append(ch.Unlocked, u)
		}
	}

	err := c.guild.AssignClanRole(ctx, userID, ch.To, c.clans.RoleNames())
	switch {
	case err == nil:
		ch.RoleAssigned = true
	case errors.Is(err, ErrPermissionDenied):
		notice := Notice{
			Title: "Evolution!",
			Body: "You are now **" + ch.To.Title + "** of the **" + ch.To.Name + "** clan.\n" +
				"I cannot change your roles, please assign yourself the **" + ch.To.Name + "** role.",
			Color: ch.To.Color,
		}
		if err := c.guild.SendDirect(ctx, userID, notice); err != nil {
			c.logger.Warn("clan role fallback message failed", zap.Int64("user_id", userID), zap.Error(err))
		}
	default:
		c.logger.Error("assign clan role", zap.Int64("user_id", userID), zap.String("clan", ch.To.Key), zap.Error(err))
	}

	c.trigger(ctx, hook.OnClanChanged, hook.ClanChange{UserID: userID, From: ch.From.Key, To: ch.To.Key, Level: newLevel})
	return ch
}
