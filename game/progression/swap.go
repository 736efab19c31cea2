package progression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nosgoth/eldergod/cache"
	"github.com/nosgoth/eldergod/game/ability"
	"github.com/nosgoth/eldergod/metrics"
	"github.com/nosgoth/eldergod/plugin/hook"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	swapAccept  = "accept"
	swapDecline = "decline"
)

func swapPendingKey(initiator int64) string { return "swap:pending:" + strconv.FormatInt(initiator, 10) }
func swapProposalKey(id string) string      { return "swap:proposal:" + id }
func swapDecisionKey(id string) string      { return "swap:decision:" + id }
func swapChannel(id string) string          { return "swap:" + id }

// SwapProposal is a pending level exchange awaiting the target's answer.
type SwapProposal struct {
	ID             string    `json:"id"`
	Initiator      Member    `json:"initiator"`
	Target         Member    `json:"target"`
	InitiatorLevel int       `json:"initiator_level"`
	TargetLevel    int       `json:"target_level"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// SwapResult is the outcome of a proposal.
type SwapResult struct {
	Proposal        *SwapProposal
	Accepted        bool
	TimedOut        bool
	InitiatorLevel  int // after the exchange
	TargetLevel     int
	InitiatorChange *ClanChange
	TargetChange    *ClanChange
}

// ProposeSwap validates and registers a swap proposal. Each initiator has at
// most one pending proposal.
func (c *Coordinator) ProposeSwap(ctx context.Context, m, target Member) (*SwapProposal, error) {
	start := time.Now()
	if err := c.requirePlayer(ctx, m, true); err != nil {
		return nil, err
	}
	a := c.catalog.MustGet(ability.Swap)

	ch, err := c.chars.GetOrCreate(ctx, m.ID)
	if err != nil {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	if err := c.requireLevel(ch, a); err != nil {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	if target.ID == m.ID {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, userErr(ErrSelfTarget, "You cannot swap with yourself!"))
	}
	if err := c.requirePlayer(ctx, target, false); err != nil {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	tch, err := c.chars.GetOrCreate(ctx, target.ID)
	if err != nil {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}

	p := &SwapProposal{
		ID:             uuid.NewString(),
		Initiator:      m,
		Target:         target,
		InitiatorLevel: ch.Level,
		TargetLevel:    tch.Level,
		ExpiresAt:      c.now().Add(c.opts.SwapTimeout),
	}
	ok, err := c.cache.SetNX(ctx, swapPendingKey(m.ID), p.ID, c.opts.SwapTimeout)
	if err != nil {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	if !ok {
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, userErr(ErrSwapPending, "You already have a pending swap proposal."))
	}
	raw, err := json.Marshal(p)
	if err != nil {
		_ = c.cache.Del(ctx, swapPendingKey(m.ID))
		return nil, fmt.Errorf("encode swap proposal: %w", err)
	}
	if err := c.cache.Set(ctx, swapProposalKey(p.ID), string(raw), c.opts.SwapTimeout); err != nil {
		_ = c.cache.Del(ctx, swapPendingKey(m.ID))
		return nil, c.abilityFailed(ctx, start, m.ID, a.Name, err)
	}
	return p, nil
}

// Proposal loads a pending proposal.
func (c *Coordinator) Proposal(ctx context.Context, id string) (*SwapProposal, error) {
	raw, err := c.cache.Get(ctx, swapProposalKey(id))
	if cache.IsNotFound(err) {
		return nil, userErr(ErrSwapUnknown, "This swap proposal has expired.")
	}
	if err != nil {
		return nil, fmt.Errorf("load swap proposal: %w", err)
	}
	var p SwapProposal
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("decode swap proposal: %w", err)
	}
	return &p, nil
}

// AnswerSwap records the target's decision. Only the target may answer and
// only the first answer counts.
func (c *Coordinator) AnswerSwap(ctx context.Context, id string, responderID int64, accept bool) (*SwapProposal, error) {
	p, err := c.Proposal(ctx, id)
	if err != nil {
		return nil, err
	}
	if responderID != p.Target.ID {
		return nil, userErr(ErrNotSwapTarget, "Only the targeted player can answer!")
	}
	decision := swapDecline
	if accept {
		decision = swapAccept
	}
	ttl := p.ExpiresAt.Sub(c.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	first, err := c.cache.SetNX(ctx, swapDecisionKey(id), decision, ttl)
	if err != nil {
		return nil, fmt.Errorf("store swap decision: %w", err)
	}
	if !first {
		return nil, userErr(ErrSwapUnknown, "This swap proposal was already answered.")
	}
	if err := c.pubsub.Publish(ctx, swapChannel(id), decision); err != nil {
		return nil, fmt.Errorf("publish swap decision: %w", err)
	}
	return p, nil
}

// AwaitSwap blocks until the target answers p, the proposal expires or ctx
// ends, then applies the exchange on acceptance. Decline and timeout change
// nothing.
func (c *Coordinator) AwaitSwap(ctx context.Context, p *SwapProposal) (*SwapResult, error) {
	start := time.Now()
	defer func() {
		_ = c.cache.Del(context.WithoutCancel(ctx), swapPendingKey(p.Initiator.ID), swapProposalKey(p.ID), swapDecisionKey(p.ID))
	}()

	msgs, cancel, err := c.pubsub.Subscribe(ctx, swapChannel(p.ID))
	if err != nil {
		return nil, fmt.Errorf("subscribe swap decision: %w", err)
	}
	defer cancel()

	waitCtx, stop := context.WithTimeout(ctx, p.ExpiresAt.Sub(c.now()))
	defer stop()

	decision, err := c.cache.Get(ctx, swapDecisionKey(p.ID))
	if err != nil && !cache.IsNotFound(err) {
		return nil, fmt.Errorf("load swap decision: %w", err)
	}
	for decision == "" {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil, errors.New("swap decision channel closed")
			}
			if msg.Payload == swapAccept || msg.Payload == swapDecline {
				decision = msg.Payload
			}
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return c.swapClosed(ctx, start, p, "timeout"), nil
		}
	}
	if decision == swapDecline {
		return c.swapClosed(ctx, start, p, "declined"), nil
	}
	return c.executeSwap(context.WithoutCancel(ctx), start, p)
}

func (c *Coordinator) swapClosed(ctx context.Context, start time.Time, p *SwapProposal, outcome string) *SwapResult {
	metrics.SwapOutcomes.WithLabelValues(outcome).Inc()
	tid := p.Target.ID
	c.record(ctx, start, p.Initiator.ID, &tid, "swap "+outcome, map[string]string{"proposal": p.ID}, nil)
	c.trigger(ctx, hook.OnSwapCompleted, hook.SwapResult{
		ProposalID:  p.ID,
		InitiatorID: p.Initiator.ID,
		TargetID:    p.Target.ID,
		TimedOut:    outcome == "timeout",
	})
	return &SwapResult{
		Proposal:       p,
		TimedOut:       outcome == "timeout",
		InitiatorLevel: p.InitiatorLevel,
		TargetLevel:    p.TargetLevel,
	}
}

func (c *Coordinator) executeSwap(ctx context.Context, start time.Time, p *SwapProposal) (*SwapResult, error) {
	unlock := c.locks.Lock(p.Initiator.ID, p.Target.ID)
	defer unlock()

	var oldI, oldT int
	res := &SwapResult{Proposal: p, Accepted: true}
	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		chars := c.chars.WithTx(tx)
		ich, err := chars.GetOrCreate(ctx, p.Initiator.ID)
		if err != nil {
			return err
		}
		tch, err := chars.GetOrCreate(ctx, p.Target.ID)
		if err != nil {
			return err
		}
		oldI, oldT = ich.Level, tch.Level
		ich.Level, tch.Level = tch.Level, ich.Level
		if err := chars.Save(ctx, ich); err != nil {
			return err
		}
		res.InitiatorLevel, res.TargetLevel = ich.Level, tch.Level
		return chars.Save(ctx, tch)
	})
	tid := p.Target.ID
	if err != nil {
		c.record(ctx, start, p.Initiator.ID, &tid, "swap (error)", nil, err)
		return nil, fmt.Errorf("swap %s: %w", p.ID, err)
	}
	c.chars.Invalidate(ctx, p.Initiator.ID)
	c.chars.Invalidate(ctx, p.Target.ID)

	res.InitiatorChange = c.changeClan(ctx, p.Initiator.ID, oldI, res.InitiatorLevel)
	res.TargetChange = c.changeClan(ctx, p.Target.ID, oldT, res.TargetLevel)

	metrics.SwapOutcomes.WithLabelValues("accepted").Inc()
	metrics.AbilityUses.WithLabelValues(ability.Swap, "used").Inc()
	iid := p.Initiator.ID
	c.record(ctx, start, p.Initiator.ID, &tid, "swap with "+strconv.FormatInt(p.Target.ID, 10),
		map[string]int{"old_level": oldI, "new_level": res.InitiatorLevel}, nil)
	c.record(ctx, start, p.Target.ID, &iid, "swap with "+strconv.FormatInt(p.Initiator.ID, 10),
		map[string]int{"old_level": oldT, "new_level": res.TargetLevel}, nil)
	c.trigger(ctx, hook.OnSwapCompleted, hook.SwapResult{
		ProposalID:  p.ID,
		InitiatorID: p.Initiator.ID,
		TargetID:    p.Target.ID,
		Accepted:    true,
	})
	c.logger.Info("levels swapped",
		zap.String("proposal", p.ID),
		zap.Int64("initiator", p.Initiator.ID),
		zap.Int64("target", p.Target.ID),
		zap.Int("initiator_level", res.InitiatorLevel),
		zap.Int("target_level", res.TargetLevel))
	return res, nil
}
