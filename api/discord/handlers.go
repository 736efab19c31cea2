package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nosgoth/eldergod/audit"
	"github.com/nosgoth/eldergod/game/lore"
	"github.com/nosgoth/eldergod/game/progression"
	"go.uber.org/zap"
)

// Handlers bundles the command handlers.
type Handlers struct {
	prog   *progression.Coordinator
	lore   *lore.Service
	audit  progression.Auditor
	logger *zap.Logger
}

// NewHandlers creates the command handlers. audit may be nil.
func NewHandlers(prog *progression.Coordinator, ls *lore.Service, a progression.Auditor, logger *zap.Logger) *Handlers {
	return &Handlers{prog: prog, lore: ls, audit: a, logger: logger}
}

// RegisterHandlers wires every command, component and autocomplete handler
// into r.
func (h *Handlers) RegisterHandlers(r *Router) {
	// Commands gated on the player role look it up over REST before any
	// work, so they answer through a placeholder.
	r.OnDeferred("levelup", true, h.Levelup)
	r.OnDeferred("stats", true, h.Stats)
	r.On("profile", h.Profile)
	r.On("quote", h.Quote)
	r.OnAutocomplete("quote", h.QuoteAutocomplete)
	r.OnDeferred("devour", true, h.Devour)
	r.OnDeferred("chaussette", true, h.Chaussette)
	r.OnDeferred("swim", true, h.Swim)
	r.OnDeferred("curse", true, h.Curse)
	r.OnDeferred("swap", false, h.Swap)
	r.OnComponent("swap", h.SwapAnswer)
	r.OnDeferred("evolve", true, h.Evolve)
	r.OnDeferred("spectral", true, h.Spectral)
	r.ColorErrors(func(ctx context.Context, userID int64) int { return h.prog.ClanOf(ctx, userID).Color })
}

func private(e *discordgo.MessageEmbed) *Reply {
	return &Reply{Embeds: []*discordgo.MessageEmbed{e}, Ephemeral: true}
}

func (h *Handlers) location() *time.Location {
	if loc := h.prog.Options().Params.Location; loc != nil {
		return loc
	}
	return time.Local
}

func (h *Handlers) Levelup(ctx context.Context, req *Request) (*Reply, error) {
	res, err := h.prog.Levelup(ctx, req.Caller)
	if err != nil {
		return nil, err
	}
	return private(levelupEmbed(res)), nil
}

func (h *Handlers) Stats(ctx context.Context, req *Request) (*Reply, error) {
	v, err := h.prog.Stats(ctx, req.Caller)
	if err != nil {
		return nil, err
	}
	return private(statsEmbed(req.Caller, req.Avatar(req.Caller.ID), h.prog.Options().WingsRole, v, h.location())), nil
}

// Profile is public.
func (h *Handlers) Profile(ctx context.Context, req *Request) (*Reply, error) {
	target, ok := req.Target("user")
	if !ok {
		target = req.Caller
	}
	v, err := h.prog.Profile(ctx, target)
	if err != nil {
		return nil, err
	}
	e := profileEmbed(req.Avatar(target.ID), h.prog.Options().WingsRole, v)
	return &Reply{Embeds: []*discordgo.MessageEmbed{e}}, nil
}

func (h *Handlers) Quote(ctx context.Context, req *Request) (*Reply, error) {
	name := strings.TrimSpace(req.String("character"))
	lang, err := h.lore.ValidateLocale(req.String("lang"))
	if err != nil {
		return nil, err
	}
	color := h.prog.ClanOf(ctx, req.Caller.ID).Color

	start := time.Now()
	q, err := h.lore.RandomQuote(ctx, name, lang)
	var reply *Reply
	switch {
	case errors.Is(err, lore.ErrUnknownCharacter):
		reply = private(errorEmbed(fmt.Sprintf("Character **%s** not found.", name), color))
	case errors.Is(err, lore.ErrNoQuote):
		reply = private(errorEmbed(fmt.Sprintf("No quote for **%s**.", name), color))
	case err != nil:
		return nil, err
	default:
		reply = private(&discordgo.MessageEmbed{
			Description: fmt.Sprintf("%s\n\n*— %s*", q, name),
			Color:       color,
		})
	}
	h.record(ctx, start, req.Caller.ID, "quote "+name, map[string]string{"lang": lang})
	return reply, nil
}

func (h *Handlers) QuoteAutocomplete(_ context.Context, req *Request) (*Reply, error) {
	if req.Focused != "character" {
		return &Reply{}, nil
	}
	names := h.lore.Suggest(req.String("character"))
	choices := make([]*discordgo.ApplicationCommandOptionChoice, len(names))
	for i, n := range names {
		choices[i] = &discordgo.ApplicationCommandOptionChoice{Name: n, Value: n}
	}
	return &Reply{Choices: choices}, nil
}

func (h *Handlers) record(ctx context.Context, start time.Time, userID int64, action string, detail interface{}) {
	if h.audit == nil {
		return
	}
	uid := userID
	h.audit.Log(audit.Entry{
		TraceID:    progression.TraceID(ctx),
		UserID:     &uid,
		Action:     action,
		Detail:     detail,
		DurationMs: int(time.Since(start).Milliseconds()),
	})
}

func (h *Handlers) Devour(ctx context.Context, req *Request) (*Reply, error) {
	res, err := h.prog.Devour(ctx, req.Caller)
	if err != nil {
		return nil, err
	}
	return private(&discordgo.MessageEmbed{
		Title:       "🩸 Soul Devoured",
		Description: fmt.Sprintf("You devoured a soul and gained **+%d%%** for your next level-up attempt!", res.Amount),
		Color:       res.Clan.Color,
	}), nil
}

func (h *Handlers) Chaussette(ctx context.Context, req *Request) (*Reply, error) {
	res, err := h.prog.Chaussette(ctx, req.Caller)
	if err != nil {
		return nil, err
	}
	return private(chaussetteEmbed(res)), nil
}

func (h *Handlers) Swim(ctx context.Context, req *Request) (*Reply, error) {
	c, err := h.prog.Swim(ctx, req.Caller)
	if err != nil {
		return nil, err
	}
	return private(&discordgo.MessageEmbed{
		Title:       "🌊 Swim in the Abyss",
		Description: "You slipped past the limits! Your next attempt ignores the hourly cooldown and the daily limit.",
		Color:       c.Color,
	}), nil
}

func (h *Handlers) Curse(ctx context.Context, req *Request) (*Reply, error) {
	target, ok := req.Target("target")
	if !ok {
		return private(errorEmbed("Pick a player to curse.", h.prog.ClanOf(ctx, req.Caller.ID).Color)), nil
	}
	res, err := h.prog.Curse(ctx, req.Caller, target)
	if err != nil {
		return nil, err
	}
	e := &discordgo.MessageEmbed{
		Title: "💀 Curse",
		Description: fmt.Sprintf("You cursed %s!\n\nThey will suffer **-%d%%** on their next level-up attempt.",
			Mention(target.ID), res.Penalty),
		Color: res.Clan.Color,
	}
	if !res.Notified {
		e.Footer = &discordgo.MessageEmbedFooter{Text: "Their direct messages are closed, they were not warned."}
	}
	return private(e), nil
}

// Swap posts a public proposal with answer buttons and edits it once the
// target answers or the proposal expires.
func (h *Handlers) Swap(ctx context.Context, req *Request) (*Reply, error) {
	target, ok := req.Target("target")
	if !ok {
		return private(errorEmbed("Pick a player to swap with.", h.prog.ClanOf(ctx, req.Caller.ID).Color)), nil
	}
	p, err := h.prog.ProposeSwap(ctx, req.Caller, target)
	if err != nil {
		return nil, err
	}
	return &Reply{
		Embeds:     []*discordgo.MessageEmbed{swapProposalEmbed(p, h.prog.ClanOf(ctx, req.Caller.ID).Color)},
		Components: swapButtons(p.ID),
		Followup: func(ctx context.Context) *Reply {
			res, err := h.prog.AwaitSwap(ctx, p)
			if err != nil {
				h.logger.Error("swap failed",
					zap.String("proposal", p.ID),
					zap.String("trace_id", progression.TraceID(ctx)),
					zap.Error(err))
				return &Reply{Embeds: []*discordgo.MessageEmbed{errorEmbed(internalErrorMessage, colorRed)}}
			}
			return &Reply{Embeds: []*discordgo.MessageEmbed{swapResultEmbed(res)}}
		},
	}, nil
}

// SwapAnswer handles the accept and decline buttons of a proposal.
func (h *Handlers) SwapAnswer(ctx context.Context, req *Request) (*Reply, error) {
	parts := strings.Split(req.CustomID, ":")
	if len(parts) != 3 || (parts[2] != "accept" && parts[2] != "decline") {
		return nil, fmt.Errorf("malformed swap button %q", req.CustomID)
	}
	if _, err := h.prog.AnswerSwap(ctx, parts[1], req.Caller.ID, parts[2] == "accept"); err != nil {
		return nil, err
	}
	return &Reply{Acknowledge: true}, nil
}

func (h *Handlers) Evolve(ctx context.Context, req *Request) (*Reply, error) {
	c, err := h.prog.Evolve(ctx, req.Caller)
	if err != nil {
		return nil, err
	}
	return private(&discordgo.MessageEmbed{
		Title: "👼 Celestial Evolution",
		Description: fmt.Sprintf("Your wings unfold majestically!\n\nYou obtained the **%s** role!",
			h.prog.Options().WingsRole),
		Color: c.Color,
	}), nil
}

func (h *Handlers) Spectral(ctx context.Context, req *Request) (*Reply, error) {
	entries, c, err := h.prog.Spectral(ctx, req.Caller)
	if err != nil {
		return nil, err
	}
	return private(spectralEmbed(entries, c, h.location())), nil
}
