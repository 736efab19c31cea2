// Package discord exposes the progression commands as Discord slash commands.
package discord

import (
	"context"
	"errors"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"github.com/nosgoth/eldergod/game/clan"
	"github.com/nosgoth/eldergod/game/lore"
	"github.com/nosgoth/eldergod/game/progression"
	"github.com/nosgoth/eldergod/metrics"
	"go.uber.org/zap"
)

const internalErrorMessage = "Something went wrong. Please try again later."

// HandlerFunc answers one interaction.
type HandlerFunc func(ctx context.Context, req *Request) (*Reply, error)

// Reply is the answer to an interaction.
type Reply struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Ephemeral  bool
	Choices    []*discordgo.ApplicationCommandOptionChoice
	// Acknowledge answers a component without touching its message.
	Acknowledge bool
	// Followup runs after the reply is sent; a non-nil result replaces the
	// original response.
	Followup func(ctx context.Context) *Reply
}

func (rp *Reply) response(kind Kind) *discordgo.InteractionResponse {
	if kind == KindAutocomplete {
		choices := rp.Choices
		if choices == nil {
			choices = []*discordgo.ApplicationCommandOptionChoice{}
		}
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionApplicationCommandAutocompleteResult,
			Data: &discordgo.InteractionResponseData{Choices: choices},
		}
	}
	if rp.Acknowledge {
		return &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredMessageUpdate}
	}
	data := &discordgo.InteractionResponseData{
		Content:    rp.Content,
		Embeds:     rp.Embeds,
		Components: rp.Components,
	}
	if rp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}
}

// edit replaces the whole original response; components not listed are
// removed.
func (rp *Reply) edit() *discordgo.WebhookEdit {
	content := rp.Content
	embeds := rp.Embeds
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	components := rp.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.WebhookEdit{Content: &content, Embeds: &embeds, Components: &components}
}

func (rp *Reply) followup() *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{Content: rp.Content, Embeds: rp.Embeds, Components: rp.Components}
	if rp.Ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	return params
}

// Responder sends interaction responses. *discordgo.Session satisfies it.
type Responder interface {
	InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEdit(i *discordgo.Interaction, edit *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseDelete(i *discordgo.Interaction, options ...discordgo.RequestOption) error
	FollowupMessageCreate(i *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Router dispatches interactions to registered handlers.
type Router struct {
	commands     map[string]HandlerFunc
	deferred     map[string]bool // command -> ephemeral placeholder
	components   map[string]HandlerFunc
	autocomplete map[string]HandlerFunc
	colorOf      func(ctx context.Context, userID int64) int
	logger       *zap.Logger
	wg           sync.WaitGroup
}

// NewRouter creates a new Router.
func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		commands:     make(map[string]HandlerFunc),
		deferred:     make(map[string]bool),
		components:   make(map[string]HandlerFunc),
		autocomplete: make(map[string]HandlerFunc),
		colorOf:      func(context.Context, int64) int { return clan.DefaultColor },
		logger:       logger,
	}
}

// On registers a slash command handler.
func (r *Router) On(command string, fn HandlerFunc) { r.commands[command] = fn }

// OnDeferred registers a slash command handler that talks to Discord or the
// database before answering. The interaction is acknowledged with a
// "thinking" placeholder first, then the placeholder is edited with the
// reply. A private reply to a public placeholder replaces it with an
// ephemeral followup message.
func (r *Router) OnDeferred(command string, ephemeral bool, fn HandlerFunc) {
	r.commands[command] = fn
	r.deferred[command] = ephemeral
}

// OnComponent registers a handler for components whose custom id starts
// with prefix followed by ':'.
func (r *Router) OnComponent(prefix string, fn HandlerFunc) { r.components[prefix] = fn }

// OnAutocomplete registers the autocomplete handler of a command.
func (r *Router) OnAutocomplete(command string, fn HandlerFunc) { r.autocomplete[command] = fn }

// ColorErrors colors error embeds with the clan color of the caller.
func (r *Router) ColorErrors(fn func(ctx context.Context, userID int64) int) { r.colorOf = fn }

func (r *Router) table(k Kind) map[string]HandlerFunc {
	switch k {
	case KindComponent:
		return r.components
	case KindAutocomplete:
		return r.autocomplete
	default:
		return r.commands
	}
}

// Dispatch decodes i, invokes the matching handler and sends its reply.
// Followups run in the background; Wait blocks until they are done.
func (r *Router) Dispatch(ctx context.Context, rs Responder, i *discordgo.Interaction) {
	traceID := uuid.NewString()
	ctx = progression.WithTrace(ctx, traceID)

	req, err := NewRequest(i)
	if err != nil {
		r.logger.Debug("rejected interaction", zap.String("trace_id", traceID), zap.Error(err))
		msg := "This command can only be used in a server."
		if !errors.Is(err, ErrOutsideGuild) {
			msg = internalErrorMessage
		}
		r.respond(ctx, rs, i, KindCommand, &Reply{Embeds: []*discordgo.MessageEmbed{errorEmbed(msg, clan.DefaultColor)}, Ephemeral: true})
		return
	}

	fn, ok := r.table(req.Kind)[req.Name]
	if !ok {
		r.logger.Debug("unhandled interaction",
			zap.Stringer("kind", req.Kind),
			zap.String("name", req.Name),
			zap.Int64("user_id", req.Caller.ID))
		if req.Kind == KindAutocomplete {
			r.respond(ctx, rs, i, req.Kind, &Reply{})
			return
		}
		r.respond(ctx, rs, i, req.Kind, &Reply{Embeds: []*discordgo.MessageEmbed{errorEmbed("Unknown command.", clan.DefaultColor)}, Ephemeral: true})
		return
	}

	hidden, deferred := r.deferred[req.Name]
	deferred = deferred && req.Kind == KindCommand
	if deferred && !r.send(ctx, rs, i, deferredResponse(hidden)) {
		return
	}

	reply, err := fn(ctx, req)
	outcome := "ok"
	if err != nil {
		outcome = "rejected"
		if _, user := userMessage(err); !user {
			outcome = "error"
			r.logger.Error("handler error",
				zap.Stringer("kind", req.Kind),
				zap.String("name", req.Name),
				zap.Int64("user_id", req.Caller.ID),
				zap.String("trace_id", traceID),
				zap.Error(err))
		}
		reply = r.errorReply(ctx, req, err)
	}
	if req.Kind != KindAutocomplete {
		metrics.Interactions.WithLabelValues(req.Name, outcome).Inc()
	}
	if reply == nil {
		reply = &Reply{}
	}
	if deferred {
		if !r.deliver(ctx, rs, i, reply, hidden) {
			return
		}
	} else if !r.respond(ctx, rs, i, req.Kind, reply) {
		return
	}
	if reply.Followup == nil {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if next := reply.Followup(ctx); next != nil {
			r.edit(ctx, rs, i, next)
		}
	}()
}

func deferredResponse(ephemeral bool) *discordgo.InteractionResponse {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseDeferredChannelMessageWithSource}
	if ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	return resp
}

// deliver puts the reply of a deferred command in place of its placeholder.
func (r *Router) deliver(ctx context.Context, rs Responder, i *discordgo.Interaction, reply *Reply, privatePlaceholder bool) bool {
	if !reply.Ephemeral || privatePlaceholder {
		return r.edit(ctx, rs, i, reply)
	}
	// A public placeholder cannot be made ephemeral.
	if err := rs.InteractionResponseDelete(i, discordgo.WithContext(ctx)); err != nil {
		r.logger.Warn("delete interaction placeholder",
			zap.String("trace_id", progression.TraceID(ctx)),
			zap.Error(err))
	}
	if _, err := rs.FollowupMessageCreate(i, true, reply.followup(), discordgo.WithContext(ctx)); err != nil {
		r.logger.Error("send interaction followup",
			zap.String("trace_id", progression.TraceID(ctx)),
			zap.Error(err))
		return false
	}
	return true
}

func (r *Router) edit(ctx context.Context, rs Responder, i *discordgo.Interaction, reply *Reply) bool {
	if _, err := rs.InteractionResponseEdit(i, reply.edit(), discordgo.WithContext(ctx)); err != nil {
		r.logger.Error("edit interaction response",
			zap.String("trace_id", progression.TraceID(ctx)),
			zap.Error(err))
		return false
	}
	return true
}

// Wait blocks until every running followup has finished.
func (r *Router) Wait() { r.wg.Wait() }

func (r *Router) respond(ctx context.Context, rs Responder, i *discordgo.Interaction, kind Kind, reply *Reply) bool {
	return r.send(ctx, rs, i, reply.response(kind))
}

func (r *Router) send(ctx context.Context, rs Responder, i *discordgo.Interaction, resp *discordgo.InteractionResponse) bool {
	if err := rs.InteractionRespond(i, resp, discordgo.WithContext(ctx)); err != nil {
		r.logger.Error("send interaction response",
			zap.String("trace_id", progression.TraceID(ctx)),
			zap.Error(err))
		return false
	}
	return true
}

// userMessage extracts the text of errors the user may see.
func userMessage(err error) (string, bool) {
	if msg, ok := progression.UserMessage(err); ok {
		return msg, true
	}
	var le *lore.LocaleError
	if errors.As(err, &le) {
		return le.Error(), true
	}
	return "", false
}

func (r *Router) errorReply(ctx context.Context, req *Request, err error) *Reply {
	if req.Kind == KindAutocomplete {
		return &Reply{}
	}
	msg, ok := userMessage(err)
	if !ok {
		msg = internalErrorMessage
	}
	return &Reply{
		Embeds:    []*discordgo.MessageEmbed{errorEmbed(msg, r.colorOf(ctx, req.Caller.ID))},
		Ephemeral: true,
	}
}
