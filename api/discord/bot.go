package discord

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/bwmarrin/discordgo"
	"github.com/nosgoth/eldergod/config"
	"github.com/nosgoth/eldergod/plugin/hook"
	"go.uber.org/zap"
)

// messenger posts plain messages. *discordgo.Session satisfies it.
type messenger interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Bot owns the gateway session and feeds its events to the router.
type Bot struct {
	session *discordgo.Session
	chat    messenger
	cfg     config.DiscordConfig
	router  *Router
	hooks   *hook.Center
	logger  *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	remove []func()
}

// NewBot creates the gateway session without connecting it.
func NewBot(cfg config.DiscordConfig, logger *zap.Logger) (*Bot, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord token is empty")
	}
	s, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{session: s, chat: s, cfg: cfg, logger: logger, ctx: ctx, cancel: cancel}, nil
}

// Session exposes the REST client, e.g. for NewGuild.
func (b *Bot) Session() *discordgo.Session { return b.session }

// Start registers the event handlers, opens the gateway and, when
// configured, overwrites the guild's slash commands.
func (b *Bot) Start(router *Router, hooks *hook.Center, commands []*discordgo.ApplicationCommand) error {
	b.router = router
	b.hooks = hooks
	b.remove = append(b.remove,
		b.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
			b.router.Dispatch(b.ctx, s, ic.Interaction)
		}),
		b.session.AddHandler(func(_ *discordgo.Session, ev *discordgo.GuildMemberAdd) {
			b.greet(b.ctx, ev.Member)
		}),
		b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
			b.logger.Info("discord ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
		}),
	)
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	if !b.cfg.RegisterCommands {
		return nil
	}
	appID := b.cfg.AppID
	if appID == "" && b.session.State != nil && b.session.State.User != nil {
		appID = b.session.State.User.ID
	}
	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.cfg.GuildID, commands)
	if err != nil {
		return fmt.Errorf("register commands: %w", err)
	}
	b.logger.Info("slash commands registered", zap.Int("count", len(registered)), zap.String("guild_id", b.cfg.GuildID))
	return nil
}

// greet welcomes a new member in the greeting channel and runs the join
// hooks.
func (b *Bot) greet(ctx context.Context, m *discordgo.Member) {
	if m == nil || m.User == nil || m.User.Bot {
		return
	}
	if b.cfg.GuildID != "" && m.GuildID != b.cfg.GuildID {
		return
	}
	id, err := strconv.ParseInt(m.User.ID, 10, 64)
	if err != nil {
		b.logger.Warn("member join with bad id", zap.String("user_id", m.User.ID))
		return
	}
	if b.cfg.GreetingChannelID != "" {
		msg := fmt.Sprintf("You're not from around here, %s!", Mention(id))
		if _, err := b.chat.ChannelMessageSend(b.cfg.GreetingChannelID, msg, discordgo.WithContext(ctx)); err != nil {
			b.logger.Warn("greeting failed", zap.Int64("user_id", id), zap.Error(err))
		}
	}
	if b.hooks != nil {
		if _, err := b.hooks.Trigger(ctx, hook.OnMemberJoin, id); err != nil && !errors.Is(err, hook.ErrInterrupt) {
			b.logger.Warn("hook trigger failed", zap.String("event", hook.OnMemberJoin), zap.Error(err))
		}
	}
}

// Stop cancels pending followups, waits for them and closes the gateway.
func (b *Bot) Stop() error {
	b.cancel()
	for _, fn := range b.remove {
		fn()
	}
	if b.router != nil {
		b.router.Wait()
	}
	return b.session.Close()
}
