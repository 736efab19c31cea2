package discord

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/nosgoth/eldergod/config"
	"github.com/nosgoth/eldergod/plugin/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatLog struct {
	mu   sync.Mutex
	sent map[string][]string
}

func (c *chatLog) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent[channelID] = append(c.sent[channelID], content)
	return &discordgo.Message{}, nil
}

func newTestBot(cfg config.DiscordConfig) (*Bot, *chatLog, *hook.Center) {
	chat := &chatLog{sent: make(map[string][]string)}
	hooks := hook.NewCenter(nop())
	return &Bot{chat: chat, cfg: cfg, hooks: hooks, logger: nop()}, chat, hooks
}

func joining(guildID, userID string) *discordgo.Member {
	return &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID, Username: "newbie"}}
}

func TestGreet(t *testing.T) {
	b, chat, hooks := newTestBot(config.DiscordConfig{GuildID: "g1", GreetingChannelID: "welcome"})
	var joined []int64
	hooks.Register(hook.OnMemberJoin, 0, "test", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		joined = append(joined, data.(int64))
		return data, nil
	})

	b.greet(context.Background(), joining("g1", "77"))
	require.Len(t, chat.sent["welcome"], 1)
	assert.Equal(t, "You're not from around here, <@77>!", chat.sent["welcome"][0])
	assert.Equal(t, []int64{77}, joined)
}

func TestGreet_IgnoresBotsAndOtherGuilds(t *testing.T) {
	b, chat, _ := newTestBot(config.DiscordConfig{GuildID: "g1", GreetingChannelID: "welcome"})

	b.greet(context.Background(), joining("g2", "77"))
	m := joining("g1", "78")
	m.User.Bot = true
	b.greet(context.Background(), m)
	b.greet(context.Background(), nil)

	assert.Empty(t, chat.sent)
}

func TestGreet_NoChannelStillRunsHooks(t *testing.T) {
	b, chat, hooks := newTestBot(config.DiscordConfig{})
	called := false
	hooks.Register(hook.OnMemberJoin, 0, "test", func(_ context.Context, _ string, data interface{}) (interface{}, error) {
		called = true
		return data, nil
	})
	b.greet(context.Background(), joining("g9", "5"))
	assert.Empty(t, chat.sent)
	assert.True(t, called)
}

func TestNewBot_RequiresToken(t *testing.T) {
	_, err := NewBot(config.DiscordConfig{}, nop())
	assert.Error(t, err)
}

func TestCommands(t *testing.T) {
	cmds := Commands([]string{"en", "fr"}, "en")
	names := make(map[string]*discordgo.ApplicationCommand, len(cmds))
	for _, c := range cmds {
		names[c.Name] = c
	}
	for _, n := range []string{"levelup", "stats", "profile", "quote", "devour", "chaussette", "swim", "curse", "swap", "evolve", "spectral"} {
		assert.Contains(t, names, n)
	}
	q := names["quote"]
	require.Len(t, q.Options, 2)
	assert.True(t, q.Options[0].Autocomplete)
	assert.Contains(t, q.Options[1].Description, "en | fr")
	assert.True(t, names["swap"].Options[0].Required)
}
