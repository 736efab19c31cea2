package discord

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/nosgoth/eldergod/game/clan"
	"github.com/nosgoth/eldergod/game/progression"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory guild.
type fakeAPI struct {
	mu        sync.Mutex
	roles     []*discordgo.Role
	members   map[string][]string // user id -> role ids
	created   []string
	dms       map[string][]*discordgo.MessageEmbed
	forbidden bool
	closedDMs bool
	listCalls int
}

func newFakeAPI(roles ...string) *fakeAPI {
	f := &fakeAPI{members: make(map[string][]string), dms: make(map[string][]*discordgo.MessageEmbed)}
	for i, name := range roles {
		f.roles = append(f.roles, &discordgo.Role{ID: fmt.Sprintf("r%d", i), Name: name})
	}
	return f
}

func forbiddenErr() error {
	return &discordgo.RESTError{
		Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
		Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions, Message: "Missing Permissions"},
	}
}

func (f *fakeAPI) roleIDs(userID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.members[userID]...)
}

func (f *fakeAPI) roleNamed(name string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.roles {
		if r.Name == name {
			return r.ID
		}
	}
	return ""
}

func (f *fakeAPI) GuildMember(_, userID string, _ ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	roles, ok := f.members[userID]
	if !ok {
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"}}
	}
	return &discordgo.Member{User: &discordgo.User{ID: userID}, Roles: append([]string(nil), roles...)}, nil
}

func (f *fakeAPI) GuildRoles(string, ...discordgo.RequestOption) ([]*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]*discordgo.Role(nil), f.roles...), nil
}

func (f *fakeAPI) GuildRoleCreate(_ string, data *discordgo.RoleParams, _ ...discordgo.RequestOption) (*discordgo.Role, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forbidden {
		return nil, forbiddenErr()
	}
	r := &discordgo.Role{ID: fmt.Sprintf("r%d", len(f.roles)), Name: data.Name, Color: *data.Color}
	f.roles = append(f.roles, r)
	f.created = append(f.created, data.Name)
	return r, nil
}

func (f *fakeAPI) GuildMemberRoleAdd(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forbidden {
		return forbiddenErr()
	}
	f.members[userID] = append(f.members[userID], roleID)
	return nil
}

func (f *fakeAPI) GuildMemberRoleRemove(_, userID, roleID string, _ ...discordgo.RequestOption) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.forbidden {
		return forbiddenErr()
	}
	f.members[userID] = slices.DeleteFunc(f.members[userID], func(id string) bool { return id == roleID })
	return nil
}

func (f *fakeAPI) UserChannelCreate(recipientID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	return &discordgo.Channel{ID: "dm-" + recipientID}, nil
}

func (f *fakeAPI) ChannelMessageSendEmbed(channelID string, e *discordgo.MessageEmbed, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closedDMs {
		return nil, &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusBadRequest, Status: "400 Bad Request"},
			Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeCannotSendMessagesToThisUser},
		}
	}
	f.dms[channelID] = append(f.dms[channelID], e)
	return &discordgo.Message{}, nil
}

func TestGuild_HasRole(t *testing.T) {
	api := newFakeAPI("Joueur")
	api.members["1"] = []string{"r0"}
	api.members["2"] = nil
	g := NewGuild(api, "g1", nop())
	ctx := context.Background()

	ok, err := g.HasRole(ctx, 1, "Joueur")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.HasRole(ctx, 2, "Joueur")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.HasRole(ctx, 3, "Joueur")
	require.NoError(t, err)
	assert.False(t, ok, "unknown member")

	ok, err = g.HasRole(ctx, 1, "Missing")
	require.NoError(t, err)
	assert.False(t, ok, "unknown role")
	assert.Empty(t, api.created, "lookups never create roles")
}

func TestGuild_RolesCachedUntilMiss(t *testing.T) {
	api := newFakeAPI("Joueur")
	api.members["1"] = []string{"r0"}
	g := NewGuild(api, "g1", nop())
	ctx := context.Background()

	for range 3 {
		_, err := g.HasRole(ctx, 1, "Joueur")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, api.listCalls)
}

func TestGuild_AssignClanRole(t *testing.T) {
	table, err := clan.Default(nil)
	require.NoError(t, err)
	api := newFakeAPI("Joueur", "Melchahim")
	api.members["1"] = []string{"r0", "r1"}
	g := NewGuild(api, "g1", nop())
	ctx := context.Background()

	zephonim := table.ByLevel(10)
	require.NoError(t, g.AssignClanRole(ctx, 1, zephonim, table.RoleNames()))

	assert.Equal(t, []string{zephonim.Name}, api.created)
	roles := api.roleIDs("1")
	assert.Contains(t, roles, "r0", "non-clan roles are kept")
	assert.NotContains(t, roles, "r1")
	assert.Contains(t, roles, api.roleNamed(zephonim.Name))

	// idempotent
	require.NoError(t, g.AssignClanRole(ctx, 1, zephonim, table.RoleNames()))
	assert.Len(t, api.roleIDs("1"), 2)
}

func TestGuild_PermissionDenied(t *testing.T) {
	table, err := clan.Default(nil)
	require.NoError(t, err)
	api := newFakeAPI("Ailes")
	api.members["1"] = nil
	api.forbidden = true
	g := NewGuild(api, "g1", nop())
	ctx := context.Background()

	err = g.AssignClanRole(ctx, 1, table.ByLevel(5), table.RoleNames())
	assert.ErrorIs(t, err, progression.ErrPermissionDenied)

	err = g.GrantRole(ctx, 1, "Ailes")
	assert.ErrorIs(t, err, progression.ErrPermissionDenied)
}

func TestGuild_SendDirect(t *testing.T) {
	api := newFakeAPI()
	g := NewGuild(api, "g1", nop())
	ctx := context.Background()

	require.NoError(t, g.SendDirect(ctx, 9, progression.Notice{Title: "Curse!", Body: "boo", Color: 1}))
	require.Len(t, api.dms["dm-9"], 1)
	assert.Equal(t, "Curse!", api.dms["dm-9"][0].Title)

	api.closedDMs = true
	err := g.SendDirect(ctx, 9, progression.Notice{Title: "again"})
	assert.ErrorIs(t, err, progression.ErrPermissionDenied)
}

func TestMapErr_PassesOtherErrors(t *testing.T) {
	err := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusInternalServerError, Status: "500"}}
	assert.NotErrorIs(t, mapErr(err), progression.ErrPermissionDenied)
	assert.NoError(t, mapErr(nil))
}
