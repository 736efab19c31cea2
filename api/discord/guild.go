package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/nosgoth/eldergod/game/clan"
	"github.com/nosgoth/eldergod/game/progression"
	"go.uber.org/zap"
)

// guildAPI is the subset of *discordgo.Session used by Guild.
type guildAPI interface {
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildRoleCreate(guildID string, data *discordgo.RoleParams, options ...discordgo.RequestOption) (*discordgo.Role, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	UserChannelCreate(recipientID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Guild implements progression.Guild over the Discord REST API. Roles are
// looked up by name; missing clan and cosmetic roles are created on first
// use.
type Guild struct {
	api     guildAPI
	guildID string
	logger  *zap.Logger

	mu    sync.Mutex
	roles map[string]string // name -> id
}

func NewGuild(api guildAPI, guildID string, logger *zap.Logger) *Guild {
	return &Guild{api: api, guildID: guildID, logger: logger, roles: make(map[string]string)}
}

// mapErr turns permission failures into progression.ErrPermissionDenied.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var re *discordgo.RESTError
	if errors.As(err, &re) {
		forbidden := re.Response != nil && re.Response.StatusCode == http.StatusForbidden
		if re.Message != nil {
			switch re.Message.Code {
			case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeCannotSendMessagesToThisUser:
				forbidden = true
			}
		}
		if forbidden {
			return fmt.Errorf("%w: %v", progression.ErrPermissionDenied, err)
		}
	}
	return err
}

func uid(userID int64) string { return strconv.FormatInt(userID, 10) }

func (g *Guild) refreshRoles(ctx context.Context) error {
	roles, err := g.api.GuildRoles(g.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("list roles: %w", mapErr(err))
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles = make(map[string]string, len(roles))
	for _, r := range roles {
		g.roles[r.Name] = r.ID
	}
	return nil
}

func (g *Guild) cached(name string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.roles[name]
	return id, ok
}

// roleID resolves a role name, reloading the role list on a miss. With
// create set a missing role is created with color.
func (g *Guild) roleID(ctx context.Context, name string, create bool, color int) (string, bool, error) {
	if id, ok := g.cached(name); ok {
		return id, true, nil
	}
	if err := g.refreshRoles(ctx); err != nil {
		return "", false, err
	}
	if id, ok := g.cached(name); ok {
		return id, true, nil
	}
	if !create {
		return "", false, nil
	}
	r, err := g.api.GuildRoleCreate(g.guildID, &discordgo.RoleParams{Name: name, Color: &color}, discordgo.WithContext(ctx))
	if err != nil {
		return "", false, fmt.Errorf("create role %q: %w", name, mapErr(err))
	}
	g.logger.Info("role created", zap.String("role", name), zap.String("role_id", r.ID))
	g.mu.Lock()
	g.roles[name] = r.ID
	g.mu.Unlock()
	return r.ID, true, nil
}

func (g *Guild) member(ctx context.Context, userID int64) (*discordgo.Member, error) {
	m, err := g.api.GuildMember(g.guildID, uid(userID), discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("member %d: %w", userID, mapErr(err))
	}
	return m, nil
}

func (g *Guild) HasRole(ctx context.Context, userID int64, role string) (bool, error) {
	id, ok, err := g.roleID(ctx, role, false, 0)
	if err != nil || !ok {
		return false, err
	}
	m, err := g.member(ctx, userID)
	if err != nil {
		var re *discordgo.RESTError
		if errors.As(err, &re) && re.Response != nil && re.Response.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return slices.Contains(m.Roles, id), nil
}

func (g *Guild) AssignClanRole(ctx context.Context, userID int64, c clan.Clan, clanRoles []string) error {
	m, err := g.member(ctx, userID)
	if err != nil {
		return err
	}
	for _, name := range clanRoles {
		if name == c.Name {
			continue
		}
		id, ok, err := g.roleID(ctx, name, false, 0)
		if err != nil {
			return err
		}
		if !ok || !slices.Contains(m.Roles, id) {
			continue
		}
		if err := g.api.GuildMemberRoleRemove(g.guildID, uid(userID), id, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("remove role %q: %w", name, mapErr(err))
		}
	}
	id, _, err := g.roleID(ctx, c.Name, true, c.Color)
	if err != nil {
		return err
	}
	if slices.Contains(m.Roles, id) {
		return nil
	}
	if err := g.api.GuildMemberRoleAdd(g.guildID, uid(userID), id, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %q: %w", c.Name, mapErr(err))
	}
	return nil
}

func (g *Guild) GrantRole(ctx context.Context, userID int64, role string) error {
	id, _, err := g.roleID(ctx, role, true, clan.DefaultColor)
	if err != nil {
		return err
	}
	if err := g.api.GuildMemberRoleAdd(g.guildID, uid(userID), id, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("add role %q: %w", role, mapErr(err))
	}
	return nil
}

func (g *Guild) SendDirect(ctx context.Context, userID int64, n progression.Notice) error {
	ch, err := g.api.UserChannelCreate(uid(userID), discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm %d: %w", userID, mapErr(err))
	}
	e := &discordgo.MessageEmbed{Title: n.Title, Description: n.Body, Color: n.Color}
	if _, err := g.api.ChannelMessageSendEmbed(ch.ID, e, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm %d: %w", userID, mapErr(err))
	}
	return nil
}
