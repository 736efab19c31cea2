package discord

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/nosgoth/eldergod/game/progression"
)

// Kind is the type of an incoming interaction.
type Kind int

const (
	KindCommand Kind = iota
	KindComponent
	KindAutocomplete
)

func (k Kind) String() string {
	switch k {
	case KindComponent:
		return "component"
	case KindAutocomplete:
		return "autocomplete"
	default:
		return "command"
	}
}

// ErrOutsideGuild is returned for interactions sent from direct messages.
var ErrOutsideGuild = errors.New("interaction outside a guild")

// Request is a decoded interaction.
type Request struct {
	Kind     Kind
	Name     string // command name, or the custom id prefix of a component
	CustomID string
	GuildID  string
	Locale   string
	Caller   progression.Member
	Focused  string // option being typed, autocomplete only

	options  map[string]*discordgo.ApplicationCommandInteractionDataOption
	resolved *discordgo.ApplicationCommandInteractionDataResolved
	avatars  map[int64]string
}

// NewRequest decodes i. Only guild interactions are accepted.
func NewRequest(i *discordgo.Interaction) (*Request, error) {
	if i.Member == nil || i.Member.User == nil {
		return nil, ErrOutsideGuild
	}
	caller, err := memberOf(i.Member, i.Member.User)
	if err != nil {
		return nil, err
	}
	req := &Request{
		GuildID: i.GuildID,
		Locale:  string(i.Locale),
		Caller:  caller,
		options: make(map[string]*discordgo.ApplicationCommandInteractionDataOption),
		avatars: map[int64]string{caller.ID: i.Member.User.AvatarURL("")},
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand, discordgo.InteractionApplicationCommandAutocomplete:
		data := i.ApplicationCommandData()
		req.Kind = KindCommand
		if i.Type == discordgo.InteractionApplicationCommandAutocomplete {
			req.Kind = KindAutocomplete
		}
		req.Name = data.Name
		req.resolved = data.Resolved
		for _, opt := range data.Options {
			req.options[opt.Name] = opt
			if opt.Focused {
				req.Focused = opt.Name
			}
		}
	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		req.Kind = KindComponent
		req.CustomID = data.CustomID
		req.Name, _, _ = strings.Cut(data.CustomID, ":")
	default:
		return nil, fmt.Errorf("unsupported interaction type %d", i.Type)
	}
	return req, nil
}

func memberOf(m *discordgo.Member, u *discordgo.User) (progression.Member, error) {
	id, err := strconv.ParseInt(u.ID, 10, 64)
	if err != nil {
		return progression.Member{}, fmt.Errorf("user id %q: %w", u.ID, err)
	}
	name := u.Username
	if u.GlobalName != "" {
		name = u.GlobalName
	}
	if m != nil && m.Nick != "" {
		name = m.Nick
	}
	return progression.Member{ID: id, Name: name}, nil
}

// String returns the string value of option name, or "".
func (r *Request) String(name string) string {
	opt, ok := r.options[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionString {
		return ""
	}
	return opt.StringValue()
}

// Target resolves the user given in option name.
func (r *Request) Target(name string) (progression.Member, bool) {
	opt, ok := r.options[name]
	if !ok || opt.Type != discordgo.ApplicationCommandOptionUser {
		return progression.Member{}, false
	}
	uid, _ := opt.Value.(string)
	if r.resolved == nil {
		return progression.Member{}, false
	}
	u, ok := r.resolved.Users[uid]
	if !ok {
		return progression.Member{}, false
	}
	m, err := memberOf(r.resolved.Members[uid], u)
	if err != nil {
		return progression.Member{}, false
	}
	r.avatars[m.ID] = u.AvatarURL("")
	return m, true
}

// Avatar returns the avatar url of a user seen in the request.
func (r *Request) Avatar(userID int64) string { return r.avatars[userID] }

// Mention renders a user mention.
func Mention(userID int64) string { return "<@" + strconv.FormatInt(userID, 10) + ">" }
