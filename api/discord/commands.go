package discord

import (
	"strings"

	"github.com/bwmarrin/discordgo"
)

// Commands returns the slash commands of the bot. locales lists the quote
// languages offered in the lang option description.
func Commands(locales []string, defaultLocale string) []*discordgo.ApplicationCommand {
	userOption := func(name, desc string, required bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionUser,
			Name:        name,
			Description: desc,
			Required:    required,
		}
	}
	return []*discordgo.ApplicationCommand{
		{Name: "levelup", Description: "Try to level up"},
		{Name: "stats", Description: "Show your character statistics"},
		{
			Name:        "profile",
			Description: "Show the public profile of a player",
			Options:     []*discordgo.ApplicationCommandOption{userOption("user", "The player whose profile to show", false)},
		},
		{
			Name:        "quote",
			Description: "Show a random quote from the Legacy of Kain universe",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:         discordgo.ApplicationCommandOptionString,
					Name:         "character",
					Description:  "Who said it?",
					Required:     true,
					Autocomplete: true,
				},
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "lang",
					Description: "Quote language: " + strings.Join(locales, " | ") + ". Default: " + defaultLocale,
				},
			},
		},
		{Name: "devour", Description: "Devour souls for a bonus on your next attempt"},
		{Name: "chaussette", Description: "Shout CHAUSSETTE for a free level once a week"},
		{Name: "swim", Description: "Bypass the daily limit once a week"},
		{
			Name:        "curse",
			Description: "Curse another player's next attempt",
			Options:     []*discordgo.ApplicationCommandOption{userOption("target", "The player to curse", true)},
		},
		{
			Name:        "swap",
			Description: "Swap levels with a consenting player",
			Options:     []*discordgo.ApplicationCommandOption{userOption("target", "The player to swap with", true)},
		},
		{Name: "evolve", Description: "Grow the wings of Raziel (cosmetic role)"},
		{Name: "spectral", Description: "Look into the spectral realm (hidden leaderboard)"},
	}
}
