package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/nosgoth/eldergod/game/character"
	"github.com/nosgoth/eldergod/game/clan"
	"github.com/nosgoth/eldergod/game/progression"
)

const (
	colorGreen  = 0x2ecc71
	colorOrange = 0xe67e22
	colorRed    = 0xe74c3c
)

func errorEmbed(msg string, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{Title: "❌ Error", Description: msg, Color: color}
}

func field(name, value string, inline bool) *discordgo.MessageEmbedField {
	return &discordgo.MessageEmbedField{Name: name, Value: value, Inline: inline}
}

func unlockList(us []clan.Unlock) string {
	lines := make([]string, len(us))
	for i, u := range us {
		lines[i] = fmt.Sprintf("• /%s - %s", u.Command, u.Description)
	}
	return strings.Join(lines, "\n")
}

func formatDay(d character.Day) string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Day, d.Month, d.Year)
}

// evolutionFields describes a clan change and the abilities it unlocked.
func evolutionFields(ch *progression.ClanChange) []*discordgo.MessageEmbedField {
	if ch == nil {
		return nil
	}
	out := []*discordgo.MessageEmbedField{
		field("🦇 Evolution!", fmt.Sprintf("You became **%s** of the **%s** clan!", ch.To.Title, ch.To.Name), false),
	}
	if len(ch.Unlocked) > 0 {
		out = append(out, field("✨ New Abilities Unlocked", unlockList(ch.Unlocked), false))
	}
	return out
}

func levelupEmbed(res *progression.LevelupResult) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "🎲 Level Up Attempt",
		Description: res.Message,
		Color:       res.Clan.Color,
	}
	if !res.Success {
		return e
	}
	e.Fields = append(e.Fields, field("New Level", fmt.Sprintf("**%d**", res.NewLevel), true))
	e.Fields = append(e.Fields, evolutionFields(res.Change)...)
	e.Fields = append(e.Fields, field("Chance", fmt.Sprintf("%.1f%%", res.Chance), true))
	if res.Modifier != 0 {
		e.Fields = append(e.Fields, field("Bonus/Malus", fmt.Sprintf("%+d%%", res.Modifier), true))
	}
	return e
}

func chaussetteEmbed(res *progression.LevelupResult) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "🧦 CHAUSSETTE!",
		Description: res.Message,
		Color:       res.Clan.Color,
		Fields:      []*discordgo.MessageEmbedField{field("New Level", fmt.Sprintf("**%d**", res.NewLevel), true)},
	}
	e.Fields = append(e.Fields, evolutionFields(res.Change)...)
	return e
}

func statsEmbed(m progression.Member, avatar, wingsRole string, v *progression.StatsView, loc *time.Location) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "🦇 " + m.Name,
		Description: fmt.Sprintf("**%s** of the **%s** clan\n\n*%s*", v.Clan.Title, v.Clan.Name, v.Clan.Description),
		Color:       v.Clan.Color,
		Fields: []*discordgo.MessageEmbedField{
			field("Level", fmt.Sprintf("**%d**", v.Character.Level), true),
			field("Clan", v.Clan.Name, true),
		},
	}
	if avatar != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatar}
	}
	if v.Wings {
		e.Fields = append(e.Fields, field("✨ Wings", wingsRole, true))
	}
	if v.Character.LastAttempt != nil {
		e.Fields = append(e.Fields, field("Last Attempt", v.Character.LastAttempt.In(loc).Format("02/01/2006 at 15:04"), true))
	}
	if !v.Character.LastSuccess.IsZero() {
		e.Fields = append(e.Fields, field("Last Successful Level Up", formatDay(v.Character.LastSuccess), true))
	}
	status := fmt.Sprintf("%s\nSuccess chance: %.1f%%", v.Status, v.Chance)
	if v.Pending != 0 {
		status += fmt.Sprintf("\nPending bonus/malus: %+d%%", v.Pending)
	}
	e.Fields = append(e.Fields, field("📊 Status", status, false))
	if len(v.Unlocked) > 0 {
		e.Fields = append(e.Fields, field("🗡️ Unlocked Abilities", unlockList(v.Unlocked), false))
	}
	if v.Next != nil {
		e.Fields = append(e.Fields, field("🔒 Next Unlock",
			fmt.Sprintf("Level %d: /%s - %s", v.Next.Level, v.Next.Command, v.Next.Description), false))
	}
	return e
}

func profileEmbed(avatar, wingsRole string, v *progression.ProfileView) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "🦇 " + v.Member.Name,
		Description: fmt.Sprintf("**%s** of the **%s** clan", v.Clan.Title, v.Clan.Name),
		Color:       v.Clan.Color,
		Fields: []*discordgo.MessageEmbedField{
			field("Level", fmt.Sprintf("**%d**", v.Character.Level), true),
			field("Clan", v.Clan.Name, true),
		},
	}
	if avatar != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: avatar}
	}
	if v.Wings {
		e.Fields = append(e.Fields, field("✨ Wings", wingsRole, true))
	}
	return e
}

func spectralEmbed(entries []progression.RankEntry, c clan.Clan, loc *time.Location) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       "👁️ Spectral Realm",
		Description: "*You perceive the souls of the mightiest vampires...*",
		Color:       c.Color,
	}
	for _, r := range entries {
		last := "Never"
		if r.LastAttempt != nil {
			last = r.LastAttempt.In(loc).Format("02/01 15:04")
		}
		e.Fields = append(e.Fields, field(
			fmt.Sprintf("%d.", r.Rank),
			fmt.Sprintf("%s\n**Level %d** - %s\nLast attempt: %s\nCurrent chance: %.1f%%",
				Mention(r.UserID), r.Level, r.ClanName, last, r.Chance),
			false))
	}
	return e
}

func swapButtons(id string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.Button{Label: "Accept", Style: discordgo.SuccessButton, CustomID: "swap:" + id + ":" + "accept"},
			discordgo.Button{Label: "Decline", Style: discordgo.DangerButton, CustomID: "swap:" + id + ":" + "decline"},
		}},
	}
}

func swapProposalEmbed(p *progression.SwapProposal, color int) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title: "🔄 Exile Proposal",
		Description: fmt.Sprintf("%s (Level **%d**) offers to swap levels with %s (Level **%d**).\n\n%s, do you accept?",
			Mention(p.Initiator.ID), p.InitiatorLevel, Mention(p.Target.ID), p.TargetLevel, Mention(p.Target.ID)),
		Color: color,
	}
}

func swapResultEmbed(res *progression.SwapResult) *discordgo.MessageEmbed {
	p := res.Proposal
	switch {
	case res.TimedOut:
		return &discordgo.MessageEmbed{Title: "⏱️ Time's up", Description: "The swap proposal expired.", Color: colorOrange}
	case !res.Accepted:
		return &discordgo.MessageEmbed{Title: "❌ Declined", Description: Mention(p.Target.ID) + " declined the swap.", Color: colorRed}
	}
	return &discordgo.MessageEmbed{
		Title: "✅ Swap complete!",
		Description: fmt.Sprintf("%s is now level **%d**\n%s is now level **%d**",
			Mention(p.Initiator.ID), res.InitiatorLevel, Mention(p.Target.ID), res.TargetLevel),
		Color: colorGreen,
	}
}
