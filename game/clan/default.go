package clan

import (
	"strings"

	"github.com/nosgoth/eldergod/config"
)

var (
	unlockDevour     = Unlock{Level: 5, Command: "devour", Description: "Devour souls for a bonus on your next attempt"}
	unlockChaussette = Unlock{Level: 5, Command: "chaussette", Description: "Shout CHAUSSETTE for a free level once a week"}
	unlockCurse      = Unlock{Level: 10, Command: "curse", Description: "Curse another player's next attempt"}
	unlockSwap       = Unlock{Level: 15, Command: "swap", Description: "Offer to swap levels with another player"}
	unlockSwim       = Unlock{Level: 20, Command: "swim", Description: "Bypass the cooldown once a week"}
	unlockEvolve     = Unlock{Level: 30, Command: "evolve", Description: "Grow your wings (cosmetic role)"}
	unlockSpectral   = Unlock{Level: 30, Command: "spectral", Description: "Look into the spectral realm"}
)

func defaultEntries() []Clan {
	t1 := []Unlock{unlockDevour, unlockChaussette}
	t2 := append(append([]Unlock(nil), t1...), unlockCurse)
	t3 := append(append([]Unlock(nil), t2...), unlockSwap)
	t4 := append(append([]Unlock(nil), t3...), unlockSwim)
	t5 := append(append([]Unlock(nil), t4...), unlockEvolve, unlockSpectral)

	return []Clan{
		{Key: "fledgling", Title: "Novice", MinLevel: 1, MaxLevel: 4,
			Description: "A young vampire, still weak and inexperienced."},
		{Key: "melchahim", Title: "Mangeur de Peau", MinLevel: 5, MaxLevel: 9, Abilities: t1,
			Description: "Member of Melchiah's clan, the devourers."},
		{Key: "zephonim", Title: "Grimpeur", MinLevel: 10, MaxLevel: 14, Abilities: t2,
			Description: "Member of Zephon's clan, the wall crawlers."},
		{Key: "dumahim", Title: "Croisé", MinLevel: 15, MaxLevel: 19, Abilities: t3,
			Description: "Member of Dumah's clan, the ruthless."},
		{Key: "rahabim", Title: "Noyé", MinLevel: 20, MaxLevel: 24, Abilities: t4,
			Description: "Member of Rahab's clan, dwellers of the waters."},
		{Key: "turelim", Title: "Loyal", MinLevel: 25, MaxLevel: 29, Abilities: t4,
			Description: "Member of Turel's clan, the loyal giants."},
		{Key: "razielim", Title: "Banni", MinLevel: 30, MaxLevel: 39, Abilities: t5, HasWings: true,
			Description: "Member of Raziel's clan, the winged outcasts."},
		{Key: "elder", Title: "Ancien", MinLevel: 40, MaxLevel: Unbounded, Abilities: t5,
			Description: "An ancient vampire of immense power."},
	}
}

// Default builds the standard eight-clan table, applying display name and
// color overrides keyed by clan key.
func Default(styles map[string]config.ClanStyle) (*Table, error) {
	entries := defaultEntries()
	for i := range entries {
		c := &entries[i]
		style := styles[c.Key]
		c.Name = style.Name
		if c.Name == "" {
			c.Name = strings.ToUpper(c.Key[:1]) + c.Key[1:]
		}
		c.Color = ParseColor(style.Color)
	}
	return NewTable(entries)
}
