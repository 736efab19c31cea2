// Package ability tracks per-user ability cooldowns.
package ability

import "time"

const (
	Devour     = "devour"
	Chaussette = "chaussette"
	Swim       = "swim"
	Curse      = "curse"
	Swap       = "swap"
	Evolve     = "evolve"
	Spectral   = "spectral"
)

const Day = 24 * time.Hour

// Ability is a catalog entry. A zero Cooldown means the ability is not
// cooldown-gated.
type Ability struct {
	Name     string        `json:"name"`
	MinLevel int           `json:"min_level"`
	Cooldown time.Duration `json:"cooldown"`
}

var builtin = []Ability{
	{Name: Devour, MinLevel: 5, Cooldown: Day},
	{Name: Chaussette, MinLevel: 5, Cooldown: 7 * Day},
	{Name: Curse, MinLevel: 10, Cooldown: 7 * Day},
	{Name: Swap, MinLevel: 15},
	{Name: Swim, MinLevel: 20, Cooldown: 7 * Day},
	{Name: Evolve, MinLevel: 30},
	{Name: Spectral, MinLevel: 30},
}

// Catalog is the read-only set of abilities.
type Catalog struct {
	list   []Ability
	byName map[string]Ability
}

// NewCatalog returns the built-in catalog with cooldown overrides applied.
// Overrides for unknown names are ignored.
func NewCatalog(cooldowns map[string]time.Duration) *Catalog {
	c := &Catalog{byName: make(map[string]Ability, len(builtin))}
	for _, a := range builtin {
		if d, ok := cooldowns[a.Name]; ok && d >= 0 {
			a.Cooldown = d
		}
		c.list = append(c.list, a)
		c.byName[a.Name] = a
	}
	return c
}

func (c *Catalog) Get(name string) (Ability, bool) {
	a, ok := c.byName[name]
	return a, ok
}

// MustGet panics on unknown names; for use with the package constants.
func (c *Catalog) MustGet(name string) Ability {
	a, ok := c.byName[name]
	if !ok {
		panic("ability: unknown " + name)
	}
	return a
}

func (c *Catalog) All() []Ability {
	out := make([]Ability, len(c.list))
	copy(out, c.list)
	return out
}
