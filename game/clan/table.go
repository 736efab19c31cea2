package clan

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidTable = errors.New("clan: invalid table")

// Table is an immutable, validated, ordered list of clans.
type Table struct {
	clans   []Clan
	catalog []Unlock // union of all clan abilities, sorted by level then first appearance
}

// NewTable validates entries and builds a Table. Entries must be ordered by
// level, start at 1, be contiguous, end unbounded, carry cumulative ability
// lists and designate exactly one winged clan.
func NewTable(entries []Clan) (*Table, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no clans", ErrInvalidTable)
	}
	seen := make(map[string]bool, len(entries))
	wings := 0
	for i, c := range entries {
		if c.Key == "" {
			return nil, fmt.Errorf("%w: clan %d has no key", ErrInvalidTable, i)
		}
		if seen[c.Key] {
			return nil, fmt.Errorf("%w: duplicate clan key %q", ErrInvalidTable, c.Key)
		}
		seen[c.Key] = true
		if c.MaxLevel < c.MinLevel {
			return nil, fmt.Errorf("%w: clan %q range %d-%d is empty", ErrInvalidTable, c.Key, c.MinLevel, c.MaxLevel)
		}
		if i == 0 && c.MinLevel != 1 {
			return nil, fmt.Errorf("%w: first clan %q starts at %d, want 1", ErrInvalidTable, c.Key, c.MinLevel)
		}
		last := i == len(entries)-1
		if last && c.MaxLevel != Unbounded {
			return nil, fmt.Errorf("%w: last clan %q must be unbounded", ErrInvalidTable, c.Key)
		}
		if !last && c.MaxLevel == Unbounded {
			return nil, fmt.Errorf("%w: clan %q is unbounded but not last", ErrInvalidTable, c.Key)
		}
		if i > 0 {
			prev := entries[i-1]
			if c.MinLevel != prev.MaxLevel+1 {
				return nil, fmt.Errorf("%w: gap or overlap between %q and %q", ErrInvalidTable, prev.Key, c.Key)
			}
			if missing := missingUnlock(prev.Abilities, c.Abilities); missing != "" {
				return nil, fmt.Errorf("%w: clan %q drops ability %q", ErrInvalidTable, c.Key, missing)
			}
		}
		for _, a := range c.Abilities {
			if a.Command == "" || a.Level < 1 || a.Level > c.MaxLevel {
				return nil, fmt.Errorf("%w: clan %q lists unreachable ability %q@%d", ErrInvalidTable, c.Key, a.Command, a.Level)
			}
		}
		if c.HasWings {
			wings++
		}
	}
	if wings != 1 {
		return nil, fmt.Errorf("%w: %d winged clans, want 1", ErrInvalidTable, wings)
	}

	clans := make([]Clan, len(entries))
	for i, c := range entries {
		c.Abilities = append([]Unlock(nil), c.Abilities...)
		clans[i] = c
	}
	return &Table{clans: clans, catalog: buildCatalog(clans)}, nil
}

func missingUnlock(prev, next []Unlock) string {
	have := make(map[string]bool, len(next))
	for _, a := range next {
		have[a.Command] = true
	}
	for _, a := range prev {
		if !have[a.Command] {
			return a.Command
		}
	}
	return ""
}

func buildCatalog(clans []Clan) []Unlock {
	var catalog []Unlock
	seen := make(map[string]bool)
	for _, c := range clans {
		for _, a := range c.Abilities {
			if seen[a.Command] {
				continue
			}
			seen[a.Command] = true
			catalog = append(catalog, a)
		}
	}
	sort.SliceStable(catalog, func(i, j int) bool { return catalog[i].Level < catalog[j].Level })
	return catalog
}

// Clans returns a copy of the ordered clan list.
func (t *Table) Clans() []Clan {
	out := make([]Clan, len(t.clans))
	copy(out, t.clans)
	return out
}

// ByLevel returns the clan whose range contains level, or the level-1 clan
// when nothing matches (levels below 1).
func (t *Table) ByLevel(level int) Clan {
	for _, c := range t.clans {
		if c.Contains(level) {
			return c
		}
	}
	return t.clans[0]
}

// HasChanged reports whether two levels resolve to different clans.
func (t *Table) HasChanged(oldLevel, newLevel int) bool {
	return t.ByLevel(oldLevel).Key != t.ByLevel(newLevel).Key
}

// UnlockedAbilities lists the current clan's abilities whose unlock level is reached.
func (t *Table) UnlockedAbilities(level int) []Unlock {
	var out []Unlock
	for _, a := range t.ByLevel(level).Abilities {
		if a.Level <= level {
			out = append(out, a)
		}
	}
	return out
}

// NewlyUnlocked lists abilities unlocked exactly at level.
func (t *Table) NewlyUnlocked(level int) []Unlock {
	var out []Unlock
	for _, a := range t.catalog {
		if a.Level == level {
			out = append(out, a)
		}
	}
	return out
}

// NextUnlock returns the catalog ability with the smallest unlock level
// strictly above level. Ties keep catalog order.
func (t *Table) NextUnlock(level int) (Unlock, bool) {
	for _, a := range t.catalog {
		if a.Level > level {
			return a, true
		}
	}
	return Unlock{}, false
}

// UnlockLevel returns the level at which command becomes available.
func (t *Table) UnlockLevel(command string) (int, bool) {
	for _, a := range t.catalog {
		if a.Command == command {
			return a.Level, true
		}
	}
	return 0, false
}

// RoleNames returns every clan's role name, in table order.
func (t *Table) RoleNames() []string {
	names := make([]string, len(t.clans))
	for i, c := range t.clans {
		names[i] = c.Name
	}
	return names
}
