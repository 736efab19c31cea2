// Package clan resolves a character level to its vampire clan and the
// abilities unlocked along the way.
package clan

import (
	"math"
	"strconv"
	"strings"
)

// Unbounded marks the open upper end of the last clan's level range.
const Unbounded = math.MaxInt

// DefaultColor is used when a clan has no configured color or it does not parse.
const DefaultColor = 0x808080

// Unlock is one ability unlocked at a given level.
type Unlock struct {
	Level       int    `json:"level"`
	Command     string `json:"command"`
	Description string `json:"description"`
}

// Clan is one tier of the progression table.
type Clan struct {
	Key         string   `json:"key"`
	Name        string   `json:"name"` // display name, also the chat role name
	Title       string   `json:"title"`
	Color       int      `json:"color"`
	Description string   `json:"description"`
	MinLevel    int      `json:"min_level"`
	MaxLevel    int      `json:"max_level"`
	HasWings    bool     `json:"has_wings"`
	Abilities   []Unlock `json:"abilities"` // cumulative
}

// Contains reports whether level falls in the clan's inclusive range.
func (c Clan) Contains(level int) bool {
	return level >= c.MinLevel && level <= c.MaxLevel
}

// RangeLabel renders the range as "5-9" or "40+".
func (c Clan) RangeLabel() string {
	if c.MaxLevel == Unbounded {
		return strconv.Itoa(c.MinLevel) + "+"
	}
	return strconv.Itoa(c.MinLevel) + "-" + strconv.Itoa(c.MaxLevel)
}

// ParseColor converts "#rrggbb" (or "rrggbb") to an integer color.
func ParseColor(hex string) int {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if hex == "" {
		return DefaultColor
	}
	v, err := strconv.ParseInt(hex, 16, 32)
	if err != nil || v < 0 || v > 0xFFFFFF {
		return DefaultColor
	}
	return int(v)
}
