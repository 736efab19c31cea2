// Package lore serves quotes of the game's characters in the supported
// locales.
package lore

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/nosgoth/eldergod/config"
	"github.com/nosgoth/eldergod/model"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"gorm.io/gorm"
)

// MaxSuggestions is the most choices an autocomplete reply may carry.
const MaxSuggestions = 25

var (
	ErrUnknownCharacter = errors.New("lore: unknown character")
	ErrNoQuote          = errors.New("lore: character has no quote")
)

// columns maps a locale to the suffix of the name_* and quote_* columns.
var columns = map[string]bool{"en": true, "fr": true}

// LocaleError is returned for a locale outside the allowed set.
type LocaleError struct {
	Lang    string
	Allowed []string
}

func (e *LocaleError) Error() string {
	return fmt.Sprintf("Unsupported language %q. Use: %s", e.Lang, strings.Join(e.Allowed, ", "))
}

type Service struct {
	db      *gorm.DB
	logger  *zap.Logger
	def     string
	allowed []string
	intn    func(n int) int

	mu    sync.RWMutex
	names []string
}

// NewService validates the locale configuration. intn picks a quote index; nil
// uses math/rand.
func NewService(db *gorm.DB, cfg config.LocaleConfig, logger *zap.Logger, intn func(n int) int) (*Service, error) {
	if intn == nil {
		intn = rand.IntN
	}
	s := &Service{db: db, logger: logger, intn: intn}
	for _, raw := range cfg.Allowed {
		base, err := baseOf(raw)
		if err != nil {
			return nil, fmt.Errorf("locale %q: %w", raw, err)
		}
		if !columns[base] {
			return nil, fmt.Errorf("locale %q has no lore columns", raw)
		}
		s.allowed = append(s.allowed, base)
	}
	if len(s.allowed) == 0 {
		return nil, errors.New("no allowed locale")
	}
	s.def = s.allowed[0]
	if cfg.Default != "" {
		def, err := s.ValidateLocale(cfg.Default)
		if err != nil {
			return nil, fmt.Errorf("default locale: %w", err)
		}
		s.def = def
	}
	return s, nil
}

func baseOf(raw string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	base, _ := tag.Base()
	return base.String(), nil
}

// Default returns the default locale.
func (s *Service) Default() string { return s.def }

// Allowed returns the supported locales.
func (s *Service) Allowed() []string {
	out := make([]string, len(s.allowed))
	copy(out, s.allowed)
	return out
}

// ValidateLocale normalizes lang to a supported base locale. An empty lang
// selects the default.
func (s *Service) ValidateLocale(lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return s.def, nil
	}
	base, err := baseOf(lang)
	if err != nil {
		return "", &LocaleError{Lang: lang, Allowed: s.allowed}
	}
	for _, a := range s.allowed {
		if a == base {
			return base, nil
		}
	}
	return "", &LocaleError{Lang: lang, Allowed: s.allowed}
}

// Exists reports whether a character has this name in lang.
func (s *Service) Exists(ctx context.Context, name, lang string) (bool, error) {
	lang, err := s.ValidateLocale(lang)
	if err != nil {
		return false, err
	}
	var n int64
	err = s.db.WithContext(ctx).Model(&model.LoreCharacter{}).
		Where("name_"+lang+" = ?", name).
		Count(&n).Error
	return n > 0, err
}

// RandomQuote returns one quote of the named character in lang.
func (s *Service) RandomQuote(ctx context.Context, name, lang string) (string, error) {
	lang, err := s.ValidateLocale(lang)
	if err != nil {
		return "", err
	}
	ok, err := s.Exists(ctx, name, lang)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUnknownCharacter
	}
	var quotes []string
	err = s.db.WithContext(ctx).Table("egb_quotes AS q").
		Joins("INNER JOIN egb_dim_characters c ON c.id = q.character_id").
		Where("c.name_"+lang+" = ? AND q.quote_"+lang+" <> ''", name).
		Order("q.id").
		Pluck("q.quote_"+lang, &quotes).Error
	if err != nil {
		return "", fmt.Errorf("load quotes of %q: %w", name, err)
	}
	if len(quotes) == 0 {
		return "", ErrNoQuote
	}
	return quotes[s.intn(len(quotes))], nil
}

// Names lists the character names in lang, sorted.
func (s *Service) Names(ctx context.Context, lang string) ([]string, error) {
	lang, err := s.ValidateLocale(lang)
	if err != nil {
		return nil, err
	}
	col := "name_" + lang
	var names []string
	err = s.db.WithContext(ctx).Model(&model.LoreCharacter{}).
		Distinct(col).
		Order(col).
		Pluck(col, &names).Error
	return names, err
}

// Refresh reloads the autocomplete list in the default locale.
func (s *Service) Refresh(ctx context.Context) error {
	names, err := s.Names(ctx, s.def)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.names = names
	s.mu.Unlock()
	s.logger.Debug("lore names refreshed", zap.Int("count", len(names)))
	return nil
}

// Suggest returns up to MaxSuggestions cached names containing fragment,
// ignoring case.
func (s *Service) Suggest(fragment string) []string {
	fragment = strings.ToLower(fragment)
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, MaxSuggestions)
	for _, n := range s.names {
		if strings.Contains(strings.ToLower(n), fragment) {
			out = append(out, n)
			if len(out) == MaxSuggestions {
				break
			}
		}
	}
	return out
}

// QuoteInput is one quote in both locales.
type QuoteInput struct {
	EN string `json:"en"`
	FR string `json:"fr"`
}

// AddQuotes creates the character if needed and appends quotes to it.
func (s *Service) AddQuotes(ctx context.Context, nameEN, nameFR string, quotes []QuoteInput) (int64, error) {
	nameEN, nameFR = strings.TrimSpace(nameEN), strings.TrimSpace(nameFR)
	if nameEN == "" || nameFR == "" {
		return 0, errors.New("both names are required")
	}
	var id int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ch := model.LoreCharacter{NameEN: nameEN, NameFR: nameFR}
		if err := tx.Where("name_en = ?", nameEN).FirstOrCreate(&ch).Error; err != nil {
			return err
		}
		id = ch.ID
		rows := make([]model.Quote, 0, len(quotes))
		for _, q := range quotes {
			if q.EN == "" && q.FR == "" {
				continue
			}
			rows = append(rows, model.Quote{CharacterID: ch.ID, QuoteEN: q.EN, QuoteFR: q.FR})
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
	if err != nil {
		return 0, fmt.Errorf("add quotes for %q: %w", nameEN, err)
	}
	return id, nil
}

