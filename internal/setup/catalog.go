package setup

import (
	"fmt"
	"slices"
	"strings"

	"github.com/rocketscienceinc/blinktactoe-backend/internal/apperror"
	"github.com/rocketscienceinc/blinktactoe-backend/internal/entity"
)

// Category is a named set of emojis players choose their markers from.
type Category struct {
	Name   string          `json:"name"`
	Emojis []entity.Marker `json:"emojis"`
}

// PlayerRequest is what a player submits before the game starts.
type PlayerRequest struct {
	Name     string          `json:"name"`
	Category string          `json:"category"`
	Emojis   []entity.Marker `json:"emojis"`
}

var DefaultCategories = []Category{
	{Name: "animals", Emojis: []entity.Marker{"🐶", "🐱", "🐵", "🐰"}},
	{Name: "food", Emojis: []entity.Marker{"🍕", "🍟", "🍔", "🍩"}},
	{Name: "sports", Emojis: []entity.Marker{"⚽️", "🏀", "🏈", "🎾"}},
	{Name: "nature", Emojis: []entity.Marker{"🌸", "🌺", "🌹", "🌻"}},
}

type Catalog struct {
	categories []Category
	byName     map[string]Category
}

func NewCatalog(categories ...Category) *Catalog {
	if len(categories) == 0 {
		categories = DefaultCategories
	}

	catalog := &Catalog{
		byName: make(map[string]Category, len(categories)),
	}

	for _, category := range categories {
		category.Emojis = append([]entity.Marker(nil), category.Emojis...)
		catalog.categories = append(catalog.categories, category)
		catalog.byName[category.Name] = category
	}

	return catalog
}

// CatalogFromMap builds a catalog from configuration, ordered by category name.
func CatalogFromMap(categories map[string][]string) *Catalog {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	slices.Sort(names)

	list := make([]Category, 0, len(names))
	for _, name := range names {
		emojis := make([]entity.Marker, 0, len(categories[name]))
		for _, emoji := range categories[name] {
			emojis = append(emojis, entity.Marker(emoji))
		}
		list = append(list, Category{Name: name, Emojis: emojis})
	}

	return NewCatalog(list...)
}

func (that *Catalog) Categories() []Category {
	categories := make([]Category, 0, len(that.categories))
	for _, category := range that.categories {
		category.Emojis = append([]entity.Marker(nil), category.Emojis...)
		categories = append(categories, category)
	}

	return categories
}

// Validate checks both players' choices and turns them into engine configs.
func (that *Catalog) Validate(player1, player2 PlayerRequest) ([2]entity.PlayerConfig, error) {
	var players [2]entity.PlayerConfig

	for i, request := range []PlayerRequest{player1, player2} {
		player, err := that.validatePlayer(request)
		if err != nil {
			return [2]entity.PlayerConfig{}, fmt.Errorf("%w: player %d: %w", apperror.ErrInvalidConfiguration, i+1, err)
		}
		players[i] = player
	}

	if players[0].Category == players[1].Category {
		return [2]entity.PlayerConfig{}, fmt.Errorf("%w: player 2: %w: %s", apperror.ErrInvalidConfiguration, apperror.ErrCategoryTaken, players[1].Category)
	}

	return players, nil
}

func (that *Catalog) validatePlayer(request PlayerRequest) (entity.PlayerConfig, error) {
	name := strings.TrimSpace(request.Name)
	if name == "" {
		return entity.PlayerConfig{}, apperror.ErrMissingName
	}

	if request.Category == "" {
		return entity.PlayerConfig{}, apperror.ErrMissingCategory
	}

	category, ok := that.byName[request.Category]
	if !ok {
		return entity.PlayerConfig{}, fmt.Errorf("%w: %s", apperror.ErrUnknownCategory, request.Category)
	}

	if len(request.Emojis) != entity.PaletteSize {
		return entity.PlayerConfig{}, fmt.Errorf("%w: got %d", apperror.ErrWrongEmojiCount, len(request.Emojis))
	}

	seen := make(map[entity.Marker]bool, len(request.Emojis))
	for _, emoji := range request.Emojis {
		if seen[emoji] {
			return entity.PlayerConfig{}, fmt.Errorf("%w: %s", apperror.ErrDuplicateEmoji, emoji)
		}
		seen[emoji] = true

		if !slices.Contains(category.Emojis, emoji) {
			return entity.PlayerConfig{}, fmt.Errorf("%w: %s not in %s", apperror.ErrEmojiNotInCategory, emoji, category.Name)
		}
	}

	return entity.PlayerConfig{
		Name:     name,
		Category: category.Name,
		Palette:  append([]entity.Marker(nil), request.Emojis...),
	}, nil
}
