package server

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"

	"word-party/internal/db"
	"word-party/internal/protocol"

	"gorm.io/gorm"
)

// wordBank holds the word list in memory. Pick runs while the room registry
// is locked, so it never touches the database; Refresh reloads from it.
type wordBank struct {
	db *gorm.DB

	mu         sync.RWMutex
	categories map[string][]string
}

func newWordBank(conn *gorm.DB) *wordBank {
	return &wordBank{db: conn, categories: fallbackWords()}
}

func (b *wordBank) Refresh(ctx context.Context) (int, error) {
	if b.db == nil {
		return b.count(), nil
	}
	var records []db.Word
	if err := b.db.WithContext(ctx).Order("category asc, text asc").Find(&records).Error; err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return b.count(), nil
	}
	categories := make(map[string][]string)
	for _, record := range records {
		categories[record.Category] = append(categories[record.Category], record.Text)
	}
	b.mu.Lock()
	b.categories = categories
	b.mu.Unlock()
	return len(records), nil
}

// Pick returns a random word from the room's category. Mixed, or a category
// with no words, draws from every category.
func (b *wordBank) Pick(settings protocol.Settings) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !strings.EqualFold(settings.Category, protocol.DefaultCategory) {
		for name, words := range b.categories {
			if strings.EqualFold(name, settings.Category) && len(words) > 0 {
				return words[rand.IntN(len(words))]
			}
		}
	}
	total := 0
	for _, words := range b.categories {
		total += len(words)
	}
	if total == 0 {
		return ""
	}
	n := rand.IntN(total)
	for _, name := range b.sortedLocked() {
		words := b.categories[name]
		if n < len(words) {
			return words[n]
		}
		n -= len(words)
	}
	return ""
}

func (b *wordBank) Categories() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string{protocol.DefaultCategory}, b.sortedLocked()...)
}

func (b *wordBank) sortedLocked() []string {
	names := make([]string, 0, len(b.categories))
	for name := range b.categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (b *wordBank) count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, words := range b.categories {
		total += len(words)
	}
	return total
}

func fallbackWords() map[string][]string {
	return map[string][]string{
		"Animals": {"giraffe", "penguin", "octopus", "kangaroo", "hedgehog", "flamingo"},
		"Food":    {"pancake", "burrito", "pretzel", "avocado", "lasagna", "popcorn"},
		"Movies":  {"sequel", "villain", "popcorn", "montage", "cameo", "trailer"},
		"Places":  {"lighthouse", "volcano", "library", "airport", "waterfall", "museum"},
		"Things":  {"umbrella", "telescope", "backpack", "hammock", "kettle", "compass"},
	}
}
