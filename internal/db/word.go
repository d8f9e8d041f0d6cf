package db

import "time"

// Word is one entry of the word bank. Category "Mixed" is reserved for
// drawing across every category and is never stored.
type Word struct {
	ID        uint      `gorm:"primaryKey"`
	Category  string    `gorm:"size:32;not null;uniqueIndex:idx_words_category_text"`
	Text      string    `gorm:"size:64;not null;uniqueIndex:idx_words_category_text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
