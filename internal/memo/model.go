package memo

import "time"

// Memo is the stored note. Secret holds whatever the SecretMatcher sealed.
type Memo struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Content   string    `gorm:"type:text;not null"`
	Secret    string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// Tag is a vocabulary entry. Name keeps the marker and is case-sensitive.
// Tags are never deleted.
type Tag struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"uniqueIndex:uq_tags_name;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

// MemoTag links a memo to a vocabulary tag.
type MemoTag struct {
	MemoID uint64 `gorm:"primaryKey;autoIncrement:false"`
	TagID  uint64 `gorm:"primaryKey;autoIncrement:false;index:idx_memo_tags_tag"`
}

// MemoCategory persists the classifier output for a memo.
type MemoCategory struct {
	MemoID   uint64 `gorm:"primaryKey;autoIncrement:false"`
	Category string `gorm:"primaryKey;size:128;index:idx_memo_categories_category"`
}

// Summary is the list shape of a memo.
type Summary struct {
	ID      uint64 `json:"id"`
	Content string `json:"content"`
}

// Result is a memo together with its current hashtags and categories.
type Result struct {
	ID         uint64   `json:"id"`
	Content    string   `json:"content"`
	Hashtags   []string `json:"hashtags"`
	Categories []string `json:"categories"`
}

// TagCount is a vocabulary entry with the number of memos linked to it.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int64  `json:"count"`
}
