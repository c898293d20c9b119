package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// MaxLabelLength is the longest button label a messaging channel accepts.
const MaxLabelLength = 20

// FaqEntry is a curated question with a canned answer.
type FaqEntry struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	Label             string    `json:"label" gorm:"uniqueIndex;size:20;not null"`
	Question          string    `json:"question" gorm:"type:text"`
	Answer            string    `json:"answer" gorm:"type:text"`
	Keywords          string    `json:"keywords" gorm:"type:text"`
	IsDefaultGreeting bool      `json:"is_default_greeting" gorm:"index"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// KeywordList splits the comma separated keyword column.
func (f *FaqEntry) KeywordList() []string {
	return splitKeywords(f.Keywords)
}

// KnowledgeEntry is the free-text fallback tier below FaqEntry.
type KnowledgeEntry struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Question  string    `json:"question" gorm:"type:text"`
	Answer    string    `json:"answer" gorm:"type:text"`
	Keywords  string    `json:"keywords" gorm:"type:text"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UnknownQuestion is kept once per customer and text for later curation.
// Uniqueness is on the text hash; message text has no length limit.
type UnknownQuestion struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	CustomerID uint      `json:"customer_id" gorm:"uniqueIndex:idx_unknown_customer_text;not null"`
	Text       string    `json:"text" gorm:"type:text;not null"`
	TextHash   string    `json:"-" gorm:"uniqueIndex:idx_unknown_customer_text;size:64;not null"`
	Reviewed   bool      `json:"reviewed" gorm:"index"`
	CreatedAt  time.Time `json:"created_at"`
}

// QuestionHash is the hex SHA-256 of text, the dedupe key of UnknownQuestion.
func QuestionHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

func splitKeywords(raw string) []string {
	var out []string
	for _, k := range strings.Split(raw, ",") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			out = append(out, k)
		}
	}
	return out
}
