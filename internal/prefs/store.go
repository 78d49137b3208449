// Package prefs keeps the per-chat response-language preference.
// State lives for the process lifetime only.
package prefs

import (
	"strings"
	"sync"
)

type Language string

const (
	English Language = "en"
	Arabic  Language = "ar"
)

// Name returns the human-readable language name used in prompts.
func (l Language) Name() string {
	switch l {
	case Arabic:
		return "Arabic"
	default:
		return "English"
	}
}

// Normalize maps a user-supplied code to a supported Language.
func Normalize(code string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "en":
		return English, true
	case "ar":
		return Arabic, true
	default:
		return "", false
	}
}

// Store maps chat id to response language. Reads before the first write
// return English. Writes are last-write-wins per key.
type Store struct {
	mu     sync.Mutex
	byChat map[int64]Language
}

func NewStore() *Store {
	return &Store{byChat: make(map[int64]Language)}
}

func (s *Store) Get(chatID int64) Language {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lang, ok := s.byChat[chatID]; ok {
		return lang
	}
	return English
}

// Set records the preference for chatID. It accepts only "en" or "ar"
// (case-insensitive) and reports whether the value was stored; on any
// other input the store is left unchanged.
func (s *Store) Set(chatID int64, code string) bool {
	lang, ok := Normalize(code)
	if !ok {
		return false
	}
	s.mu.Lock()
	s.byChat[chatID] = lang
	s.mu.Unlock()
	return true
}
