package prefs

import (
	"sync"
	"testing"
)

func TestStoreDefaultsToEnglish(t *testing.T) {
	t.Parallel()
	s := NewStore()
	if got := s.Get(42); got != English {
		t.Fatalf("Get before any Set = %q, want %q", got, English)
	}
}

func TestStoreSet(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name     string
		code     string
		wantOK   bool
		wantLang Language
	}{
		{name: "english", code: "en", wantOK: true, wantLang: English},
		{name: "arabic", code: "ar", wantOK: true, wantLang: Arabic},
		{name: "uppercase", code: "AR", wantOK: true, wantLang: Arabic},
		{name: "padded", code: " en ", wantOK: true, wantLang: English},
		{name: "unknown", code: "fr", wantOK: false, wantLang: English},
		{name: "empty", code: "", wantOK: false, wantLang: English},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := NewStore()
			if got := s.Set(7, tc.code); got != tc.wantOK {
				t.Fatalf("Set(%q) = %v, want %v", tc.code, got, tc.wantOK)
			}
			if got := s.Get(7); got != tc.wantLang {
				t.Fatalf("Get after Set(%q) = %q, want %q", tc.code, got, tc.wantLang)
			}
		})
	}
}

func TestStoreInvalidSetLeavesPreviousValue(t *testing.T) {
	t.Parallel()
	s := NewStore()
	if !s.Set(1, "ar") {
		t.Fatal("Set(ar) rejected")
	}
	if s.Set(1, "xx") {
		t.Fatal("Set(xx) accepted")
	}
	if got := s.Get(1); got != Arabic {
		t.Fatalf("Get after invalid Set = %q, want %q", got, Arabic)
	}
}

func TestStoreIsPerChat(t *testing.T) {
	t.Parallel()
	s := NewStore()
	s.Set(1, "ar")
	if got := s.Get(2); got != English {
		t.Fatalf("Get(other chat) = %q, want %q", got, English)
	}
}

func TestStoreConcurrentWrites(t *testing.T) {
	t.Parallel()
	s := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			code := "en"
			if i%2 == 0 {
				code = "ar"
			}
			s.Set(int64(i%4), code)
			_ = s.Get(int64(i % 4))
		}(i)
	}
	wg.Wait()
	for chat := int64(0); chat < 4; chat++ {
		got := s.Get(chat)
		if got != English && got != Arabic {
			t.Fatalf("Get(%d) = %q, want a supported language", chat, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	if lang, ok := Normalize("En"); !ok || lang != English {
		t.Fatalf("Normalize(En) = %q, %v", lang, ok)
	}
	if _, ok := Normalize("de"); ok {
		t.Fatal("Normalize(de) accepted")
	}
}

func TestLanguageName(t *testing.T) {
	t.Parallel()
	if got := English.Name(); got != "English" {
		t.Fatalf("English.Name() = %q", got)
	}
	if got := Arabic.Name(); got != "Arabic" {
		t.Fatalf("Arabic.Name() = %q", got)
	}
}
