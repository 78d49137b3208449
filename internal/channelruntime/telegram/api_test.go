package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hatemua/telegBot/internal/dispatch"
)

func TestEscapeTelegramMarkdownV2(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{in: "plain words", want: "plain words"},
		{in: "a_b", want: `a\_b`},
		{in: "1+1=2!", want: `1\+1\=2\!`},
		{in: "(x) [y] {z}", want: `\(x\) \[y\] \{z\}`},
		{in: "a.b-c", want: `a\.b\-c`},
	}
	for _, tc := range cases {
		if got := escapeTelegramMarkdownV2(tc.in); got != tc.want {
			t.Fatalf("escape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSendMessageMarkdownFallback(t *testing.T) {
	t.Parallel()
	var got []telegramSendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("path = %q", r.URL.Path)
		}
		var req telegramSendMessageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		got = append(got, req)
		if req.ParseMode == "MarkdownV2" {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(telegramOKResponse{
				OK:          false,
				ErrorCode:   400,
				Description: "Bad Request: can't parse entities: Character '_' is reserved",
			})
			return
		}
		_ = json.NewEncoder(w).Encode(telegramOKResponse{OK: true})
	}))
	t.Cleanup(srv.Close)

	api := newTelegramAPI(srv.Client(), srv.URL, "token")
	if err := api.sendMessageMarkdownV2(context.Background(), 1, "snake_case answer", nil); err != nil {
		t.Fatalf("sendMessageMarkdownV2: %v", err)
	}

	// Rich, escaped rich, then plain.
	if len(got) != 3 {
		t.Fatalf("got %d requests, want 3", len(got))
	}
	if got[0].ParseMode != "MarkdownV2" || got[0].Text != "snake_case answer" {
		t.Fatalf("first request = %+v", got[0])
	}
	if got[1].ParseMode != "MarkdownV2" || got[1].Text != `snake\_case answer` {
		t.Fatalf("second request = %+v", got[1])
	}
	if got[2].ParseMode != "" || got[2].Text != "snake_case answer" {
		t.Fatalf("third request = %+v", got[2])
	}
}

func TestSendMessageChunked(t *testing.T) {
	t.Parallel()
	var texts []string
	var markups []*telegramInlineKeyboardMarkup
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req telegramSendMessageRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		texts = append(texts, req.Text)
		markups = append(markups, req.ReplyMarkup)
		_ = json.NewEncoder(w).Encode(telegramOKResponse{OK: true})
	}))
	t.Cleanup(srv.Close)

	api := newTelegramAPI(srv.Client(), srv.URL, "token")
	long := strings.Repeat("a", 3500) + strings.Repeat("b", 100)
	markup := &telegramInlineKeyboardMarkup{
		InlineKeyboard: [][]telegramInlineKeyboardButton{{{Text: "English", CallbackData: "set_lang:en"}}},
	}
	if err := api.sendMessageChunked(context.Background(), 1, long, markup); err != nil {
		t.Fatalf("sendMessageChunked: %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("got %d sends, want 2", len(texts))
	}
	if len(texts[0]) != 3500 || texts[1] != strings.Repeat("b", 100) {
		t.Fatalf("chunk lengths = %d, %d", len(texts[0]), len(texts[1]))
	}
	if markups[0] == nil || markups[1] != nil {
		t.Fatal("keyboard should ride only on the first chunk")
	}
}

func TestGetUpdatesAdvancesOffset(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("offset"); got != "5" {
			t.Errorf("offset = %q, want 5", got)
		}
		if !strings.Contains(r.URL.Query().Get("allowed_updates"), "callback_query") {
			t.Error("allowed_updates missing callback_query")
		}
		_ = json.NewEncoder(w).Encode(telegramGetUpdatesResponse{
			OK: true,
			Result: []telegramUpdate{
				{UpdateID: 7},
				{UpdateID: 9},
			},
		})
	}))
	t.Cleanup(srv.Close)

	api := newTelegramAPI(srv.Client(), srv.URL, "token")
	updates, next, err := api.getUpdates(context.Background(), 5, 0)
	if err != nil {
		t.Fatalf("getUpdates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates", len(updates))
	}
	if next != 10 {
		t.Fatalf("next offset = %d, want 10", next)
	}
}

func TestAnswerCallbackAndClearMarkup(t *testing.T) {
	t.Parallel()
	var paths []string
	var lastBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		lastBody = map[string]any{}
		_ = json.NewDecoder(r.Body).Decode(&lastBody)
		_ = json.NewEncoder(w).Encode(telegramOKResponse{OK: true})
	}))
	t.Cleanup(srv.Close)

	api := newTelegramAPI(srv.Client(), srv.URL, "token")
	if err := api.answerCallbackQuery(context.Background(), "cb-1"); err != nil {
		t.Fatalf("answerCallbackQuery: %v", err)
	}
	if !strings.HasSuffix(paths[0], "/answerCallbackQuery") {
		t.Fatalf("path = %q", paths[0])
	}

	if err := api.editMessageReplyMarkup(context.Background(), 3, 77, nil); err != nil {
		t.Fatalf("editMessageReplyMarkup: %v", err)
	}
	if !strings.HasSuffix(paths[1], "/editMessageReplyMarkup") {
		t.Fatalf("path = %q", paths[1])
	}
	if _, hasMarkup := lastBody["reply_markup"]; hasMarkup {
		t.Fatal("clearing should omit reply_markup")
	}
}

func TestEventFromUpdate(t *testing.T) {
	t.Parallel()
	chat := &telegramChat{ID: 42}
	cases := []struct {
		name     string
		update   telegramUpdate
		wantOK   bool
		wantKind dispatch.Kind
	}{
		{
			name:     "text",
			update:   telegramUpdate{Message: &telegramMessage{MessageID: 1, Chat: chat, Text: "hi"}},
			wantOK:   true,
			wantKind: dispatch.KindText,
		},
		{
			name:     "voice",
			update:   telegramUpdate{Message: &telegramMessage{MessageID: 2, Chat: chat, Voice: &telegramVoice{FileID: "v", Duration: 3}}},
			wantOK:   true,
			wantKind: dispatch.KindVoice,
		},
		{
			name:     "audio",
			update:   telegramUpdate{Message: &telegramMessage{MessageID: 3, Chat: chat, Audio: &telegramAudio{FileID: "a", Title: "Surah"}}},
			wantOK:   true,
			wantKind: dispatch.KindAudio,
		},
		{
			name: "callback",
			update: telegramUpdate{CallbackQuery: &telegramCallbackQuery{
				ID:      "cb",
				Data:    "set_lang:ar",
				Message: &telegramMessage{MessageID: 9, Chat: chat},
			}},
			wantOK:   true,
			wantKind: dispatch.KindCallback,
		},
		{
			name:     "photo_or_other_media",
			update:   telegramUpdate{Message: &telegramMessage{MessageID: 4, Chat: chat, Caption: "look"}},
			wantOK:   true,
			wantKind: dispatch.KindUnsupported,
		},
		{
			name:   "empty_update",
			update: telegramUpdate{},
			wantOK: false,
		},
		{
			name: "bot_message_ignored",
			update: telegramUpdate{Message: &telegramMessage{
				MessageID: 5, Chat: chat, Text: "hi",
				From: &telegramUser{ID: 1, IsBot: true},
			}},
			wantOK: false,
		},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ev, ok := eventFromUpdate(tc.update)
			if ok != tc.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tc.wantOK)
			}
			if !ok {
				return
			}
			if ev.Kind != tc.wantKind {
				t.Fatalf("kind = %v, want %v", ev.Kind, tc.wantKind)
			}
			if ev.ChatID != 42 {
				t.Fatalf("chat id = %d, want 42", ev.ChatID)
			}
		})
	}
}

func TestKeyboardMarkup(t *testing.T) {
	t.Parallel()
	if keyboardMarkup(nil) != nil {
		t.Fatal("empty rows should produce no markup")
	}
	m := keyboardMarkup([][]dispatch.Button{{
		{Text: "English", Data: "set_lang:en"},
		{Text: "العربية", Data: "set_lang:ar"},
	}})
	if m == nil || len(m.InlineKeyboard) != 1 || len(m.InlineKeyboard[0]) != 2 {
		t.Fatalf("markup = %+v", m)
	}
	if m.InlineKeyboard[0][1].CallbackData != "set_lang:ar" {
		t.Fatalf("callback data = %q", m.InlineKeyboard[0][1].CallbackData)
	}
}

func TestChatAllowed(t *testing.T) {
	t.Parallel()
	if !chatAllowed(nil, 5) {
		t.Fatal("empty allowlist should allow all chats")
	}
	if !chatAllowed([]int64{1, 5}, 5) {
		t.Fatal("listed chat rejected")
	}
	if chatAllowed([]int64{1}, 5) {
		t.Fatal("unlisted chat allowed")
	}
}
