// Package dispatch routes inbound chat events through the relay
// pipelines: command handling, text completion, and media
// transcription-then-completion. All collaborator failures are absorbed
// here and turned into fixed user-facing notices.
package dispatch

import (
	"context"
	"log/slog"
	"strings"

	"github.com/hatemua/telegBot/internal/prefs"
	"github.com/hatemua/telegBot/internal/retryutil"
	"github.com/hatemua/telegBot/speech"
)

const setLangPrefix = "set_lang:"

const (
	welcomeText = "Welcome! Send me a question as text or voice and I'll answer it.\n" +
		"أهلًا بك! أرسل سؤالك نصًا أو صوتًا وسأجيب عنه.\n\n" +
		"Choose your answer language / اختر لغة الإجابة:"
	languageMenuText = "Choose your answer language / اختر لغة الإجابة:"
	transcribingText = "Got your audio — transcribing it now…\n" +
		"استلمت التسجيل الصوتي — جارٍ تفريغه الآن…"
	downloadFailedText = "Sorry, I couldn't download that audio. Please send it again.\n" +
		"عذرًا، تعذّر تنزيل التسجيل الصوتي. أرسله مرة أخرى من فضلك."
	processingFailedText = "Sorry, I couldn't process that. Please try again later.\n" +
		"عذرًا، تعذّرت معالجة رسالتك. حاول مرة أخرى لاحقًا."
	unsupportedText = "I can only handle text, voice, and audio messages.\n" +
		"أتعامل فقط مع الرسائل النصية والصوتية."
)

func confirmText(lang prefs.Language) string {
	if lang == prefs.Arabic {
		return "تم — سأجيب بالعربية من الآن فصاعدًا."
	}
	return "Done — I'll answer in English from now on."
}

// SendOptions controls outbound delivery. Rich delivery falls back to
// plain text inside the Chat implementation when the platform rejects
// the formatting.
type SendOptions struct {
	Markdown bool
	Keyboard [][]Button
}

// Button is one inline-keyboard choice.
type Button struct {
	Text string
	Data string
}

// Chat is the outbound boundary to the chat platform.
type Chat interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) error
	DownloadFile(ctx context.Context, fileID string) (string, error)
	AnswerCallbackQuery(ctx context.Context, callbackID string) error
	ClearReplyMarkup(ctx context.Context, chatID, messageID int64) error
}

// Completer produces an answer in the target language; detectedCode is an
// advisory transcription hint and never overrides the target.
type Completer interface {
	Complete(ctx context.Context, userContent string, target prefs.Language, detectedCode string) (string, error)
}

type Dispatcher struct {
	Chat        Chat
	Transcriber speech.Client
	Completer   Completer
	Prefs       *prefs.Store
	Logger      *slog.Logger
}

func languageKeyboard() [][]Button {
	return [][]Button{{
		{Text: "English", Data: setLangPrefix + string(prefs.English)},
		{Text: "العربية", Data: setLangPrefix + string(prefs.Arabic)},
	}}
}

// Dispatch routes one inbound event. Collaborator errors never escape:
// they are logged and replaced with a fixed notice to the chat.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event) {
	switch ev.Kind {
	case KindText:
		d.handleText(ctx, ev)
	case KindVoice, KindAudio:
		d.handleMedia(ctx, ev)
	case KindCallback:
		d.handleCallback(ctx, ev)
	default:
		d.send(ctx, ev.ChatID, unsupportedText, SendOptions{})
	}
}

func (d *Dispatcher) handleText(ctx context.Context, ev Event) {
	text := strings.TrimSpace(ev.Text)
	if cmd, arg, ok := parseCommand(text); ok {
		d.handleCommand(ctx, ev.ChatID, cmd, arg)
		return
	}

	target := d.Prefs.Get(ev.ChatID)
	answer, err := d.Completer.Complete(ctx, text, target, "")
	if err != nil {
		d.logger().Warn("completion_error", "chat_id", ev.ChatID, "error", err.Error())
		d.send(ctx, ev.ChatID, processingFailedText, SendOptions{})
		return
	}
	d.send(ctx, ev.ChatID, answer, SendOptions{Markdown: true})
}

func (d *Dispatcher) handleCommand(ctx context.Context, chatID int64, cmd, arg string) {
	switch cmd {
	case "start":
		d.send(ctx, chatID, welcomeText, SendOptions{Keyboard: languageKeyboard()})
	case "lang":
		if arg == "" {
			d.send(ctx, chatID, languageMenuText, SendOptions{Keyboard: languageKeyboard()})
			return
		}
		if !d.Prefs.Set(chatID, arg) {
			// Unknown code: re-offer the menu instead of erroring.
			d.logger().Info("lang_command_unknown_code", "chat_id", chatID, "code", arg)
			d.send(ctx, chatID, languageMenuText, SendOptions{Keyboard: languageKeyboard()})
			return
		}
		d.send(ctx, chatID, confirmText(d.Prefs.Get(chatID)), SendOptions{})
	}
}

func (d *Dispatcher) handleMedia(ctx context.Context, ev Event) {
	d.send(ctx, ev.ChatID, transcribingText, SendOptions{})

	path, err := d.Chat.DownloadFile(ctx, ev.FileID)
	if err != nil {
		d.logger().Warn("media_download_error", "chat_id", ev.ChatID, "kind", ev.Kind.String(), "error", err.Error())
		d.send(ctx, ev.ChatID, downloadFailedText, SendOptions{})
		return
	}

	transcript, err := d.Transcriber.Transcribe(ctx, path)
	if err != nil {
		d.logger().Warn("transcription_error", "chat_id", ev.ChatID, "kind", ev.Kind.String(), "error", err.Error())
		d.send(ctx, ev.ChatID, processingFailedText, SendOptions{})
		return
	}
	d.logger().Info("media_transcribed",
		"chat_id", ev.ChatID,
		"kind", ev.Kind.String(),
		"duration_s", ev.Duration,
		"language_code", transcript.LanguageCode,
		"language_confidence", transcript.LanguageConfidence,
		"text_len", len(transcript.Text),
	)

	target := d.Prefs.Get(ev.ChatID)
	answer, err := d.Completer.Complete(ctx, transcript.Text, target, transcript.LanguageCode)
	if err != nil {
		d.logger().Warn("completion_error", "chat_id", ev.ChatID, "error", err.Error())
		d.send(ctx, ev.ChatID, processingFailedText, SendOptions{})
		return
	}
	d.send(ctx, ev.ChatID, answer, SendOptions{Markdown: true})
}

func (d *Dispatcher) handleCallback(ctx context.Context, ev Event) {
	// Always acknowledge so the client clears its loading state.
	if err := d.Chat.AnswerCallbackQuery(ctx, ev.CallbackID); err != nil {
		d.logger().Warn("callback_answer_error", "chat_id", ev.ChatID, "error", err.Error())
	}

	data := strings.TrimSpace(ev.CallbackData)
	if !strings.HasPrefix(data, setLangPrefix) {
		d.logger().Info("callback_unrecognized", "chat_id", ev.ChatID, "data", data)
		return
	}
	code := strings.TrimPrefix(data, setLangPrefix)
	if !d.Prefs.Set(ev.ChatID, code) {
		d.logger().Info("callback_unknown_code", "chat_id", ev.ChatID, "code", code)
		return
	}

	// The choice was taken; remove the keyboard from the menu message.
	if err := d.Chat.ClearReplyMarkup(ctx, ev.ChatID, ev.CallbackMessageID); err != nil {
		d.logger().Warn("callback_markup_clear_error", "chat_id", ev.ChatID, "error", err.Error())
		chatID, messageID := ev.ChatID, ev.CallbackMessageID
		retryutil.Once(d.logger(), "callback_markup_clear", 0, 0, func(ctx context.Context) error {
			return d.Chat.ClearReplyMarkup(ctx, chatID, messageID)
		})
	}

	d.send(ctx, ev.ChatID, confirmText(d.Prefs.Get(ev.ChatID)), SendOptions{})
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, opts SendOptions) {
	if err := d.Chat.SendMessage(ctx, chatID, text, opts); err != nil {
		d.logger().Warn("send_message_error", "chat_id", chatID, "error", err.Error())
	}
}

func (d *Dispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// parseCommand splits a leading slash command into its name and first
// argument, tolerating an @botname suffix on the command.
func parseCommand(text string) (cmd, arg string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	fields := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(fields) == 0 {
		return "", "", false
	}
	cmd = strings.ToLower(fields[0])
	if idx := strings.Index(cmd, "@"); idx >= 0 {
		cmd = cmd[:idx]
	}
	if len(fields) > 1 {
		arg = fields[1]
	}
	switch cmd {
	case "start", "lang":
		return cmd, arg, true
	default:
		// Unrecognized commands flow to the completion pipeline as text.
		return "", "", false
	}
}
