package telegram

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hatemua/telegBot/internal/dispatch"
)

// chatAdapter implements dispatch.Chat on top of the Bot API client.
// Downloads land in the media cache dir under a fresh uuid name so
// concurrent chats never collide.
type chatAdapter struct {
	api              *telegramAPI
	cacheDir         string
	maxDownloadBytes int64
}

var _ dispatch.Chat = (*chatAdapter)(nil)

func (c *chatAdapter) SendMessage(ctx context.Context, chatID int64, text string, opts dispatch.SendOptions) error {
	markup := keyboardMarkup(opts.Keyboard)
	if opts.Markdown {
		return c.api.sendMessageChunked(ctx, chatID, text, markup)
	}
	return c.api.sendPlainMessage(ctx, chatID, text, markup)
}

func (c *chatAdapter) DownloadFile(ctx context.Context, fileID string) (string, error) {
	file, err := c.api.getFile(ctx, fileID)
	if err != nil {
		return "", fmt.Errorf("get file: %w", err)
	}
	ext := strings.ToLower(path.Ext(file.FilePath))
	if ext == "" {
		ext = ".bin"
	}
	dst := filepath.Join(c.cacheDir, uuid.NewString()+ext)
	if _, err := c.api.downloadFileTo(ctx, file.FilePath, dst, c.maxDownloadBytes); err != nil {
		return "", fmt.Errorf("download file: %w", err)
	}
	return dst, nil
}

func (c *chatAdapter) AnswerCallbackQuery(ctx context.Context, callbackID string) error {
	return c.api.answerCallbackQuery(ctx, callbackID)
}

func (c *chatAdapter) ClearReplyMarkup(ctx context.Context, chatID, messageID int64) error {
	return c.api.editMessageReplyMarkup(ctx, chatID, messageID, nil)
}

func keyboardMarkup(rows [][]dispatch.Button) *telegramInlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	markup := &telegramInlineKeyboardMarkup{}
	for _, row := range rows {
		var out []telegramInlineKeyboardButton
		for _, b := range row {
			out = append(out, telegramInlineKeyboardButton{Text: b.Text, CallbackData: b.Data})
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, out)
	}
	return markup
}
