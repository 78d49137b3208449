package main

import (
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/hatemua/telegBot/internal/answer"
	"github.com/hatemua/telegBot/internal/channelruntime/telegram"
	"github.com/hatemua/telegBot/internal/logutil"
	"github.com/hatemua/telegBot/internal/prefs"
	"github.com/hatemua/telegBot/providers/assemblyai"
	"github.com/hatemua/telegBot/providers/openai"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the bot: long-poll Telegram and relay questions to the answer pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			templates := answer.DefaultTemplates()
			if path := viper.GetString("prompts.file"); path != "" {
				templates, err = answer.LoadTemplates(path)
				if err != nil {
					return err
				}
			}

			composer := &answer.Composer{
				Client: openai.New(
					viper.GetString("llm.base_url"),
					viper.GetString("llm.api_key"),
					viper.GetDuration("llm.request_timeout"),
				),
				Model:       viper.GetString("llm.model"),
				Temperature: viper.GetFloat64("llm.temperature"),
				MaxTokens:   viper.GetInt("llm.max_tokens"),
				Templates:   templates,
			}

			transcriber := assemblyai.New(
				viper.GetString("speech.base_url"),
				viper.GetString("speech.api_key"),
			)
			if d := viper.GetDuration("speech.poll_interval"); d > 0 {
				transcriber.PollInterval = d
			}
			if d := viper.GetDuration("speech.poll_timeout"); d > 0 {
				transcriber.PollTimeout = d
			}

			allowedChatIDs, err := allowedChatIDsFromViper()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return telegram.Run(ctx, telegram.Options{
				BotToken:           viper.GetString("telegram.bot_token"),
				BaseURL:            viper.GetString("telegram.base_url"),
				AllowedChatIDs:     allowedChatIDs,
				PollTimeout:        viper.GetDuration("telegram.poll_timeout"),
				TaskTimeout:        viper.GetDuration("telegram.task_timeout"),
				MaxConcurrency:     viper.GetInt("telegram.max_concurrency"),
				CacheDir:           viper.GetString("telegram.cache_dir"),
				CacheMaxAge:        viper.GetDuration("telegram.cache_max_age"),
				CacheMaxFiles:      viper.GetInt("telegram.cache_max_files"),
				CacheMaxTotalBytes: viper.GetInt64("telegram.cache_max_total_bytes"),
				MaxDownloadBytes:   viper.GetInt64("telegram.max_download_bytes"),
			}, telegram.Dependencies{
				Logger:      logger,
				Transcriber: transcriber,
				Completer:   composer,
				Prefs:       prefs.NewStore(),
			})
		},
	}

	cmd.Flags().String("bot-token", "", "Telegram bot token (or TELEGBOT_TELEGRAM_BOT_TOKEN).")
	cmd.Flags().StringArray("allowed-chat-id", nil, "Allowed chat id(s). If empty, allows all.")
	cmd.Flags().Duration("poll-timeout", 0, "Long-poll timeout (default 30s).")
	cmd.Flags().Duration("task-timeout", 0, "Per-message handling timeout (default 10m).")
	cmd.Flags().Int("max-concurrency", 0, "Max messages handled at once across chats (default 3).")
	cmd.Flags().String("cache-dir", "", "Directory for downloaded media (default ~/.cache/telegbot/media).")
	cmd.Flags().String("prompts-file", "", "YAML file overriding the built-in system prompts.")

	_ = viper.BindPFlag("telegram.bot_token", cmd.Flags().Lookup("bot-token"))
	_ = viper.BindPFlag("telegram.allowed_chat_ids", cmd.Flags().Lookup("allowed-chat-id"))
	_ = viper.BindPFlag("telegram.poll_timeout", cmd.Flags().Lookup("poll-timeout"))
	_ = viper.BindPFlag("telegram.task_timeout", cmd.Flags().Lookup("task-timeout"))
	_ = viper.BindPFlag("telegram.max_concurrency", cmd.Flags().Lookup("max-concurrency"))
	_ = viper.BindPFlag("telegram.cache_dir", cmd.Flags().Lookup("cache-dir"))
	_ = viper.BindPFlag("prompts.file", cmd.Flags().Lookup("prompts-file"))

	viper.SetDefault("llm.model", "gpt-4o-mini")
	viper.SetDefault("llm.temperature", 0.3)

	return cmd
}

func allowedChatIDsFromViper() ([]int64, error) {
	var out []int64
	for _, s := range viper.GetStringSlice("telegram.allowed_chat_ids") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		id, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid telegram.allowed_chat_ids entry %q: %w", s, err)
		}
		out = append(out, id)
	}
	return out, nil
}
