// Package bot is the Telegram front end of the file browser.
package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/denysvitali/nextcloud-files-bot/pkg/config"
	"github.com/denysvitali/nextcloud-files-bot/pkg/files"
	"github.com/denysvitali/nextcloud-files-bot/pkg/i18n"
	"github.com/denysvitali/nextcloud-files-bot/pkg/metrics"
)

// API is the subset of the Telegram Bot API client the bot uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
}

// UserStore keeps authorization and language preferences.
type UserStore interface {
	IsAuthorized(id int64) (bool, error)
	SetLanguage(id int64, language string) error
	ResolveLanguage(id int64, clientLanguage, fallback string) string
}

// NewAPI connects to the Bot API with the configured token and endpoint.
func NewAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, endpoint, &http.Client{
		Timeout: time.Duration(cfg.PollTimeout+30) * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return api, nil
}

// FileEndpoint derives the file download endpoint from an API endpoint.
func FileEndpoint(apiEndpoint string) string {
	if apiEndpoint == "" || apiEndpoint == tgbotapi.APIEndpoint {
		return tgbotapi.FileEndpoint
	}
	return strings.Replace(apiEndpoint, "/bot%s/%s", "/file/bot%s/%s", 1)
}

// Bot routes Telegram updates to the file dialog of each chat.
type Bot struct {
	cfg        *config.Config
	api        API
	service    *files.Service
	sessions   *files.Sessions
	users      UserStore
	tr         *i18n.Translator
	messenger  *Messenger
	dispatcher *Dispatcher
	logger     *logrus.Logger
	tracer     trace.Tracer
}

// New creates a new bot.
func New(cfg *config.Config, api API, storage files.Storage, users UserStore, tr *i18n.Translator, logger *logrus.Logger) *Bot {
	messenger := NewMessenger(api, tr, MessengerConfig{
		Token:        cfg.Telegram.Token,
		FileEndpoint: FileEndpoint(cfg.Telegram.APIEndpoint),
		ChunkSize:    cfg.Telegram.ChunkSize,
		MaxSendSize:  cfg.Telegram.MaxSendSize,
		PageSize:     cfg.Telegram.PageSize,
	}, logger)

	service := files.NewService(storage, messenger, files.Config{
		MaxSendSize:   cfg.Telegram.MaxSendSize,
		MaxUploadSize: cfg.Nextcloud.MaxUploadSize,
	}, logger)

	return &Bot{
		cfg:        cfg,
		api:        api,
		service:    service,
		sessions:   files.NewSessions(),
		users:      users,
		tr:         tr,
		messenger:  messenger,
		dispatcher: NewDispatcher(logger),
		logger:     logger,
		tracer:     otel.Tracer("nextcloud-files-bot"),
	}
}

// Sessions returns the open dialogs.
func (b *Bot) Sessions() *files.Sessions {
	return b.sessions
}

// Run receives updates until ctx is done. With the webhook enabled it only
// registers the webhook and waits; updates then arrive through HandleUpdate.
func (b *Bot) Run(ctx context.Context) error {
	b.dispatcher.Start(ctx)
	defer b.dispatcher.Wait()

	if b.cfg.Telegram.Webhook.Enabled {
		if err := b.registerWebhook(); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}

	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.WithError(err).Warn("Failed to delete webhook")
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.cfg.Telegram.PollTimeout
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started, waiting for updates")
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.HandleUpdate(update)
		}
	}
}

func (b *Bot) registerWebhook() error {
	params := tgbotapi.Params{"url": b.cfg.Telegram.WebhookURL()}
	params.AddNonEmpty("secret_token", b.cfg.Telegram.Webhook.Secret)
	if _, err := b.api.MakeRequest("setWebhook", params); err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}
	b.logger.WithField("url", b.cfg.Telegram.WebhookURL()).Info("Webhook registered")
	return nil
}

// HandleUpdate queues an update on the worker of its chat.
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	chatID, ok := chatOf(update)
	if !ok {
		return
	}
	b.dispatcher.Submit(chatID, func(ctx context.Context) {
		b.process(ctx, update)
	})
}

func chatOf(update tgbotapi.Update) (int64, bool) {
	switch {
	case update.Message != nil && update.Message.Chat != nil:
		return update.Message.Chat.ID, true
	case update.CallbackQuery != nil && update.CallbackQuery.Message != nil && update.CallbackQuery.Message.Chat != nil:
		return update.CallbackQuery.Message.Chat.ID, true
	}
	return 0, false
}

// process handles one update synchronously.
func (b *Bot) process(ctx context.Context, update tgbotapi.Update) {
	kind := "message"
	if update.CallbackQuery != nil {
		kind = "callback"
	}

	ctx, span := b.tracer.Start(ctx, "telegram."+kind)
	defer span.End()
	span.SetAttributes(attribute.Int("telegram.update_id", update.UpdateID))

	start := time.Now()
	var err error
	switch {
	case update.CallbackQuery != nil:
		err = b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	}
	metrics.RecordUpdate(kind, err, time.Since(start))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
