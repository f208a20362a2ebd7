package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/files"
	"github.com/denysvitali/nextcloud-files-bot/pkg/i18n"
)

// MessengerConfig holds the transfer settings of the chat side.
type MessengerConfig struct {
	Token        string
	FileEndpoint string // fmt pattern taking the token and the file path
	ChunkSize    int
	MaxSendSize  int64
	PageSize     int
	HTTPClient   *http.Client
}

// Messenger sends dialog output to Telegram and fetches inbound documents.
// It implements files.Messenger.
type Messenger struct {
	api        API
	tr         *i18n.Translator
	renderer   *renderer
	cfg        MessengerConfig
	httpClient *http.Client
	logger     *logrus.Logger

	mu     sync.Mutex
	posted map[int64]bool // chats with messages below the dialog message
}

var _ files.Messenger = (*Messenger)(nil)

// NewMessenger creates a new messenger.
func NewMessenger(api API, tr *i18n.Translator, cfg MessengerConfig, logger *logrus.Logger) *Messenger {
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = tgbotapi.FileEndpoint
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 64 * 1024
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Messenger{
		api:        api,
		tr:         tr,
		renderer:   &renderer{tr: tr, pageSize: cfg.PageSize},
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger,
		posted:     make(map[int64]bool),
	}
}

func (m *Messenger) markPosted(chatID int64) {
	m.mu.Lock()
	m.posted[chatID] = true
	m.mu.Unlock()
}

func (m *Messenger) takePosted(chatID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	posted := m.posted[chatID]
	delete(m.posted, chatID)
	return posted
}

// Reply sends a localized text message to a chat.
func (m *Messenger) Reply(chatID int64, lang, id string, data map[string]any) error {
	if _, err := m.api.Send(tgbotapi.NewMessage(chatID, m.tr.T(lang, id, data))); err != nil {
		return fmt.Errorf("send %s: %w", id, err)
	}
	m.markPosted(chatID)
	return nil
}

// Notify sends a notice of a running operation.
func (m *Messenger) Notify(_ context.Context, s *files.Session, n files.Notice) error {
	data := map[string]any{"Limit": humanize.Bytes(uint64(m.cfg.MaxSendSize))}
	for k, v := range n.Data {
		data[k] = v
	}
	return m.Reply(s.ChatID, s.Language, n.ID, data)
}

// SendDocument sends data as a document called name.
func (m *Messenger) SendDocument(_ context.Context, s *files.Session, name string, data []byte) error {
	doc := tgbotapi.NewDocument(s.ChatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	if _, err := m.api.Send(doc); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	m.markPosted(s.ChatID)
	return nil
}

// Progress redraws the dialog message with the progress of s.
func (m *Messenger) Progress(_ context.Context, s *files.Session, p models.Progress) error {
	text := m.renderer.renderProgress(s, p)
	if s.MessageID == 0 {
		msg, err := m.api.Send(tgbotapi.NewMessage(s.ChatID, text))
		if err != nil {
			return err
		}
		s.MessageID = msg.MessageID
		return nil
	}
	edit := tgbotapi.NewEditMessageText(s.ChatID, s.MessageID, text)
	return ignoreNotModified(m.request(edit))
}

// Present shows the current window of s. The dialog message is edited in
// place unless other messages were posted below it, in which case it is sent
// again so that it stays at the bottom of the chat.
func (m *Messenger) Present(_ context.Context, s *files.Session) error {
	text, markup := m.renderer.render(s)

	if s.MessageID == 0 || m.takePosted(s.ChatID) {
		msg := tgbotapi.NewMessage(s.ChatID, text)
		msg.ReplyMarkup = markup
		sent, err := m.api.Send(msg)
		if err != nil {
			return fmt.Errorf("send dialog: %w", err)
		}
		s.MessageID = sent.MessageID
		return nil
	}

	edit := tgbotapi.NewEditMessageTextAndMarkup(s.ChatID, s.MessageID, text, markup)
	return ignoreNotModified(m.request(edit))
}

func (m *Messenger) request(c tgbotapi.Chattable) error {
	_, err := m.api.Request(c)
	return err
}

// ignoreNotModified drops the error Telegram returns for edits that change
// nothing.
func ignoreNotModified(err error) error {
	if err != nil && strings.Contains(err.Error(), "message is not modified") {
		return nil
	}
	return err
}

// FileLocation resolves the download URL of an inbound document. Files the
// Bot API refuses to serve, such as those above its download cap, resolve to
// an empty location.
func (m *Messenger) FileLocation(_ context.Context, fileID string) (string, error) {
	file, err := m.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) {
			m.logger.WithError(err).WithField("file_id", fileID).Warn("Telegram refused to serve file")
			return "", nil
		}
		return "", fmt.Errorf("get file: %w", err)
	}
	if file.FilePath == "" {
		return "", nil
	}
	return fmt.Sprintf(m.cfg.FileEndpoint, m.cfg.Token, file.FilePath), nil
}

// Fetch streams the file at location into w in chunk sized reads.
func (m *Messenger) Fetch(ctx context.Context, location string, w io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return 0, err
	}
	resp, err := m.httpClient.Do(req)
	if err != nil {
		// the URL carries the bot token
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return 0, fmt.Errorf("fetch file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch file: unexpected status %d", resp.StatusCode)
	}
	return io.CopyBuffer(w, resp.Body, make([]byte, m.cfg.ChunkSize))
}
