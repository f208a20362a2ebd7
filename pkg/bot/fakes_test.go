package bot

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/config"
	"github.com/denysvitali/nextcloud-files-bot/pkg/i18n"
	"github.com/denysvitali/nextcloud-files-bot/pkg/nextcloud"
	"github.com/denysvitali/nextcloud-files-bot/pkg/users"
)

const (
	testChat  int64 = 42
	testUser  int64 = 7
	testToken       = "token"
)

// fakeAPI records everything the bot sends and hands out message ids.
type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	calls    []tgbotapi.Chattable // sends and requests in order
	files    map[string]tgbotapi.File
	params   []tgbotapi.Params
	nextID   int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{files: make(map[string]tgbotapi.File), nextID: 100}
}

func (a *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = append(a.sent, c)
	a.calls = append(a.calls, c)
	a.nextID++
	return tgbotapi.Message{MessageID: a.nextID}, nil
}

func (a *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, c)
	a.calls = append(a.calls, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (a *fakeAPI) GetFile(cfg tgbotapi.FileConfig) (tgbotapi.File, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	f, ok := a.files[cfg.FileID]
	if !ok {
		return tgbotapi.File{}, &tgbotapi.Error{Code: 400, Message: "Bad Request: file is too big"}
	}
	return f, nil
}

func (a *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (a *fakeAPI) StopReceivingUpdates() {}

func (a *fakeAPI) MakeRequest(_ string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.params = append(a.params, params)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// texts returns the text of every plain message sent so far.
func (a *fakeAPI) texts() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, c := range a.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (a *fakeAPI) documents() []tgbotapi.FileBytes {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []tgbotapi.FileBytes
	for _, c := range a.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			if fb, ok := d.File.(tgbotapi.FileBytes); ok {
				out = append(out, fb)
			}
		}
	}
	return out
}

// dialog returns the text and keyboard of the latest dialog render.
func (a *fakeAPI) dialog(t *testing.T) (string, tgbotapi.InlineKeyboardMarkup) {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()

	var (
		text   string
		markup tgbotapi.InlineKeyboardMarkup
		found  bool
	)
	for _, c := range a.calls {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			if kb, ok := m.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup); ok {
				text, markup, found = m.Text, kb, true
			}
		case tgbotapi.EditMessageTextConfig:
			if m.ReplyMarkup != nil {
				text, markup, found = m.Text, *m.ReplyMarkup, true
			}
		}
	}
	require.True(t, found, "no dialog rendered")
	return text, markup
}

func (a *fakeAPI) callbackAnswers() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, c := range a.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

func (a *fakeAPI) reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sent = nil
	a.requests = nil
	a.calls = nil
}

// buttons flattens a keyboard into its callback data.
func buttons(kb tgbotapi.InlineKeyboardMarkup) []string {
	var out []string
	for _, row := range kb.InlineKeyboard {
		for _, b := range row {
			if b.CallbackData != nil {
				out = append(out, *b.CallbackData)
			}
		}
	}
	return out
}

// memStorage is a path keyed in-memory remote store.
type memStorage struct {
	mu      sync.Mutex
	order   []string
	nodes   map[string]models.FsNode
	content map[string][]byte
	nextID  int
}

func newMemStorage() *memStorage {
	st := &memStorage{
		nodes:   make(map[string]models.FsNode),
		content: make(map[string][]byte),
		nextID:  500,
	}
	st.put(models.FsNode{FileID: "1", UserPath: "", IsDir: true, Permissions: "RGDNVCK"})
	return st
}

func (st *memStorage) put(node models.FsNode) models.FsNode {
	if node.Name == "" {
		node.Name = baseName(node.UserPath)
	}
	if node.FileID == "" {
		st.nextID++
		node.FileID = fmt.Sprint(st.nextID)
	}
	if _, ok := st.nodes[node.UserPath]; !ok {
		st.order = append(st.order, node.UserPath)
	}
	st.nodes[node.UserPath] = node
	return node
}

func (st *memStorage) file(id, userPath, content string) models.FsNode {
	st.content[userPath] = []byte(content)
	return st.put(models.FsNode{FileID: id, UserPath: userPath, Size: int64(len(content)), Permissions: "RGDNVW", MimeType: "text/plain"})
}

func (st *memStorage) dir(id, userPath string) models.FsNode {
	return st.put(models.FsNode{FileID: id, UserPath: userPath, IsDir: true, Permissions: "RGDNVCK"})
}

func baseName(userPath string) string {
	p := strings.TrimSuffix(userPath, "/")
	return p[strings.LastIndex(p, "/")+1:]
}

func (st *memStorage) has(userPath string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.nodes[userPath]
	return ok
}

func (st *memStorage) ListDir(_ context.Context, userPath string) ([]models.FsNode, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	self, ok := st.nodes[userPath]
	if !ok {
		// the server answers for folders given without the trailing slash
		if self, ok = st.nodes[userPath+"/"]; !ok {
			return nil, &nextcloud.Error{Method: "PROPFIND", Path: userPath, StatusCode: 404}
		}
		userPath += "/"
	}
	out := []models.FsNode{self}
	for _, p := range st.order {
		node, ok := st.nodes[p]
		if ok && !node.IsRoot() && p != userPath && node.ParentPath() == userPath {
			out = append(out, node)
		}
	}
	return out, nil
}

func (st *memStorage) ByID(_ context.Context, fileID string) (models.FsNode, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	for _, node := range st.nodes {
		if node.FileID == fileID {
			return node, nil
		}
	}
	return models.FsNode{}, &nextcloud.Error{Method: "SEARCH", Path: fileID, StatusCode: 404}
}

func (st *memStorage) Download(_ context.Context, node models.FsNode, w io.Writer) (int64, error) {
	st.mu.Lock()
	data := st.content[node.UserPath]
	st.mu.Unlock()
	n, err := w.Write(data)
	return int64(n), err
}

func (st *memStorage) Upload(_ context.Context, userPath string, r io.Reader, _ int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.nodes[userPath]; ok {
		return fmt.Errorf("put %q: %w", userPath, nextcloud.ErrExists)
	}
	st.content[userPath] = data
	st.put(models.FsNode{UserPath: userPath, Size: int64(len(data)), Permissions: "RGDNVW", MimeType: contentType})
	return nil
}

func (st *memStorage) Delete(_ context.Context, node models.FsNode) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	for p := range st.nodes {
		if p == node.UserPath || (node.IsDir && strings.HasPrefix(p, node.UserPath)) {
			delete(st.nodes, p)
		}
	}
	return nil
}

func (st *memStorage) Mkdir(_ context.Context, userPath string) (models.FsNode, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	dirPath := strings.TrimSuffix(userPath, "/") + "/"
	if _, ok := st.nodes[dirPath]; ok {
		return models.FsNode{}, fmt.Errorf("mkcol %q: %w", dirPath, nextcloud.ErrExists)
	}
	return st.put(models.FsNode{UserPath: dirPath, IsDir: true, Permissions: "RGDNVCK"}), nil
}

type testEnv struct {
	bot     *Bot
	api     *fakeAPI
	storage *memStorage
	users   *users.Store
	tr      *i18n.Translator
}

func newTestEnv(t *testing.T, apiEndpoint string) *testEnv {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store, err := users.Open(filepath.Join(t.TempDir(), "users.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Seed([]int64{testUser}))

	tr, err := i18n.New("en", []string{"en", "ru"})
	require.NoError(t, err)

	cfg := &config.Config{
		Telegram: config.TelegramConfig{
			Token:       testToken,
			APIEndpoint: apiEndpoint,
			MaxSendSize: 100,
			ChunkSize:   4,
			PageSize:    8,
		},
		Nextcloud: config.NextcloudConfig{MaxUploadSize: 50},
	}

	api := newFakeAPI()
	st := newMemStorage()
	return &testEnv{
		bot:     New(cfg, api, st, store, tr, logger),
		api:     api,
		storage: st,
		users:   store,
		tr:      tr,
	}
}

func (e *testEnv) command(from int64, text string) {
	cmd, _, _ := strings.Cut(text, " ")
	e.bot.process(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from, FirstName: "Alice", LanguageCode: "en"},
		Chat:     &tgbotapi.Chat{ID: testChat},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}})
}

func (e *testEnv) text(text string) {
	e.bot.process(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: testUser, LanguageCode: "en"},
		Chat: &tgbotapi.Chat{ID: testChat},
		Text: text,
	}})
}

func (e *testEnv) document(doc *tgbotapi.Document) {
	e.bot.process(context.Background(), tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: testUser, LanguageCode: "en"},
		Chat:     &tgbotapi.Chat{ID: testChat},
		Document: doc,
	}})
}

// press taps a button of the current dialog message.
func (e *testEnv) press(data string) {
	messageID := 0
	if s, ok := e.bot.sessions.Get(testChat); ok {
		messageID = s.MessageID
	}
	e.pressOn(messageID, data)
}

func (e *testEnv) pressOn(messageID int, data string) {
	e.bot.process(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testUser, LanguageCode: "en"},
		Message: &tgbotapi.Message{MessageID: messageID, Chat: &tgbotapi.Chat{ID: testChat}},
		Data:    data,
	}})
}

func (e *testEnv) t(id string, data map[string]any) string {
	return e.tr.T("en", id, data)
}
