package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/files"
)

// errStale marks callbacks that do not fit the current window.
var errStale = errors.New("stale callback")

func (b *Bot) language(user *tgbotapi.User) string {
	client := ""
	if b.tr.Supports(user.LanguageCode) {
		client = user.LanguageCode
	}
	return b.users.ResolveLanguage(user.ID, client, b.tr.Default())
}

// authorize replies with the unauthorized message when the user may not use
// the file browser.
func (b *Bot) authorize(chatID int64, user *tgbotapi.User, lang string) (bool, error) {
	ok, err := b.users.IsAuthorized(user.ID)
	if err != nil {
		return false, fmt.Errorf("check authorization: %w", err)
	}
	if !ok {
		b.logger.WithFields(logrus.Fields{
			"chat": chatID,
			"user": user.ID,
		}).Warn("Unauthorized access attempt")
		return false, b.messenger.Reply(chatID, lang, "unauthorized", nil)
	}
	return true, nil
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}
	lang := b.language(msg.From)

	if msg.IsCommand() {
		return b.handleCommand(ctx, msg, lang)
	}

	s, ok := b.sessions.Get(msg.Chat.ID)
	if !ok {
		return nil
	}
	if ok, err := b.authorize(msg.Chat.ID, msg.From, lang); !ok {
		return err
	}

	switch {
	case s.Window == files.WindowCreateFolder && msg.Text != "":
		return b.onFolderName(ctx, s, strings.TrimSpace(msg.Text))
	case s.Window == files.WindowUploadQueue && msg.Document != nil:
		return b.onDocument(ctx, s, msg.Document)
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, lang string) error {
	chatID := msg.Chat.ID
	switch msg.Command() {
	case "start":
		return b.messenger.Reply(chatID, lang, "start", map[string]any{"Name": msg.From.FirstName})

	case "files":
		if ok, err := b.authorize(chatID, msg.From, lang); !ok {
			return err
		}
		s := b.sessions.Start(chatID, msg.From.ID, lang)
		userPath := strings.Trim(strings.TrimSpace(msg.CommandArguments()), "/")
		b.logger.WithFields(logrus.Fields{
			"chat":    chatID,
			"user":    msg.From.ID,
			"session": s.ID,
			"path":    userPath,
		}).Info("Starting file browser")

		if err := b.service.Open(ctx, s, userPath); err != nil {
			b.sessions.End(chatID)
			b.logger.WithError(err).WithField("chat", chatID).Error("Failed to open folder")
			return errors.Join(err, b.messenger.Reply(chatID, lang, "generic-error", nil))
		}
		return b.messenger.Present(ctx, s)

	case "language":
		code := strings.ToLower(strings.TrimSpace(msg.CommandArguments()))
		if !b.tr.Supports(code) {
			return b.messenger.Reply(chatID, lang, "language-unsupported", map[string]any{
				"Language":  code,
				"Languages": strings.Join(b.tr.Languages(), ", "),
			})
		}
		if err := b.users.SetLanguage(msg.From.ID, code); err != nil {
			return fmt.Errorf("set language: %w", err)
		}
		if s, ok := b.sessions.Get(chatID); ok {
			s.Language = code
		}
		return b.messenger.Reply(chatID, code, "language-set", nil)
	}
	return nil
}

func (b *Bot) onFolderName(ctx context.Context, s *files.Session, name string) error {
	_, err := b.service.CreateFolder(ctx, s, name)
	if errors.Is(err, files.ErrInvalidFolderName) {
		return b.messenger.Reply(s.ChatID, s.Language, "incorrect-folder-name", map[string]any{"Name": name})
	}
	if err != nil {
		return b.fail(ctx, s, err)
	}
	return b.messenger.Present(ctx, s)
}

func (b *Bot) onDocument(ctx context.Context, s *files.Session, d *tgbotapi.Document) error {
	doc := models.Document{
		FileID:   d.FileID,
		UniqueID: d.FileUniqueID,
		Name:     d.FileName,
		Size:     int64(d.FileSize),
		MimeType: d.MimeType,
	}
	if d.FileSize == 0 {
		doc.Size = -1
	}

	err := b.service.Enqueue(s, doc)
	switch {
	case errors.Is(err, files.ErrInvalidDocument):
		return b.messenger.Reply(s.ChatID, s.Language, "invalid-file", nil)
	case errors.Is(err, files.ErrDocumentTooLarge):
		return b.messenger.Reply(s.ChatID, s.Language, "file-too-large", map[string]any{
			"Name":  doc.Name,
			"Limit": humanize.Bytes(uint64(b.cfg.Nextcloud.MaxUploadSize)),
		})
	case err != nil:
		return err
	}
	return b.messenger.Present(ctx, s)
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if q.From == nil || q.Message == nil {
		return nil
	}
	chatID := q.Message.Chat.ID
	lang := b.language(q.From)

	s, ok := b.sessions.Get(chatID)
	if !ok || s.MessageID != q.Message.MessageID {
		return b.answer(q, b.tr.T(lang, "session-expired", nil))
	}
	if ok, err := b.authorize(chatID, q.From, lang); !ok {
		return errors.Join(err, b.answer(q, ""))
	}

	verb, arg := decodeCallback(q.Data)
	if verb == cbNoop {
		return b.answer(q, "")
	}
	if err := b.answer(q, ""); err != nil {
		b.logger.WithError(err).Debug("Failed to answer callback")
	}

	b.logger.WithFields(logrus.Fields{
		"chat":    chatID,
		"session": s.ID,
		"window":  s.Window.String(),
		"verb":    verb,
	}).Debug("Callback")

	err := b.onCallback(ctx, s, verb, arg)
	if errors.Is(err, errStale) {
		return b.messenger.Present(ctx, s)
	}
	if err != nil {
		return b.fail(ctx, s, err)
	}
	return b.messenger.Present(ctx, s)
}

func (b *Bot) answer(q *tgbotapi.CallbackQuery, text string) error {
	_, err := b.api.Request(tgbotapi.NewCallback(q.ID, text))
	return err
}

// onCallback applies a button press to the session.
func (b *Bot) onCallback(ctx context.Context, s *files.Session, verb, arg string) error {
	if verb == cbPage {
		page, err := strconv.Atoi(arg)
		if err != nil {
			return errStale
		}
		s.Page = page
		return nil
	}

	svc := b.service
	switch s.Window {
	case files.WindowBrowser:
		switch verb {
		case cbOpen:
			return svc.SelectChild(ctx, s, arg)
		case cbBack:
			return svc.Back(ctx, s)
		case cbMultiselect:
			svc.EnterMultiselect(s)
			return nil
		case cbDownload:
			return svc.DownloadCurrent(ctx, s)
		case cbDelete:
			return svc.DeleteCurrent(ctx, s)
		case cbCreate:
			svc.EnterCreate(s)
			return nil
		}

	case files.WindowMultiselect:
		switch verb {
		case cbToggle:
			svc.Toggle(s, arg)
			return nil
		case cbBulkDownload:
			return svc.BulkDownload(ctx, s)
		case cbBulkDelete:
			return svc.BulkDelete(ctx, s)
		case cbDrop:
			svc.DropSelection(s)
			return nil
		case cbLeaveSelect:
			svc.LeaveMultiselect(s)
			return nil
		}

	case files.WindowCreate:
		switch verb {
		case cbCreateFolder:
			svc.EnterCreateFolder(s)
			return nil
		case cbUploadQueue:
			svc.EnterUploadQueue(s)
			return nil
		case cbCancelCreate:
			svc.CancelCreate(s)
			return nil
		}

	case files.WindowCreateFolder:
		if verb == cbCancelFolder {
			svc.EnterCreate(s)
			return nil
		}

	case files.WindowUploadQueue:
		switch verb {
		case cbDequeue:
			svc.Dequeue(s, arg)
			return nil
		case cbCommit:
			return svc.Commit(ctx, s)
		case cbCancelUpload:
			svc.CancelUpload(s)
			return nil
		}
	}
	return errStale
}

// fail reports a remote fault to the user and returns the session to the
// browser window.
func (b *Bot) fail(ctx context.Context, s *files.Session, cause error) error {
	b.logger.WithError(cause).WithFields(logrus.Fields{
		"chat":    s.ChatID,
		"session": s.ID,
		"window":  s.Window.String(),
		"path":    s.Listing.Self.UserPath,
	}).Error("Operation failed")

	s.Selection = make(map[string]struct{})
	s.Pending = nil
	s.Window = files.WindowBrowser

	if err := b.service.Refresh(ctx, s); err != nil {
		b.logger.WithError(err).WithField("chat", s.ChatID).Warn("Failed to refresh listing")
	}
	if err := b.messenger.Reply(s.ChatID, s.Language, "generic-error", nil); err != nil {
		return errors.Join(cause, err)
	}
	return errors.Join(cause, b.messenger.Present(ctx, s))
}
