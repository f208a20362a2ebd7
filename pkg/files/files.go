// Package files implements the file browser dialog: navigation, selection,
// bulk transfers, uploads and folder creation on top of a remote store and a
// chat transport.
package files

import (
	"context"
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
)

var (
	// ErrInvalidFolderName is returned when a folder name fails validation.
	ErrInvalidFolderName = errors.New("invalid folder name")
	// ErrInvalidDocument is returned for documents without a name or size.
	ErrInvalidDocument = errors.New("invalid document")
	// ErrDocumentTooLarge is returned for documents above the upload cap.
	ErrDocumentTooLarge = errors.New("document too large")
)

// Notice ids sent to the chat while a bulk operation runs.
const (
	NoticeTooBig           = "too-big"
	NoticeDirsNotSupported = "dirs-not-supported"
	NoticeNotDeletable     = "not-deletable"
	NoticeFileUnavailable  = "file-unavailable"
	NoticeFolderCreated    = "folder-created"
)

// Notice is a localizable message for the user.
type Notice struct {
	ID   string
	Data map[string]any
}

// Storage is the remote file store.
type Storage interface {
	// ListDir returns the node at userPath followed by its children.
	ListDir(ctx context.Context, userPath string) ([]models.FsNode, error)
	ByID(ctx context.Context, fileID string) (models.FsNode, error)
	Download(ctx context.Context, node models.FsNode, w io.Writer) (int64, error)
	// Upload must not overwrite: an existing node yields nextcloud.ErrExists.
	Upload(ctx context.Context, userPath string, r io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, node models.FsNode) error
	Mkdir(ctx context.Context, userPath string) (models.FsNode, error)
}

// Messenger is the chat side of the dialog.
type Messenger interface {
	Notify(ctx context.Context, s *Session, n Notice) error
	SendDocument(ctx context.Context, s *Session, name string, data []byte) error
	// Progress redraws the progress window of s.
	Progress(ctx context.Context, s *Session, p models.Progress) error
	// FileLocation resolves where the bytes of an inbound document can be
	// fetched. An empty location means the transport cannot serve the file.
	FileLocation(ctx context.Context, fileID string) (string, error)
	Fetch(ctx context.Context, location string, w io.Writer) (int64, error)
}

// Config holds the transfer limits.
type Config struct {
	MaxSendSize   int64 // largest file sent back to the chat
	MaxUploadSize int64 // largest document accepted from the chat
}

// Service runs dialog operations against a session.
type Service struct {
	storage   Storage
	messenger Messenger
	cfg       Config
	logger    *logrus.Logger
}

// NewService creates a new file dialog service.
func NewService(storage Storage, messenger Messenger, cfg Config, logger *logrus.Logger) *Service {
	return &Service{
		storage:   storage,
		messenger: messenger,
		cfg:       cfg,
		logger:    logger,
	}
}

func (svc *Service) log(s *Session) *logrus.Entry {
	return svc.logger.WithFields(logrus.Fields{
		"session": s.ID,
		"chat":    s.ChatID,
		"path":    s.Listing.Self.UserPath,
	})
}
