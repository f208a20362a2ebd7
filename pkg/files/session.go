package files

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/metrics"
)

// Window is the screen a session currently shows.
type Window int

const (
	WindowBrowser Window = iota
	WindowMultiselect
	WindowMultiDownload
	WindowMultiDelete
	WindowCreate
	WindowCreateFolder
	WindowUploadQueue
	WindowUploading
)

func (w Window) String() string {
	switch w {
	case WindowBrowser:
		return "browser"
	case WindowMultiselect:
		return "multiselect"
	case WindowMultiDownload:
		return "multidownload"
	case WindowMultiDelete:
		return "multidelete"
	case WindowCreate:
		return "create"
	case WindowCreateFolder:
		return "create-folder"
	case WindowUploadQueue:
		return "upload-queue"
	case WindowUploading:
		return "uploading"
	}
	return "unknown"
}

// Busy reports whether a bulk operation is running in the window.
func (w Window) Busy() bool {
	return w == WindowMultiDownload || w == WindowMultiDelete || w == WindowUploading
}

// Session is the dialog state of one chat. A session is only touched by the
// worker of its chat, so it carries no lock.
type Session struct {
	ID        string
	ChatID    int64
	UserID    int64
	Language  string
	Window    Window
	Listing   models.Listing
	Selection map[string]struct{}
	Pending   []models.Document
	Progress  models.Progress
	MessageID int // dialog message being edited, 0 before the first render
	Page      int
	StartedAt time.Time
}

// Selected reports whether the child id is selected.
func (s *Session) Selected(id string) bool {
	_, ok := s.Selection[id]
	return ok
}

// Sessions holds the open session of every chat.
type Sessions struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewSessions creates an empty session store.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[int64]*Session)}
}

// Start creates a fresh session for chatID, replacing any previous one.
func (ss *Sessions) Start(chatID, userID int64, language string) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		UserID:    userID,
		Language:  language,
		Window:    WindowBrowser,
		Selection: make(map[string]struct{}),
		StartedAt: time.Now(),
	}

	ss.mu.Lock()
	ss.sessions[chatID] = s
	n := len(ss.sessions)
	ss.mu.Unlock()

	metrics.SetActiveSessions(n)
	return s
}

// Get returns the session of chatID.
func (ss *Sessions) Get(chatID int64) (*Session, bool) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	s, ok := ss.sessions[chatID]
	return s, ok
}

// End drops the session of chatID.
func (ss *Sessions) End(chatID int64) {
	ss.mu.Lock()
	delete(ss.sessions, chatID)
	n := len(ss.sessions)
	ss.mu.Unlock()

	metrics.SetActiveSessions(n)
}

// Len returns the number of open sessions.
func (ss *Sessions) Len() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	return len(ss.sessions)
}
