package files

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/nextcloud"
)

var folderNameRe = regexp.MustCompile(`^[a-zA-Z0-9][-a-zA-Z0-9]*[a-zA-Z0-9]?$`)

// ValidFolderName reports whether name is accepted for new folders.
func ValidFolderName(name string) bool {
	return folderNameRe.MatchString(name)
}

// EnterCreate shows the create menu.
func (svc *Service) EnterCreate(s *Session) {
	s.Window = WindowCreate
}

// EnterCreateFolder asks for a folder name.
func (svc *Service) EnterCreateFolder(s *Session) {
	s.Window = WindowCreateFolder
}

// CancelCreate returns to the browser.
func (svc *Service) CancelCreate(s *Session) {
	s.Window = WindowBrowser
}

// CreateFolder creates a folder called name in the current folder, picking a
// free name when a sibling already uses it, and re-opens the current folder.
// Invalid names fail with ErrInvalidFolderName before any remote call.
func (svc *Service) CreateFolder(ctx context.Context, s *Session, name string) (models.FsNode, error) {
	if !ValidFolderName(name) {
		return models.FsNode{}, ErrInvalidFolderName
	}

	parent := s.Listing.Self
	used := s.Listing.Names()
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		candidate := UniqueName(name, used)
		node, err := svc.storage.Mkdir(ctx, parent.ChildPath(candidate))
		if errors.Is(err, nextcloud.ErrExists) {
			used = append(used, candidate)
			continue
		}
		if err != nil {
			return models.FsNode{}, fmt.Errorf("create folder %q: %w", candidate, err)
		}

		svc.log(s).WithField("folder", node.UserPath).Info("Created folder")
		if err := svc.messenger.Notify(ctx, s, Notice{ID: NoticeFolderCreated, Data: map[string]any{"Name": candidate}}); err != nil {
			return node, err
		}
		return node, svc.Open(ctx, s, parent.UserPath)
	}
	return models.FsNode{}, fmt.Errorf("create folder %q: %w", name, nextcloud.ErrExists)
}
