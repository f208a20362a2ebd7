package files

import (
	"bytes"
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/metrics"
)

// Open fetches the node at userPath with its children and shows it in the
// browser window.
func (svc *Service) Open(ctx context.Context, s *Session, userPath string) error {
	nodes, err := svc.storage.ListDir(ctx, userPath)
	if err != nil {
		return fmt.Errorf("open %q: %w", userPath, err)
	}
	if len(nodes) == 0 {
		return fmt.Errorf("open %q: empty listing", userPath)
	}

	s.Listing = models.NewListing(nodes[0], nodes[1:])
	s.Page = 0
	s.Window = WindowBrowser

	svc.log(s).WithField("children", len(s.Listing.Children)).Debug("Opened folder")
	return nil
}

// SelectChild resolves the child id against the remote store and opens it.
func (svc *Service) SelectChild(ctx context.Context, s *Session, id string) error {
	node, err := svc.storage.ByID(ctx, id)
	if err != nil {
		return fmt.Errorf("select %s: %w", id, err)
	}
	return svc.Open(ctx, s, node.UserPath)
}

// Back opens the parent of the current node. At the root it does nothing.
func (svc *Service) Back(ctx context.Context, s *Session) error {
	if s.Listing.Self.IsRoot() {
		return nil
	}
	return svc.Open(ctx, s, s.Listing.Self.ParentPath())
}

// Refresh re-fetches the current node.
func (svc *Service) Refresh(ctx context.Context, s *Session) error {
	return svc.Open(ctx, s, s.Listing.Self.UserPath)
}

// DownloadCurrent sends the current file to the chat.
func (svc *Service) DownloadCurrent(ctx context.Context, s *Session) error {
	node := s.Listing.Self
	if node.IsDir {
		return svc.messenger.Notify(ctx, s, Notice{ID: NoticeDirsNotSupported, Data: map[string]any{"Name": node.Name}})
	}
	if node.Size > svc.cfg.MaxSendSize {
		return svc.messenger.Notify(ctx, s, Notice{ID: NoticeTooBig, Data: map[string]any{"Name": node.Name}})
	}
	return svc.sendNode(ctx, s, node)
}

// DeleteCurrent removes the current node and opens its parent.
func (svc *Service) DeleteCurrent(ctx context.Context, s *Session) error {
	node := s.Listing.Self
	if node.IsRoot() {
		return nil
	}
	if err := svc.storage.Delete(ctx, node); err != nil {
		return fmt.Errorf("delete %q: %w", node.UserPath, err)
	}
	svc.log(s).Info("Deleted node")
	return svc.Open(ctx, s, node.ParentPath())
}

// sendNode downloads node into memory and sends it as a chat document.
func (svc *Service) sendNode(ctx context.Context, s *Session, node models.FsNode) error {
	var buf bytes.Buffer
	if node.Size > 0 {
		buf.Grow(int(node.Size))
	}
	n, err := svc.storage.Download(ctx, node, &buf)
	if err != nil {
		return fmt.Errorf("download %q: %w", node.UserPath, err)
	}
	if err := svc.messenger.SendDocument(ctx, s, node.Name, buf.Bytes()); err != nil {
		return fmt.Errorf("send %q: %w", node.Name, err)
	}
	metrics.RecordTransfer(metrics.DirectionDownload, n)

	svc.log(s).WithFields(logrus.Fields{
		"file":  node.UserPath,
		"bytes": n,
	}).Info("Sent file to chat")
	return nil
}
