package files

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/metrics"
	"github.com/denysvitali/nextcloud-files-bot/pkg/nextcloud"
)

// maxNameAttempts bounds conditional create retries when other writers keep
// taking the name we resolved.
const maxNameAttempts = 16

// EnterUploadQueue opens an empty upload queue for the current folder.
func (svc *Service) EnterUploadQueue(s *Session) {
	s.Window = WindowUploadQueue
	s.Pending = nil
}

// Enqueue validates doc and puts it at the front of the queue. A document
// that is already queued moves to the front.
func (svc *Service) Enqueue(s *Session, doc models.Document) error {
	if doc.Name == "" || doc.Size < 0 {
		return ErrInvalidDocument
	}
	if doc.Size > svc.cfg.MaxUploadSize {
		return fmt.Errorf("%s: %w", doc.Name, ErrDocumentTooLarge)
	}
	svc.Dequeue(s, doc.UniqueID)
	s.Pending = append([]models.Document{doc}, s.Pending...)
	return nil
}

// Dequeue removes the queued document with the given unique id, if any.
func (svc *Service) Dequeue(s *Session, uniqueID string) {
	for i, doc := range s.Pending {
		if doc.UniqueID == uniqueID {
			s.Pending = append(s.Pending[:i:i], s.Pending[i+1:]...)
			return
		}
	}
}

// ClearQueue empties the queue.
func (svc *Service) ClearQueue(s *Session) {
	s.Pending = nil
}

// CancelUpload leaves the upload queue without uploading.
func (svc *Service) CancelUpload(s *Session) {
	svc.ClearQueue(s)
	s.Window = WindowBrowser
}

// Commit uploads the queued documents into the current folder one at a time
// and re-opens the folder. Documents the transport cannot serve are skipped
// with a notice.
func (svc *Service) Commit(ctx context.Context, s *Session) error {
	target := s.Listing.Self
	queue := s.Pending
	total := len(queue)
	siblings := s.Listing.Names()
	s.Window = WindowUploading

	for i, doc := range queue {
		name, err := svc.uploadDocument(ctx, s, target, doc, siblings)
		if err != nil {
			metrics.RecordBulkItem(opUpload, "error")
			return err
		}
		if name == "" {
			metrics.RecordBulkItem(opUpload, "skipped")
		} else {
			metrics.RecordBulkItem(opUpload, "ok")
			siblings = append(siblings, name)
		}
		svc.report(ctx, s, i+1, total, doc.Name)
	}

	svc.log(s).WithField("items", total).Info("Upload finished")
	s.Pending = nil
	return svc.Open(ctx, s, target.UserPath)
}

// uploadDocument transfers one document and returns the name it was stored
// under, or "" when it was skipped.
func (svc *Service) uploadDocument(ctx context.Context, s *Session, target models.FsNode, doc models.Document, siblings []string) (string, error) {
	location, err := svc.messenger.FileLocation(ctx, doc.FileID)
	if err != nil {
		return "", fmt.Errorf("locate %q: %w", doc.Name, err)
	}
	if location == "" {
		return "", svc.messenger.Notify(ctx, s, Notice{ID: NoticeFileUnavailable, Data: map[string]any{"Name": doc.Name}})
	}

	var buf bytes.Buffer
	if doc.Size > 0 {
		buf.Grow(int(doc.Size))
	}
	if _, err := svc.messenger.Fetch(ctx, location, &buf); err != nil {
		return "", fmt.Errorf("fetch %q: %w", doc.Name, err)
	}
	data := buf.Bytes()

	contentType := doc.MimeType
	if contentType == "" {
		contentType = mimetype.Detect(data).String()
	}

	used := append([]string(nil), siblings...)
	for attempt := 0; attempt < maxNameAttempts; attempt++ {
		name := UniqueName(doc.Name, used)
		userPath := target.ChildPath(name)
		err := svc.storage.Upload(ctx, userPath, bytes.NewReader(data), int64(len(data)), contentType)
		if errors.Is(err, nextcloud.ErrExists) {
			svc.log(s).WithField("name", name).Debug("Name taken remotely, resolving again")
			used = append(used, name)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("upload %q: %w", userPath, err)
		}

		metrics.RecordTransfer(metrics.DirectionUpload, int64(len(data)))
		svc.log(s).WithFields(logrus.Fields{
			"file":  userPath,
			"bytes": len(data),
		}).Info("Uploaded document")
		return name, nil
	}
	return "", fmt.Errorf("upload %q: %w", doc.Name, nextcloud.ErrExists)
}
