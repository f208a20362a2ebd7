package files

import (
	"context"
	"fmt"

	"github.com/denysvitali/nextcloud-files-bot/pkg/metrics"
)

const (
	opDownload = "download"
	opDelete   = "delete"
	opUpload   = "upload"
)

// EnterMultiselect starts the multiselect sub-flow over the current listing.
func (svc *Service) EnterMultiselect(s *Session) {
	s.Window = WindowMultiselect
	s.Selection = make(map[string]struct{})
	s.Page = 0
}

// LeaveMultiselect ends the sub-flow and drops its selection.
func (svc *Service) LeaveMultiselect(s *Session) {
	s.Selection = make(map[string]struct{})
	s.Window = WindowBrowser
	s.Page = 0
}

// Toggle flips the selection of a child of the current listing. Ids that are
// not in the listing are ignored.
func (svc *Service) Toggle(s *Session, id string) {
	if _, ok := s.Listing.Find(id); !ok {
		return
	}
	if s.Selected(id) {
		delete(s.Selection, id)
		return
	}
	s.Selection[id] = struct{}{}
}

// DropSelection clears the selection.
func (svc *Service) DropSelection(s *Session) {
	s.Selection = make(map[string]struct{})
}

// BulkDownload sends every selected file to the chat, one at a time and in
// listing order. Directories and files above the send cap are skipped with a
// notice. The listing is left as it was.
func (svc *Service) BulkDownload(ctx context.Context, s *Session) error {
	items := s.Listing.Filter(s.Selection)
	s.Window = WindowMultiDownload
	total := len(items)

	for i, node := range items {
		switch {
		case node.IsDir:
			metrics.RecordBulkItem(opDownload, "skipped")
			if err := svc.messenger.Notify(ctx, s, Notice{ID: NoticeDirsNotSupported, Data: map[string]any{"Name": node.Name}}); err != nil {
				return err
			}
		case node.Size > svc.cfg.MaxSendSize:
			metrics.RecordBulkItem(opDownload, "skipped")
			if err := svc.messenger.Notify(ctx, s, Notice{ID: NoticeTooBig, Data: map[string]any{"Name": node.Name}}); err != nil {
				return err
			}
		default:
			if err := svc.sendNode(ctx, s, node); err != nil {
				metrics.RecordBulkItem(opDownload, "error")
				return err
			}
			metrics.RecordBulkItem(opDownload, "ok")
		}
		svc.report(ctx, s, i+1, total, node.Name)
	}

	svc.log(s).WithField("items", total).Info("Bulk download finished")
	svc.LeaveMultiselect(s)
	return nil
}

// BulkDelete removes every selected node in listing order and re-opens the
// current folder.
func (svc *Service) BulkDelete(ctx context.Context, s *Session) error {
	items := s.Listing.Filter(s.Selection)
	s.Window = WindowMultiDelete
	total := len(items)
	folder := s.Listing.Self.UserPath

	for i, node := range items {
		if !node.IsDeletable() {
			metrics.RecordBulkItem(opDelete, "skipped")
			if err := svc.messenger.Notify(ctx, s, Notice{ID: NoticeNotDeletable, Data: map[string]any{"Name": node.Name}}); err != nil {
				return err
			}
		} else {
			if err := svc.storage.Delete(ctx, node); err != nil {
				metrics.RecordBulkItem(opDelete, "error")
				return fmt.Errorf("delete %q: %w", node.UserPath, err)
			}
			metrics.RecordBulkItem(opDelete, "ok")
		}
		svc.report(ctx, s, i+1, total, node.Name)
	}

	svc.log(s).WithField("items", total).Info("Bulk delete finished")
	s.Selection = make(map[string]struct{})
	return svc.Open(ctx, s, folder)
}
