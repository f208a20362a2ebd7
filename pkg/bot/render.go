package bot

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/files"
	"github.com/denysvitali/nextcloud-files-bot/pkg/i18n"
)

const progressCells = 10

// renderer turns sessions into message text and inline keyboards.
type renderer struct {
	tr       *i18n.Translator
	pageSize int
}

var mimeSymbols = map[string]string{
	"application/pdf":               "📕",
	"application/zip":               "🗜",
	"application/gzip":              "🗜",
	"application/x-tar":             "🗜",
	"application/x-7z-compressed":   "🗜",
	"application/vnd.rar":           "🗜",
	"application/json":              "🧾",
	"application/xml":               "🧾",
	"application/msword":            "📘",
	"application/vnd.ms-excel":      "📗",
	"application/vnd.ms-powerpoint": "📙",

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   "📘",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         "📗",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": "📙",
}

var mimeGroupSymbols = map[string]string{
	"image": "🖼",
	"video": "🎬",
	"audio": "🎵",
	"text":  "📝",
}

func symbol(node models.FsNode) string {
	if node.IsDir {
		return "📁"
	}
	if s, ok := mimeSymbols[node.MimeType]; ok {
		return s
	}
	group, _, _ := strings.Cut(node.MimeType, "/")
	if s, ok := mimeGroupSymbols[group]; ok {
		return s
	}
	return "📄"
}

// progressBar draws percent as a fixed width bar followed by the truncated
// percentage.
func progressBar(percent float64) string {
	p := int(percent)
	if p < 0 {
		p = 0
	}
	if p > 100 {
		p = 100
	}
	filled := p * progressCells / 100
	return strings.Repeat("🟩", filled) + strings.Repeat("⬜", progressCells-filled) + fmt.Sprintf(" %d%%", p)
}

// paginate clamps page and returns the bounds of its items.
func paginate(n, page, size int) (start, end, clamped, pages int) {
	if size <= 0 {
		size = n
	}
	pages = 1
	if n > 0 && size > 0 {
		pages = (n + size - 1) / size
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start = page * size
	end = start + size
	if end > n {
		end = n
	}
	return start, end, page, pages
}

// displayName is the node name, or the localized root name.
func (r *renderer) displayName(lang string, node models.FsNode) string {
	if node.IsRoot() {
		return r.tr.T(lang, "root-name", nil)
	}
	return node.Name
}

func (r *renderer) fileInfo(lang string, node models.FsNode) string {
	typ := node.MimeType
	if node.IsDir {
		typ = r.tr.T(lang, "folder-type", nil)
	}
	favorite := r.tr.T(lang, "favorite-no", nil)
	if node.Favorite {
		favorite = r.tr.T(lang, "favorite-yes", nil)
	}
	modified := "-"
	if !node.LastModified.IsZero() {
		modified = node.LastModified.Local().Format("2006-01-02 15:04")
	}
	return r.tr.T(lang, "file-info", map[string]any{
		"Symbol":       symbol(node),
		"Name":         r.displayName(lang, node),
		"Path":         node.UserPath,
		"Type":         typ,
		"Size":         humanize.Bytes(uint64(max(node.Size, 0))),
		"LastModified": modified,
		"Permissions":  node.Permissions,
		"Favorite":     favorite,
		"Owner":        node.Owner,
	})
}

type keyboard struct {
	rows [][]tgbotapi.InlineKeyboardButton
}

func (k *keyboard) button(text, data string) {
	k.rows = append(k.rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(text, data)))
}

func (k *keyboard) pager(prev, next string, page, pages int) {
	if pages <= 1 {
		return
	}
	k.rows = append(k.rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(prev, pageCallback((page-1+pages)%pages)),
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d/%d", page+1, pages), cbNoop),
		tgbotapi.NewInlineKeyboardButtonData(next, pageCallback((page+1)%pages)),
	))
}

func (k *keyboard) markup() tgbotapi.InlineKeyboardMarkup {
	if k.rows == nil {
		return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}}
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: k.rows}
}

// render returns the text and keyboard of the current window of s.
func (r *renderer) render(s *files.Session) (string, tgbotapi.InlineKeyboardMarkup) {
	lang := s.Language
	self := s.Listing.Self
	name := r.displayName(lang, self)
	var kb keyboard

	switch s.Window {
	case files.WindowMultiselect:
		children := s.Listing.Visible()
		start, end, page, pages := paginate(len(children), s.Page, r.pageSize)
		s.Page = page
		for _, child := range children[start:end] {
			mark := "☑️"
			if s.Selected(child.FileID) {
				mark = "✅"
			}
			kb.button(mark+" "+child.Name, encodeCallback(cbToggle, child.FileID))
		}
		kb.pager(r.tr.T(lang, "prev-btn", nil), r.tr.T(lang, "next-btn", nil), page, pages)
		if len(s.Selection) > 0 {
			kb.button(r.tr.T(lang, "multidownload-btn", nil), cbBulkDownload)
			kb.button(r.tr.T(lang, "multidelete-btn", nil), cbBulkDelete)
			kb.button(r.tr.T(lang, "drop-selected-btn", nil), cbDrop)
		}
		kb.button(r.tr.T(lang, "back-btn", nil), cbLeaveSelect)
		text := r.tr.T(lang, "multiselect-files", map[string]any{"Name": name, "Count": len(s.Selection)})
		return text, kb.markup()

	case files.WindowMultiDownload, files.WindowMultiDelete, files.WindowUploading:
		return r.renderProgress(s, s.Progress), kb.markup()

	case files.WindowCreate:
		kb.button(r.tr.T(lang, "folder-btn", nil), cbCreateFolder)
		kb.button(r.tr.T(lang, "upload-btn", nil), cbUploadQueue)
		kb.button(r.tr.T(lang, "cancel-btn", nil), cbCancelCreate)
		return r.tr.T(lang, "create-file", map[string]any{"Name": name}), kb.markup()

	case files.WindowCreateFolder:
		kb.button(r.tr.T(lang, "cancel-btn", nil), cbCancelFolder)
		return r.tr.T(lang, "create-folder", map[string]any{"Name": name}), kb.markup()

	case files.WindowUploadQueue:
		start, end, page, pages := paginate(len(s.Pending), s.Page, r.pageSize)
		s.Page = page
		for _, doc := range s.Pending[start:end] {
			kb.button("❌ "+doc.Name, encodeCallback(cbDequeue, doc.UniqueID))
		}
		kb.pager(r.tr.T(lang, "prev-btn", nil), r.tr.T(lang, "next-btn", nil), page, pages)
		if len(s.Pending) > 0 {
			kb.button(r.tr.T(lang, "upload-btn", nil), cbCommit)
		}
		kb.button(r.tr.T(lang, "cancel-btn", nil), cbCancelUpload)
		text := r.tr.T(lang, "upload-files-managment", map[string]any{"Name": name, "Count": len(s.Pending)})
		return text, kb.markup()
	}

	children := s.Listing.Visible()
	start, end, page, pages := paginate(len(children), s.Page, r.pageSize)
	s.Page = page
	for _, child := range children[start:end] {
		kb.button(symbol(child)+" "+child.Name, encodeCallback(cbOpen, child.FileID))
	}
	kb.pager(r.tr.T(lang, "prev-btn", nil), r.tr.T(lang, "next-btn", nil), page, pages)

	actions := files.AvailableActions(self)
	if actions.Back {
		kb.button(r.tr.T(lang, "back-btn", nil), cbBack)
	}
	if actions.Multiselect {
		kb.button(r.tr.T(lang, "multiselect-btn", nil), cbMultiselect)
	}
	if actions.Download {
		kb.button(r.tr.T(lang, "download-btn", nil), cbDownload)
	}
	if actions.Delete {
		kb.button(r.tr.T(lang, "delete-btn", nil), cbDelete)
	}
	if actions.Create {
		kb.button(r.tr.T(lang, "create-btn", nil), cbCreate)
	}
	return r.fileInfo(lang, self), kb.markup()
}

func (r *renderer) renderProgress(s *files.Session, p models.Progress) string {
	id := "multidownload-files"
	switch s.Window {
	case files.WindowMultiDelete:
		id = "multidelete-files"
	case files.WindowUploading:
		id = "upload-files"
	}
	return r.tr.T(s.Language, id, map[string]any{"Name": p.Name}) + "\n" + progressBar(p.Percent)
}
