package files

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/denysvitali/nextcloud-files-bot/internal/models"
	"github.com/denysvitali/nextcloud-files-bot/pkg/nextcloud"
)

// fakeStorage is an in-memory remote store. Children are listed in insertion
// order, like a server that reports them in its own order.
type fakeStorage struct {
	order   []string
	nodes   map[string]models.FsNode
	content map[string][]byte

	// taken holds paths that are absent from listings but rejected on create,
	// as if another writer got there first.
	taken map[string]bool

	listCalls []string
	downloads []string
	deleted   []string
	uploads   map[string][]byte
	mkdirs    []string
	nextID    int
}

func newFakeStorage() *fakeStorage {
	st := &fakeStorage{
		nodes:   make(map[string]models.FsNode),
		content: make(map[string][]byte),
		taken:   make(map[string]bool),
		uploads: make(map[string][]byte),
		nextID:  1000,
	}
	st.add(models.FsNode{FileID: "root", UserPath: "", IsDir: true, Permissions: "RGDNVCK"})
	return st
}

func (st *fakeStorage) add(node models.FsNode) models.FsNode {
	if node.Name == "" && node.UserPath != "" {
		node.Name = nameOf(node.UserPath)
	}
	st.order = append(st.order, node.UserPath)
	st.nodes[node.UserPath] = node
	return node
}

func (st *fakeStorage) addFile(id, userPath string, size int64) models.FsNode {
	st.content[userPath] = []byte(strings.Repeat("x", int(size)))
	return st.add(models.FsNode{FileID: id, UserPath: userPath, Size: size, Permissions: "RGDNVW", MimeType: "text/plain"})
}

func (st *fakeStorage) addDir(id, userPath string) models.FsNode {
	return st.add(models.FsNode{FileID: id, UserPath: userPath, IsDir: true, Permissions: "RGDNVCK"})
}

func nameOf(userPath string) string {
	p := strings.TrimSuffix(userPath, "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

func notFound(method, userPath string) error {
	return &nextcloud.Error{Method: method, Path: userPath, StatusCode: http.StatusNotFound}
}

func (st *fakeStorage) ListDir(_ context.Context, userPath string) ([]models.FsNode, error) {
	st.listCalls = append(st.listCalls, userPath)
	self, ok := st.nodes[userPath]
	if !ok {
		return nil, notFound("PROPFIND", userPath)
	}
	out := []models.FsNode{self}
	if !self.IsDir {
		return out, nil
	}
	for _, p := range st.order {
		node, ok := st.nodes[p]
		if !ok || node.IsRoot() || p == userPath {
			continue
		}
		if node.ParentPath() == userPath {
			out = append(out, node)
		}
	}
	return out, nil
}

func (st *fakeStorage) ByID(_ context.Context, fileID string) (models.FsNode, error) {
	for _, p := range st.order {
		if node, ok := st.nodes[p]; ok && node.FileID == fileID {
			return node, nil
		}
	}
	return models.FsNode{}, notFound("SEARCH", fileID)
}

func (st *fakeStorage) Download(_ context.Context, node models.FsNode, w io.Writer) (int64, error) {
	st.downloads = append(st.downloads, node.UserPath)
	data, ok := st.content[node.UserPath]
	if !ok {
		return 0, notFound("GET", node.UserPath)
	}
	n, err := w.Write(data)
	return int64(n), err
}

func (st *fakeStorage) Upload(_ context.Context, userPath string, r io.Reader, _ int64, contentType string) error {
	if _, ok := st.nodes[userPath]; ok || st.taken[userPath] {
		return &nextcloud.Error{Method: "PUT", Path: userPath, StatusCode: http.StatusPreconditionFailed}
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	st.uploads[userPath] = data
	st.content[userPath] = data
	st.nextID++
	st.add(models.FsNode{FileID: fmt.Sprint(st.nextID), UserPath: userPath, Size: int64(len(data)), Permissions: "RGDNVW", MimeType: contentType})
	return nil
}

func (st *fakeStorage) Delete(_ context.Context, node models.FsNode) error {
	if _, ok := st.nodes[node.UserPath]; !ok {
		return notFound("DELETE", node.UserPath)
	}
	st.deleted = append(st.deleted, node.UserPath)
	for p := range st.nodes {
		if p == node.UserPath || (node.IsDir && strings.HasPrefix(p, node.UserPath)) {
			delete(st.nodes, p)
		}
	}
	return nil
}

func (st *fakeStorage) Mkdir(_ context.Context, userPath string) (models.FsNode, error) {
	dirPath := strings.TrimSuffix(userPath, "/") + "/"
	st.mkdirs = append(st.mkdirs, dirPath)
	if _, ok := st.nodes[dirPath]; ok || st.taken[dirPath] {
		return models.FsNode{}, fmt.Errorf("mkdir %q: %w", dirPath, nextcloud.ErrExists)
	}
	st.nextID++
	return st.addDir(fmt.Sprint(st.nextID), dirPath), nil
}

type sentDocument struct {
	Name string
	Data []byte
}

type fakeMessenger struct {
	notices   []Notice
	documents []sentDocument
	progress  []models.Progress
	locations map[string]string
	blobs     map[string][]byte
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		locations: make(map[string]string),
		blobs:     make(map[string][]byte),
	}
}

func (m *fakeMessenger) Notify(_ context.Context, _ *Session, n Notice) error {
	m.notices = append(m.notices, n)
	return nil
}

func (m *fakeMessenger) SendDocument(_ context.Context, _ *Session, name string, data []byte) error {
	m.documents = append(m.documents, sentDocument{Name: name, Data: append([]byte(nil), data...)})
	return nil
}

func (m *fakeMessenger) Progress(_ context.Context, _ *Session, p models.Progress) error {
	m.progress = append(m.progress, p)
	return nil
}

func (m *fakeMessenger) FileLocation(_ context.Context, fileID string) (string, error) {
	return m.locations[fileID], nil
}

func (m *fakeMessenger) Fetch(_ context.Context, location string, w io.Writer) (int64, error) {
	n, err := w.Write(m.blobs[location])
	return int64(n), err
}

// serve registers a document the transport can serve.
func (m *fakeMessenger) serve(fileID string, data []byte) {
	location := "documents/" + fileID
	m.locations[fileID] = location
	m.blobs[location] = data
}

func (m *fakeMessenger) noticeIDs() []string {
	ids := make([]string, 0, len(m.notices))
	for _, n := range m.notices {
		ids = append(ids, n.ID)
	}
	return ids
}

const (
	testSendCap   = 100
	testUploadCap = 50
)

func newTestService(t *testing.T, st Storage, msg Messenger) *Service {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewService(st, msg, Config{MaxSendSize: testSendCap, MaxUploadSize: testUploadCap}, logger)
}

func newTestSession() *Session {
	return NewSessions().Start(42, 7, "en")
}
