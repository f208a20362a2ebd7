package models

import (
	"path"
	"strings"
	"time"
)

// FsNode represents a file or folder entry fetched from the remote store.
// It is a snapshot: it is never mutated after being decoded.
type FsNode struct {
	FileID       string    `json:"file_id"`
	Name         string    `json:"name"`
	UserPath     string    `json:"user_path"` // relative to the user's root, directories end with "/"
	IsDir        bool      `json:"is_dir"`
	Permissions  string    `json:"permissions"`
	Size         int64     `json:"size"`
	MimeType     string    `json:"mime_type"`
	LastModified time.Time `json:"last_modified"`
	Favorite     bool      `json:"favorite"`
	Owner        string    `json:"owner"`
	ETag         string    `json:"etag,omitempty"`
}

// IsReadable reports whether the node content can be fetched.
func (n FsNode) IsReadable() bool {
	return strings.Contains(n.Permissions, "G")
}

// IsDeletable reports whether the node can be removed.
func (n FsNode) IsDeletable() bool {
	return strings.Contains(n.Permissions, "D")
}

// IsUpdatable reports whether the node accepts writes. For directories that
// means new children can be created in it.
func (n FsNode) IsUpdatable() bool {
	if n.IsDir {
		return strings.ContainsAny(n.Permissions, "CK")
	}
	return strings.Contains(n.Permissions, "W") || strings.Contains(n.Permissions, "NV")
}

// IsRoot reports whether the node is the user's root folder.
func (n FsNode) IsRoot() bool {
	return n.UserPath == ""
}

// ParentPath returns the user path of the folder containing the node. The
// parent of a top-level entry is the root ("").
func (n FsNode) ParentPath() string {
	p := strings.TrimSuffix(n.UserPath, "/")
	if p == "" {
		return ""
	}
	dir := path.Dir(p)
	if dir == "." || dir == "/" {
		return ""
	}
	return dir + "/"
}

// ChildPath returns the user path of a child called name inside the node.
func (n FsNode) ChildPath(name string) string {
	if n.UserPath == "" {
		return name
	}
	return strings.TrimSuffix(n.UserPath, "/") + "/" + name
}
