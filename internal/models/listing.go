package models

import "sort"

// Listing is an opened folder: the folder itself plus its children, with
// directories ordered before files.
type Listing struct {
	Self     FsNode   `json:"self"`
	Children []FsNode `json:"children"`
}

// NewListing builds a listing from self and the children in remote order.
// Children are stable-sorted so that directories come first while the
// relative order inside each group is preserved.
func NewListing(self FsNode, children []FsNode) Listing {
	sorted := make([]FsNode, len(children))
	copy(sorted, children)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].IsDir && !sorted[j].IsDir
	})
	return Listing{Self: self, Children: sorted}
}

// Names returns the names of all children.
func (l Listing) Names() []string {
	names := make([]string, 0, len(l.Children))
	for _, child := range l.Children {
		names = append(names, child.Name)
	}
	return names
}

// Visible returns the children a user is allowed to open.
func (l Listing) Visible() []FsNode {
	visible := make([]FsNode, 0, len(l.Children))
	for _, child := range l.Children {
		if child.IsReadable() {
			visible = append(visible, child)
		}
	}
	return visible
}

// Find returns the child with the given file id.
func (l Listing) Find(id string) (FsNode, bool) {
	for _, child := range l.Children {
		if child.FileID == id {
			return child, true
		}
	}
	return FsNode{}, false
}

// Filter returns the children whose id is in ids, in listing order.
func (l Listing) Filter(ids map[string]struct{}) []FsNode {
	var out []FsNode
	for _, child := range l.Children {
		if _, ok := ids[child.FileID]; ok {
			out = append(out, child)
		}
	}
	return out
}
