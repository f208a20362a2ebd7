package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewListing_DirectoriesFirst(t *testing.T) {
	self := FsNode{FileID: "0", UserPath: "Docs/", IsDir: true}
	children := []FsNode{
		{FileID: "1", Name: "b.txt"},
		{FileID: "2", Name: "Zeta", IsDir: true},
		{FileID: "3", Name: "a.txt"},
		{FileID: "4", Name: "Alpha", IsDir: true},
	}

	l := NewListing(self, children)
	assert.Equal(t, self, l.Self)
	assert.Equal(t, []string{"Zeta", "Alpha", "b.txt", "a.txt"}, l.Names())
	assert.Equal(t, "b.txt", children[0].Name, "input is not reordered")
}

func TestListing_FilterKeepsListingOrder(t *testing.T) {
	l := NewListing(FsNode{IsDir: true}, []FsNode{
		{FileID: "1", Name: "one"},
		{FileID: "2", Name: "two"},
		{FileID: "3", Name: "three"},
	})

	got := l.Filter(map[string]struct{}{"3": {}, "1": {}, "9": {}})
	assert.Len(t, got, 2)
	assert.Equal(t, "one", got[0].Name)
	assert.Equal(t, "three", got[1].Name)

	assert.Empty(t, l.Filter(nil))
}

func TestListing_VisibleAndFind(t *testing.T) {
	l := NewListing(FsNode{IsDir: true}, []FsNode{
		{FileID: "1", Name: "open", Permissions: "RGD"},
		{FileID: "2", Name: "hidden", Permissions: "R"},
	})

	visible := l.Visible()
	assert.Len(t, visible, 1)
	assert.Equal(t, "open", visible[0].Name)

	node, ok := l.Find("2")
	assert.True(t, ok)
	assert.Equal(t, "hidden", node.Name)

	_, ok = l.Find("3")
	assert.False(t, ok)
}

func TestFsNode_Paths(t *testing.T) {
	tests := []struct {
		userPath string
		parent   string
	}{
		{"", ""},
		{"a.txt", ""},
		{"Docs/", ""},
		{"Docs/a.txt", "Docs/"},
		{"Docs/2024/", "Docs/"},
		{"Docs/2024/x.pdf", "Docs/2024/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.parent, FsNode{UserPath: tt.userPath}.ParentPath(), tt.userPath)
	}

	assert.Equal(t, "a.txt", FsNode{}.ChildPath("a.txt"))
	assert.Equal(t, "Docs/a.txt", FsNode{UserPath: "Docs/"}.ChildPath("a.txt"))
}

func TestFsNode_Permissions(t *testing.T) {
	file := FsNode{Permissions: "RGDNVW"}
	assert.True(t, file.IsReadable())
	assert.True(t, file.IsDeletable())
	assert.True(t, file.IsUpdatable())

	shared := FsNode{Permissions: "SRGNV"}
	assert.True(t, shared.IsUpdatable())
	assert.False(t, shared.IsDeletable())

	dir := FsNode{IsDir: true, Permissions: "RGDNVCK"}
	assert.True(t, dir.IsUpdatable())
	assert.False(t, FsNode{IsDir: true, Permissions: "RGW"}.IsUpdatable())
}
