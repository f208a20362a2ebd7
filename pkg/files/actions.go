package files

import "github.com/denysvitali/nextcloud-files-bot/internal/models"

// AvailableActions returns the operations offered for node.
func AvailableActions(node models.FsNode) models.Actions {
	return models.Actions{
		Back:        !node.IsRoot(),
		Multiselect: node.IsDir,
		Download:    !node.IsDir && node.IsReadable(),
		Delete:      !node.IsRoot() && node.IsDeletable(),
		Create:      node.IsDir && node.IsUpdatable(),
	}
}
