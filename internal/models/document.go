package models

// Document describes a file the user sent to the chat and that is waiting
// to be uploaded.
type Document struct {
	FileID   string `json:"file_id"`
	UniqueID string `json:"unique_id"`
	Name     string `json:"name"`
	Size     int64  `json:"size"` // negative when the transport did not report it
	MimeType string `json:"mime_type,omitempty"`
}

// Progress is the state of a running bulk operation.
type Progress struct {
	Name    string  `json:"name"`
	Percent float64 `json:"percent"`
}

// Actions lists which operations are offered for the current node.
type Actions struct {
	Back        bool `json:"back"`
	Multiselect bool `json:"multiselect"`
	Download    bool `json:"download"`
	Delete      bool `json:"delete"`
	Create      bool `json:"create"`
}
