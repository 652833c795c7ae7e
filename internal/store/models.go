package store

import "time"

type Document struct {
	ID         string    `json:"id"` // UUID
	Username   string    `json:"username"`
	Filename   string    `json:"filename"`
	OutletName *string   `json:"document_outlet_name"` // Nullable; set for outlet-scoped documents
	CreatedAt  time.Time `json:"created_at"`
}

type Command struct {
	CommandID       int64          `json:"command_id"`
	OutletName      string         `json:"document_outlet_name"`
	CommandText     string         `json:"command_text"`
	ParentCommandID *int64         `json:"parent_command_id"` // Nullable; nil for root commands
	Slots           []Slot         `json:"slots,omitempty"`
	Images          []CommandImage `json:"images,omitempty"`
}

type Slot struct {
	SlotID    int64  `json:"slot_id"`
	CommandID int64  `json:"command_id"`
	SlotName  string `json:"slot_name"`
	Required  bool   `json:"required"`
}

type CommandImage struct {
	ImageID   int64  `json:"image_id"`
	CommandID int64  `json:"command_id"`
	ImageURL  string `json:"image_url"`
}

// CommandNode is the nested literal form a command tree arrives in. Children
// are embedded values, not id references, so the input cannot form a cycle.
type CommandNode struct {
	CommandText string        `json:"command_text"`
	Slots       []string      `json:"slots"`
	Subcommands []CommandNode `json:"subcommands"`
}

// SlotSpec describes a slot to attach to an existing command.
type SlotSpec struct {
	SlotName string `json:"slot_name"`
	Required bool   `json:"required"`
}

type ImageText struct {
	ID           string    `json:"image_id"` // UUID
	Username     string    `json:"username"`
	Filename     string    `json:"filename"`
	DetectedText string    `json:"detected_text"`
	CreatedAt    time.Time `json:"created_at"`
}
