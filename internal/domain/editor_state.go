package domain

import "time"

// Selection is the local session's current selection. Empty ids mean
// nothing is selected.
type Selection struct {
	SectionID string `json:"sectionId"`
	ElementID string `json:"elementId"`
}

// SaveStatus reflects the persistence collaborator's progress for a page.
type SaveStatus struct {
	Saving    bool       `json:"isSaving"`
	LastSaved *time.Time `json:"lastSaved"`
	LastError string     `json:"lastError,omitempty"`
}

// EditorState is the complete state of an editing session, returned to the
// presentation layer to render the builder.
type EditorState struct {
	Page      Page       `json:"page"`
	Selection Selection  `json:"selection"`
	Viewport  Viewport   `json:"viewport"`
	CanUndo   bool       `json:"canUndo"`
	CanRedo   bool       `json:"canRedo"`
	Save      SaveStatus `json:"save"`
}
