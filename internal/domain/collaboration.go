package domain

import (
	"encoding/json"
	"time"
)

// ActiveUser is a remote participant's presence record on a page.
type ActiveUser struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"displayName"`
	PhotoURL       string    `json:"photoURL,omitempty"`
	Color          string    `json:"color"`
	IsTyping       bool      `json:"isTyping"`
	CurrentSection string    `json:"currentSection,omitempty"`
	CurrentElement string    `json:"currentElement,omitempty"`
	JoinedAt       time.Time `json:"joinedAt"`
	LastActivity   time.Time `json:"lastActivity"`
}

// ActiveUserPatch updates selected presence fields. Nil fields are kept.
type ActiveUserPatch struct {
	DisplayName    *string `json:"displayName,omitempty"`
	Color          *string `json:"color,omitempty"`
	IsTyping       *bool   `json:"isTyping,omitempty"`
	CurrentSection *string `json:"currentSection,omitempty"`
	CurrentElement *string `json:"currentElement,omitempty"`
}

type CursorPosition struct {
	UserID    string    `json:"userId"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Timestamp time.Time `json:"timestamp"`
}

type SelectionKind string

const (
	SelectionSection SelectionKind = "section"
	SelectionElement SelectionKind = "element"
)

// RemoteSelection is what another participant currently has selected.
type RemoteSelection struct {
	UserID    string        `json:"userId"`
	Kind      SelectionKind `json:"type"`
	TargetID  string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
}

type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
	ChangeMove   ChangeKind = "move"

	// ChangeReplace swaps the whole section tree (undo, redo, templates).
	ChangeReplace ChangeKind = "replace"
)

type ChangeTarget string

const (
	TargetSection ChangeTarget = "section"
	TargetElement ChangeTarget = "element"
	TargetPage    ChangeTarget = "page"
)

// Change is a serialized description of one mutation, exchanged between
// participants of a page. Data depends on Kind:
//   - add:    {"section": Section} or {"element": Element}, plus optional "index"
//   - update: a SectionPatch or ElementPatch
//   - move:   {"from": n, "to": m}
//   - delete: empty
//   - replace: {"sections": [Section]}
type Change struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	Kind      ChangeKind      `json:"type"`
	Target    ChangeTarget    `json:"target"`
	TargetID  string          `json:"targetId"`
	SectionID string          `json:"sectionId,omitempty"` // owning section for element targets
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
