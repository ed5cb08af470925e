package editor

import (
	"context"
	"encoding/json"
	"log"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/history"
)

// EventSectionsChanged is emitted after every applied mutation, local or
// remote, with a Mutation as payload.
const EventSectionsChanged = "pagebuilder:sections-changed"

// Emitter delivers session events to the presentation layer.
type Emitter interface {
	Emit(ctx context.Context, event string, data any)
}

// Mutation describes one applied change. Data follows the payload shapes
// documented on domain.Change.
type Mutation struct {
	PageID    string              `json:"pageId"`
	Action    string              `json:"action"`
	Kind      domain.ChangeKind   `json:"kind"`
	Target    domain.ChangeTarget `json:"target"`
	TargetID  string              `json:"targetId"`
	SectionID string              `json:"sectionId,omitempty"`
	Data      json.RawMessage     `json:"data,omitempty"`
	Remote    bool                `json:"remote"`
	UserID    string              `json:"userId,omitempty"` // author of a remote change
	At        time.Time           `json:"at"`
}

// Options configures a Session. Zero values are usable.
type Options struct {
	HistoryDepth int
	Emitter      Emitter
	// NewID generates ids for inserted and duplicated entities.
	NewID func() string
}

// Session owns the live tree of one page together with its history,
// selection, viewport and save status. All methods are safe for
// concurrent use; each mutation and its snapshot happen under one lock.
type Session struct {
	mu sync.Mutex

	page      *domain.Page
	hist      *history.History
	selection domain.Selection
	viewport  domain.Viewport
	save      domain.SaveStatus

	remoteLog           []RemoteEntry
	remoteSinceSnapshot int

	emitter   Emitter
	newID     func() string
	observers map[int]func(Mutation)
	nextObs   int
}

// NewSession opens an editing session on a copy of page. The page's
// sections become the history baseline.
func NewSession(page *domain.Page, opts Options) *Session {
	p := page.Clone()
	if p == nil {
		p = &domain.Page{}
	}
	if p.Sections == nil {
		p.Sections = []domain.Section{}
	}
	domain.ReindexSections(p.Sections)
	for i := range p.Sections {
		domain.ReindexElements(p.Sections[i].Elements)
	}

	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	s := &Session{
		page:      p,
		hist:      history.New(opts.HistoryDepth),
		viewport:  domain.ViewportDesktop,
		emitter:   opts.Emitter,
		newID:     newID,
		observers: make(map[int]func(Mutation)),
	}
	s.hist.Reset(p.Sections)
	return s
}

func (s *Session) PageID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.ID
}

// Page returns a deep copy of the page including the live tree.
func (s *Session) Page() *domain.Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page.Clone()
}

// Sections returns a deep copy of the live tree.
func (s *Session) Sections() []domain.Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.CloneSections(s.page.Sections)
}

func (s *Session) Section(id string) (domain.Section, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := domain.SectionIndex(s.page.Sections, id)
	if idx < 0 {
		return domain.Section{}, false
	}
	return s.page.Sections[idx].Clone(), true
}

func (s *Session) Element(sectionID, elementID string) (domain.Element, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sec := s.sectionLocked(sectionID)
	if sec == nil {
		return domain.Element{}, false
	}
	idx := sec.ElementIndex(elementID)
	if idx < 0 {
		return domain.Element{}, false
	}
	return sec.Elements[idx].Clone(), true
}

// State returns a snapshot of everything the builder UI renders.
func (s *Session) State() domain.EditorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.EditorState{
		Page:      *s.page.Clone(),
		Selection: s.selection,
		Viewport:  s.viewport,
		CanUndo:   s.hist.CanUndo(),
		CanRedo:   s.hist.CanRedo(),
		Save:      s.saveStatusLocked(),
	}
}

func (s *Session) CanUndo() bool { return s.hist.CanUndo() }
func (s *Session) CanRedo() bool { return s.hist.CanRedo() }

func (s *Session) HistoryEntries() []history.EntryInfo { return s.hist.Entries() }

// HistoryLen reports the combined number of past and future entries.
func (s *Session) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.PastLen() + s.hist.FutureLen()
}

// SetTitle renames the page. Page metadata is not part of the undo history.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	s.page.Title = title
	s.mu.Unlock()
}

// SetPageMeta records the persisted version and status after a save or
// publish.
func (s *Session) SetPageMeta(version int, status domain.PageStatus, updatedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page.Version = version
	if status != "" {
		s.page.Status = status
	}
	if !updatedAt.IsZero() {
		s.page.UpdatedAt = updatedAt
	}
}

// Observe registers fn to receive every mutation after it is applied.
// The returned function removes the observer.
func (s *Session) Observe(fn func(Mutation)) func() {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// ─────────────────────────────────────────────────────────────
// Undo / redo
// ─────────────────────────────────────────────────────────────

// Undo restores the previous snapshot. It returns false when there is
// nothing to undo.
func (s *Session) Undo() bool {
	return s.travel("undo", s.hist.Undo)
}

// Redo re-applies the most recently undone snapshot. It returns false when
// there is nothing to redo.
func (s *Session) Redo() bool {
	return s.travel("redo", s.hist.Redo)
}

func (s *Session) travel(verb string, step func() ([]domain.Section, string, bool)) bool {
	s.mu.Lock()
	sections, action, ok := step()
	if !ok {
		s.mu.Unlock()
		return false
	}
	if s.remoteSinceSnapshot > 0 {
		log.Printf("[EDITOR] %s on page %s discards %d remote change(s)", verb, s.page.ID, s.remoteSinceSnapshot)
		s.remoteSinceSnapshot = 0
	}
	s.page.Sections = sections
	s.pruneSelectionLocked()

	m := s.finishLocked(Mutation{
		Action: verb + ": " + action,
		Kind:   domain.ChangeReplace,
		Target: domain.TargetPage,
		Data:   mustJSON(ReplaceData{Sections: sections}),
	})
	obs := s.observersLocked()
	s.mu.Unlock()

	s.publish(m, obs)
	return true
}

// ─────────────────────────────────────────────────────────────
// Save status
// ─────────────────────────────────────────────────────────────

func (s *Session) SaveStatus() domain.SaveStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveStatusLocked()
}

func (s *Session) MarkSaving() {
	s.mu.Lock()
	s.save.Saving = true
	s.mu.Unlock()
}

func (s *Session) MarkSaved(at time.Time, version int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save.Saving = false
	s.save.LastSaved = &at
	s.save.LastError = ""
	s.page.Version = version
	s.page.UpdatedAt = at
}

func (s *Session) MarkSaveFailed(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save.Saving = false
	if err != nil {
		s.save.LastError = err.Error()
	}
}

func (s *Session) saveStatusLocked() domain.SaveStatus {
	out := s.save
	if s.save.LastSaved != nil {
		t := *s.save.LastSaved
		out.LastSaved = &t
	}
	return out
}

// ─────────────────────────────────────────────────────────────
// Mutation plumbing
// ─────────────────────────────────────────────────────────────

// mutate runs fn under the session lock. fn returns nil when the call is a
// no-op, and must leave the tree untouched when it returns an error.
// Otherwise the result is snapshotted and published.
func (s *Session) mutate(fn func() (*Mutation, error)) error {
	s.mu.Lock()
	m, err := fn()
	if err != nil || m == nil {
		s.mu.Unlock()
		return err
	}
	s.hist.Record(s.page.Sections, m.Action)
	s.remoteSinceSnapshot = 0
	out := s.finishLocked(*m)
	obs := s.observersLocked()
	s.mu.Unlock()

	s.publish(out, obs)
	return nil
}

func (s *Session) finishLocked(m Mutation) Mutation {
	m.PageID = s.page.ID
	m.At = time.Now()
	return m
}

func (s *Session) observersLocked() []func(Mutation) {
	if len(s.observers) == 0 {
		return nil
	}
	ids := lo.Keys(s.observers)
	slices.Sort(ids) // registration order
	out := make([]func(Mutation), len(ids))
	for i, id := range ids {
		out[i] = s.observers[id]
	}
	return out
}

func (s *Session) publish(m Mutation, obs []func(Mutation)) {
	if s.emitter != nil {
		s.emitter.Emit(context.Background(), EventSectionsChanged, m)
	}
	for _, fn := range obs {
		fn(m)
	}
}

func (s *Session) sectionLocked(id string) *domain.Section {
	idx := domain.SectionIndex(s.page.Sections, id)
	if idx < 0 {
		return nil
	}
	return &s.page.Sections[idx]
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		log.Printf("[EDITOR] encode mutation payload: %v", err)
		return nil
	}
	return b
}
