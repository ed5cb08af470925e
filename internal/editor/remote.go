package editor

import (
	"encoding/json"
	"fmt"
	"time"

	"pagebuilder/internal/domain"
)

// Payloads carried in Mutation.Data and domain.Change.Data.

type AddSectionData struct {
	Section domain.Section `json:"section"`
	Index   *int           `json:"index,omitempty"`
}

type AddElementData struct {
	Element domain.Element `json:"element"`
	Index   *int           `json:"index,omitempty"`
}

type MoveData struct {
	From int `json:"from"`
	To   int `json:"to"`
}

type ReplaceData struct {
	Sections []domain.Section `json:"sections"`
}

// RemoteEntry records a change applied on behalf of another participant.
// Remote changes are never undoable locally.
type RemoteEntry struct {
	Change    domain.Change `json:"change"`
	AppliedAt time.Time     `json:"appliedAt"`
	// PastLen is the undo depth at the time the change landed. Undoing
	// below it reverts past the remote change.
	PastLen int `json:"pastLen"`
}

const maxRemoteLog = 500

// ApplyRemote applies a change received from another participant directly
// to the tree, bypassing history (last writer wins). Unknown targets are a
// no-op. Replaying an update is idempotent; replaying an add fails with
// domain.ErrDuplicateID.
func (s *Session) ApplyRemote(c domain.Change) error {
	s.mu.Lock()
	applied, err := s.applyRemoteLocked(c)
	if err != nil || !applied {
		s.mu.Unlock()
		if err != nil {
			return fmt.Errorf("apply remote %s %s %s: %w", c.Kind, c.Target, c.TargetID, err)
		}
		return nil
	}
	s.pruneSelectionLocked()

	s.remoteLog = append(s.remoteLog, RemoteEntry{
		Change:    c,
		AppliedAt: time.Now(),
		PastLen:   s.hist.PastLen(),
	})
	if len(s.remoteLog) > maxRemoteLog {
		s.remoteLog = s.remoteLog[len(s.remoteLog)-maxRemoteLog:]
	}
	s.remoteSinceSnapshot++

	m := s.finishLocked(Mutation{
		Action:    "remote " + string(c.Kind) + " " + string(c.Target),
		Kind:      c.Kind,
		Target:    c.Target,
		TargetID:  c.TargetID,
		SectionID: c.SectionID,
		Data:      c.Data,
		Remote:    true,
		UserID:    c.UserID,
	})
	obs := s.observersLocked()
	s.mu.Unlock()

	s.publish(m, obs)
	return nil
}

// RemoteLog returns the remote changes applied to this session, oldest
// first.
func (s *Session) RemoteLog() []RemoteEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RemoteEntry(nil), s.remoteLog...)
}

// RemoteChangesSinceSnapshot counts remote changes applied after the most
// recent local snapshot. An undo now would discard them.
func (s *Session) RemoteChangesSinceSnapshot() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteSinceSnapshot
}

func (s *Session) applyRemoteLocked(c domain.Change) (bool, error) {
	switch c.Target {
	case domain.TargetSection:
		return s.applyRemoteSection(c)
	case domain.TargetElement:
		return s.applyRemoteElement(c)
	case domain.TargetPage:
		if c.Kind != domain.ChangeReplace {
			return false, fmt.Errorf("unsupported page change %q", c.Kind)
		}
		var data ReplaceData
		if err := json.Unmarshal(c.Data, &data); err != nil {
			return false, fmt.Errorf("decode replace: %w", err)
		}
		sections := data.Sections
		if sections == nil {
			sections = []domain.Section{}
		}
		if err := domain.ValidateSections(sections); err != nil {
			return false, err
		}
		s.page.Sections = sections
		return true, nil
	default:
		return false, fmt.Errorf("unknown change target %q", c.Target)
	}
}

func (s *Session) applyRemoteSection(c domain.Change) (bool, error) {
	switch c.Kind {
	case domain.ChangeAdd:
		var data AddSectionData
		if err := json.Unmarshal(c.Data, &data); err != nil {
			return false, fmt.Errorf("decode section: %w", err)
		}
		idx := len(s.page.Sections)
		if data.Index != nil && *data.Index <= idx {
			idx = *data.Index
		}
		if _, err := s.insertSectionLocked(data.Section, idx); err != nil {
			return false, err
		}
		return true, nil
	case domain.ChangeUpdate:
		sec := s.sectionLocked(c.TargetID)
		if sec == nil {
			return false, nil
		}
		var patch SectionPatch
		if err := json.Unmarshal(c.Data, &patch); err != nil {
			return false, fmt.Errorf("decode section patch: %w", err)
		}
		patch.apply(sec)
		return true, nil
	case domain.ChangeDelete:
		return s.deleteSectionLocked(c.TargetID), nil
	case domain.ChangeMove:
		var data MoveData
		if err := json.Unmarshal(c.Data, &data); err != nil {
			return false, fmt.Errorf("decode move: %w", err)
		}
		// Resolve by id so that a move racing a local edit lands on the
		// intended section.
		from := domain.SectionIndex(s.page.Sections, c.TargetID)
		if from < 0 {
			return false, nil
		}
		to := min(data.To, len(s.page.Sections)-1)
		if _, err := s.moveSectionLocked(from, to); err != nil {
			return false, err
		}
		return from != to, nil
	default:
		return false, fmt.Errorf("unknown change kind %q", c.Kind)
	}
}

func (s *Session) applyRemoteElement(c domain.Change) (bool, error) {
	sec := s.sectionLocked(c.SectionID)
	if sec == nil {
		return false, nil
	}
	switch c.Kind {
	case domain.ChangeAdd:
		var data AddElementData
		if err := json.Unmarshal(c.Data, &data); err != nil {
			return false, fmt.Errorf("decode element: %w", err)
		}
		idx := len(sec.Elements)
		if data.Index != nil && *data.Index <= idx {
			idx = *data.Index
		}
		if _, err := s.insertElementLocked(sec, data.Element, idx); err != nil {
			return false, err
		}
		return true, nil
	case domain.ChangeUpdate:
		idx := sec.ElementIndex(c.TargetID)
		if idx < 0 {
			return false, nil
		}
		var patch ElementPatch
		if err := json.Unmarshal(c.Data, &patch); err != nil {
			return false, fmt.Errorf("decode element patch: %w", err)
		}
		if err := patch.apply(&sec.Elements[idx]); err != nil {
			return false, err
		}
		return true, nil
	case domain.ChangeDelete:
		return s.deleteElementLocked(c.SectionID, c.TargetID), nil
	case domain.ChangeMove:
		var data MoveData
		if err := json.Unmarshal(c.Data, &data); err != nil {
			return false, fmt.Errorf("decode move: %w", err)
		}
		from := sec.ElementIndex(c.TargetID)
		if from < 0 {
			return false, nil
		}
		to := min(data.To, len(sec.Elements)-1)
		if _, err := moveElementLocked(sec, from, to); err != nil {
			return false, err
		}
		return from != to, nil
	default:
		return false, fmt.Errorf("unknown change kind %q", c.Kind)
	}
}
