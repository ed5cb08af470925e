package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pagebuilder/internal/domain"
	"pagebuilder/internal/editor"
)

// Events emitted by PageService.
const (
	EventPageSaved     = "pagebuilder:page-saved"
	EventPagePublished = "pagebuilder:page-published"
)

// SaveResult reports the outcome of a save to the caller. Failures are
// carried here rather than as errors so the editor can show them.
type SaveResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Version int    `json:"version,omitempty"`
}

// TemplateSource looks up section templates.
type TemplateSource interface {
	Template(id string) (domain.Template, bool)
}

// PageService loads pages into editing sessions and persists them.
type PageService struct {
	pages        domain.PageStore
	versions     domain.VersionStore
	templates    TemplateSource
	emitter      EventEmitter
	historyDepth int
	guard        saveGuard
}

// NewPageService creates the service. templates may be nil.
func NewPageService(pages domain.PageStore, versions domain.VersionStore, templates TemplateSource, emitter EventEmitter, historyDepth int) *PageService {
	if emitter == nil {
		emitter = LogEmitter{}
	}
	return &PageService{
		pages:        pages,
		versions:     versions,
		templates:    templates,
		emitter:      emitter,
		historyDepth: historyDepth,
	}
}

// CreatePage stores a new draft page, seeded from a template when
// templateID is set.
func (s *PageService) CreatePage(ctx context.Context, userID, title, templateID string) (*domain.Page, error) {
	p := &domain.Page{
		Title:    title,
		UserID:   userID,
		Status:   domain.PageStatusDraft,
		Sections: []domain.Section{},
	}
	if templateID != "" {
		tpl, err := s.template(templateID)
		if err != nil {
			return nil, err
		}
		p.TemplateID = tpl.ID
		// A scratch session assigns ids and order the same way editing does.
		scratch := editor.NewSession(&domain.Page{}, editor.Options{})
		if err := scratch.ReplaceSections(freshSections(tpl.Sections), "apply template"); err != nil {
			return nil, fmt.Errorf("apply template %s: %w", templateID, err)
		}
		p.Sections = scratch.Sections()
	}
	if err := s.pages.CreatePage(ctx, p); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	log.Printf("[SERVICE] created page %s for %s", p.ID, userID)
	return p, nil
}

func (s *PageService) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	return s.pages.GetPage(ctx, id)
}

func (s *PageService) ListPages(ctx context.Context, userID string, opts domain.ListOptions) ([]domain.Page, error) {
	return s.pages.ListPagesByUser(ctx, userID, opts)
}

// DeletePage removes a page and its published versions.
func (s *PageService) DeletePage(ctx context.Context, id string) error {
	if err := s.pages.DeletePage(ctx, id); err != nil {
		return err
	}
	if s.versions != nil {
		if err := s.versions.DeleteVersionsByPage(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// OpenSession loads the page into a fresh editing session whose history
// baseline is the stored tree.
func (s *PageService) OpenSession(ctx context.Context, pageID string) (*editor.Session, error) {
	p, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("open page %s: %w", pageID, err)
	}
	return editor.NewSession(p, editor.Options{
		HistoryDepth: s.historyDepth,
		Emitter:      s.emitter,
	}), nil
}

// Save writes the session's page over the stored one. Concurrent saves of
// the same page are refused; the last completed save wins.
func (s *PageService) Save(ctx context.Context, sess *editor.Session) SaveResult {
	pageID := sess.PageID()
	if !s.guard.TryLock(pageID) {
		return SaveResult{Success: false, Message: "a save of this page is already in progress"}
	}
	defer s.guard.Unlock(pageID)

	sess.MarkSaving()
	stored, err := s.writePage(ctx, sess, func(stored, local *domain.Page) {
		stored.Title = local.Title
		stored.Sections = local.Sections
	})
	if err != nil {
		sess.MarkSaveFailed(err)
		log.Printf("[SERVICE] save page %s: %v", pageID, err)
		res := SaveResult{Success: false, Message: saveMessage(err)}
		s.emitter.Emit(ctx, EventPageSaved, res)
		return res
	}

	sess.MarkSaved(stored.UpdatedAt, stored.Version)
	res := SaveResult{Success: true, Message: "saved", Version: stored.Version}
	s.emitter.Emit(ctx, EventPageSaved, res)
	return res
}

// writePage applies the session's page onto the latest stored copy.
func (s *PageService) writePage(ctx context.Context, sess *editor.Session, apply func(stored, local *domain.Page)) (*domain.Page, error) {
	stored, err := s.pages.GetPage(ctx, sess.PageID())
	if err != nil {
		return nil, err
	}
	apply(stored, sess.Page())
	if err := s.pages.UpdatePage(ctx, stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func saveMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "page no longer exists"
	case errors.Is(err, domain.ErrVersionConflict):
		return "page was changed by someone else while saving, try again"
	default:
		return err.Error()
	}
}

// WaitSaves blocks until running saves finish or ctx is done.
func (s *PageService) WaitSaves(ctx context.Context) {
	s.guard.WaitAll(ctx)
}

// ─────────────────────────────────────────────────────────────
// Versions
// ─────────────────────────────────────────────────────────────

// PublishVersion snapshots the session's sections as the next version and
// marks the page published.
func (s *PageService) PublishVersion(ctx context.Context, sess *editor.Session, userID, message string) (*domain.PageVersion, error) {
	if s.versions == nil {
		return nil, fmt.Errorf("publish page %s: versions are not configured", sess.PageID())
	}
	pageID := sess.PageID()
	if !s.guard.TryLock(pageID) {
		return nil, fmt.Errorf("publish page %s: a save is in progress", pageID)
	}
	defer s.guard.Unlock(pageID)

	existing, err := s.versions.ListVersions(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("publish page %s: %w", pageID, err)
	}
	next := 1
	if len(existing) > 0 {
		next = existing[0].Version + 1
	}

	now := time.Now().UTC()
	stored, err := s.writePage(ctx, sess, func(stored, local *domain.Page) {
		stored.Title = local.Title
		stored.Sections = local.Sections
		stored.Status = domain.PageStatusPublished
		stored.PublishedAt = &now
	})
	if err != nil {
		return nil, fmt.Errorf("publish page %s: %w", pageID, err)
	}

	v := &domain.PageVersion{
		PageID:    pageID,
		Version:   next,
		Sections:  stored.Sections,
		CreatedBy: userID,
		CreatedAt: now,
		Message:   message,
	}
	if err := s.versions.CreateVersion(ctx, v); err != nil {
		return nil, fmt.Errorf("publish page %s: %w", pageID, err)
	}

	sess.MarkSaved(stored.UpdatedAt, stored.Version)
	sess.SetPageMeta(stored.Version, domain.PageStatusPublished, stored.UpdatedAt)
	s.emitter.Emit(ctx, EventPagePublished, v)
	log.Printf("[SERVICE] published page %s as version %d", pageID, next)
	return v, nil
}

func (s *PageService) ListVersions(ctx context.Context, pageID string) ([]domain.PageVersion, error) {
	if s.versions == nil {
		return nil, nil
	}
	return s.versions.ListVersions(ctx, pageID)
}

// RestoreVersion replaces the session's tree with a published version as
// one undoable step.
func (s *PageService) RestoreVersion(ctx context.Context, sess *editor.Session, versionID string) error {
	if s.versions == nil {
		return fmt.Errorf("restore version %s: versions are not configured", versionID)
	}
	v, err := s.versions.GetVersion(ctx, versionID)
	if err != nil {
		return fmt.Errorf("restore version: %w", err)
	}
	if v.PageID != sess.PageID() {
		return fmt.Errorf("restore version %s: belongs to page %s: %w", versionID, v.PageID, domain.ErrNotFound)
	}
	return sess.ReplaceSections(v.Sections, fmt.Sprintf("restore version %d", v.Version))
}

// ─────────────────────────────────────────────────────────────
// Templates
// ─────────────────────────────────────────────────────────────

// ApplyTemplate puts a template's sections into the session as one
// undoable step, replacing the tree or appending to it.
func (s *PageService) ApplyTemplate(sess *editor.Session, templateID string, replace bool) error {
	tpl, err := s.template(templateID)
	if err != nil {
		return err
	}
	sections := freshSections(tpl.Sections)
	if !replace {
		sections = append(sess.Sections(), sections...)
	}
	return sess.ReplaceSections(sections, "apply template "+tpl.Name)
}

func (s *PageService) template(id string) (domain.Template, error) {
	if s.templates == nil {
		return domain.Template{}, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	tpl, ok := s.templates.Template(id)
	if !ok {
		return domain.Template{}, fmt.Errorf("template %s: %w", id, domain.ErrNotFound)
	}
	return tpl, nil
}

// freshSections copies template sections with their ids cleared so the
// session assigns new ones.
func freshSections(sections []domain.Section) []domain.Section {
	out := domain.CloneSections(sections)
	for i := range out {
		out[i].ID = ""
		for j := range out[i].Elements {
			out[i].Elements[j].ID = ""
		}
	}
	return out
}
