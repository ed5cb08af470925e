// Package template holds the library of section templates a page can be
// started from or extended with.
package template

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

//go:embed builtin/*.json
var builtinFS embed.FS

const reloadDelay = 200 * time.Millisecond

// Library serves templates built into the binary plus those found in a
// directory. A directory template replaces a built-in one with the same id.
type Library struct {
	dir string

	mu        sync.RWMutex
	templates map[string]domain.Template
	onReload  func(ids []string)

	watcher *fsnotify.Watcher
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewLibrary loads the built-in templates and, when dir is set, every
// *.json file in it.
func NewLibrary(dir string) (*Library, error) {
	l := &Library{dir: dir}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads all templates. On error the previous set is kept.
func (l *Library) Reload() error {
	templates := make(map[string]domain.Template)
	if err := loadFS(builtinFS, "builtin", templates); err != nil {
		return fmt.Errorf("load built-in templates: %w", err)
	}
	if l.dir != "" {
		if _, err := os.Stat(l.dir); err == nil {
			if err := loadFS(os.DirFS(l.dir), ".", templates); err != nil {
				return fmt.Errorf("load templates from %s: %w", l.dir, err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("stat template dir: %w", err)
		}
	}

	l.mu.Lock()
	l.templates = templates
	fn := l.onReload
	l.mu.Unlock()

	if fn != nil {
		fn(l.IDs())
	}
	return nil
}

func loadFS(fsys fs.FS, dir string, into map[string]domain.Template) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := fs.ReadFile(fsys, pathJoin(dir, e.Name()))
		if err != nil {
			return err
		}
		tpl, err := Parse(data)
		if err != nil {
			return fmt.Errorf("%s: %w", e.Name(), err)
		}
		if tpl.ID == "" {
			tpl.ID = strings.TrimSuffix(e.Name(), ".json")
		}
		into[tpl.ID] = tpl
	}
	return nil
}

func pathJoin(dir, name string) string {
	if dir == "." {
		return name
	}
	return dir + "/" + name
}

// Parse decodes one template and normalizes the order of its sections
// and elements.
func Parse(data []byte) (domain.Template, error) {
	var tpl domain.Template
	if err := json.Unmarshal(data, &tpl); err != nil {
		return domain.Template{}, fmt.Errorf("decode template: %w", err)
	}
	if tpl.Sections == nil {
		tpl.Sections = []domain.Section{}
	}
	domain.ReindexSections(tpl.Sections)
	for i := range tpl.Sections {
		if tpl.Sections[i].Elements == nil {
			tpl.Sections[i].Elements = []domain.Element{}
		}
		domain.ReindexElements(tpl.Sections[i].Elements)
	}
	if err := domain.ValidateSections(tpl.Sections); err != nil {
		return domain.Template{}, fmt.Errorf("template %s: %w", tpl.ID, err)
	}
	return tpl, nil
}

// Template returns a deep copy of the template with the given id.
func (l *Library) Template(id string) (domain.Template, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tpl, ok := l.templates[id]
	if !ok {
		return domain.Template{}, false
	}
	return cloneTemplate(tpl), true
}

// List returns the templates of a category sorted by name, or all
// templates when category is empty.
func (l *Library) List(category domain.TemplateCategory) []domain.Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := lo.FilterMap(lo.Values(l.templates), func(t domain.Template, _ int) (domain.Template, bool) {
		return cloneTemplate(t), category == "" || t.Category == category
	})
	slices.SortFunc(out, func(a, b domain.Template) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// IDs returns every template id, sorted.
func (l *Library) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := lo.Keys(l.templates)
	slices.Sort(ids)
	return ids
}

func cloneTemplate(t domain.Template) domain.Template {
	t.Sections = domain.CloneSections(t.Sections)
	t.Tags = slices.Clone(t.Tags)
	return t
}

// ─────────────────────────────────────────────────────────────
// Live reload
// ─────────────────────────────────────────────────────────────

// OnReload registers a callback receiving the template ids after every
// successful reload.
func (l *Library) OnReload(fn func(ids []string)) {
	l.mu.Lock()
	l.onReload = fn
	l.mu.Unlock()
}

// Watch reloads the library whenever a template file in the directory
// changes. Bursts of events are coalesced.
func (l *Library) Watch(ctx context.Context) error {
	if l.dir == "" {
		return nil
	}
	if err := os.MkdirAll(l.dir, 0755); err != nil {
		return fmt.Errorf("create template dir: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(l.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	l.watcher = watcher
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.watchLoop(watchCtx)

	log.Printf("[TEMPLATES] watching %s", l.dir)
	return nil
}

func (l *Library) watchLoop(ctx context.Context) {
	defer close(l.done)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".json" {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(reloadDelay, func() {
				if err := l.Reload(); err != nil {
					log.Printf("[TEMPLATES] reload: %v", err)
					return
				}
				log.Printf("[TEMPLATES] reloaded after change to %s", filepath.Base(event.Name))
			})
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[TEMPLATES] watcher error: %v", err)
		}
	}
}

// Close stops watching.
func (l *Library) Close() error {
	if l.watcher == nil {
		return nil
	}
	l.cancel()
	err := l.watcher.Close()
	<-l.done
	l.watcher = nil
	return err
}
