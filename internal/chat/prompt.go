package chat

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ecocampus/ecocampus-server/internal/util"
)

//go:embed prompt.tmpl
var defaultPrompt string

const reloadDelay = 250 * time.Millisecond

// PromptData is the live context given to the assistant.
type PromptData struct {
	UserName   string
	Points     int
	Course     string
	Events     []string
	StoreItems []string
	TopLeaders []string
}

// Prompts renders the system prompt. When backed by a file, edits to the
// file are picked up without a restart.
type Prompts struct {
	mu   sync.RWMutex
	tmpl *template.Template

	path     string
	watcher  *fsnotify.Watcher
	debounce *util.Debouncer
	done     chan struct{}
	wg       sync.WaitGroup
	logger   *slog.Logger
}

// NewPrompts parses the template at path, or the built-in one when path is empty,
// and starts watching the file for changes.
func NewPrompts(path string, logger *slog.Logger) (*Prompts, error) {
	p := &Prompts{path: path, done: make(chan struct{}), logger: logger}

	if path == "" {
		tmpl, err := parsePrompt(defaultPrompt)
		if err != nil {
			return nil, err
		}
		p.tmpl = tmpl
		return p, nil
	}

	if err := p.reload(); err != nil {
		return nil, err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create prompt watcher: %w", err)
	}
	// Editors replace files on save, so watch the directory.
	if err := w.Add(filepath.Dir(path)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("watch prompt dir: %w", err)
	}
	p.watcher = w
	p.debounce = util.NewDebouncer(reloadDelay)

	p.wg.Go(p.watch)
	return p, nil
}

// Render executes the template.
func (p *Prompts) Render(data PromptData) (string, error) {
	p.mu.RLock()
	tmpl := p.tmpl
	p.mu.RUnlock()

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return buf.String(), nil
}

// Shutdown stops the watcher.
func (p *Prompts) Shutdown() error {
	if p.watcher == nil {
		return nil
	}
	close(p.done)
	err := p.watcher.Close()
	p.wg.Wait()
	p.debounce.Stop()
	return err
}

func (p *Prompts) watch() {
	target := filepath.Clean(p.path)
	for {
		select {
		case <-p.done:
			return
		case evt, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != target || evt.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			p.debounce.Call(func() {
				if err := p.reload(); err != nil {
					p.logger.Warn("prompt reload failed, keeping previous template", "path", p.path, "error", err)
					return
				}
				p.logger.Info("prompt template reloaded", "path", p.path)
			})
		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Warn("prompt watcher error", "error", err)
		}
	}
}

func (p *Prompts) reload() error {
	raw, err := os.ReadFile(p.path) //#nosec G304 -- operator supplied path
	if err != nil {
		return fmt.Errorf("read prompt template: %w", err)
	}
	tmpl, err := parsePrompt(string(raw))
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.tmpl = tmpl
	p.mu.Unlock()
	return nil
}

func parsePrompt(text string) (*template.Template, error) {
	tmpl, err := template.New("prompt").
		Option("missingkey=zero").
		Funcs(template.FuncMap{"inc": func(i int) int { return i + 1 }}).
		Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return tmpl, nil
}
