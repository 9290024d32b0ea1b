// Package web renders the server-side pages and serves the bundled static files.
package web

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"dabeat/logger"

	"github.com/fsnotify/fsnotify"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Static returns the bundled static files (img/, css/).
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}

const layoutFile = "layout.html"

// Pages lists every page template. Each is parsed together with the layout.
var Pages = []string{"auth", "home", "dashboard", "upload", "song", "song-invalid", "edit", "profile", "error"}

// Funcs 模板函数
var Funcs = template.FuncMap{
	"add": func(a, b int) int { return a + b },
	"sub": func(a, b int) int { return a - b },
	"seq": func(n int) []int {
		out := make([]int, n)
		for i := range out {
			out[i] = i + 1
		}
		return out
	},
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"join": strings.Join,
	"query": url.QueryEscape,
}

// Renderer executes page templates. With a template directory it reparses on change.
type Renderer struct {
	mu    sync.RWMutex
	pages map[string]*template.Template
	dir   string
}

// NewRenderer parses the embedded templates, or those in dir when dir is not empty.
func NewRenderer(dir string) (*Renderer, error) {
	r := &Renderer{dir: dir}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Renderer) source() fs.FS {
	if r.dir != "" {
		return os.DirFS(r.dir)
	}
	sub, err := fs.Sub(templateFS, "templates")
	if err != nil {
		panic(err)
	}
	return sub
}

func (r *Renderer) reload() error {
	src := r.source()
	pages := make(map[string]*template.Template, len(Pages))
	for _, name := range Pages {
		t, err := template.New(layoutFile).Funcs(Funcs).ParseFS(src, layoutFile, name+".html")
		if err != nil {
			return fmt.Errorf("parse template %s: %w", name, err)
		}
		pages[name] = t
	}

	r.mu.Lock()
	r.pages = pages
	r.mu.Unlock()
	return nil
}

// Render writes page name with data. Output is buffered so a failed execution writes nothing.
func (r *Renderer) Render(w io.Writer, name string, data interface{}) error {
	r.mu.RLock()
	t, ok := r.pages[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown template %q", name)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, layoutFile, data); err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	_, err := buf.WriteTo(w)
	return err
}

// Watch reparses the templates whenever a file in the template directory changes,
// until ctx is done. It is a no-op for embedded templates.
func (r *Renderer) Watch(ctx context.Context) error {
	if r.dir == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create template watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 ||
					filepath.Ext(event.Name) != ".html" {
					continue
				}
				if err := r.reload(); err != nil {
					logger.Warn("[Templates] reload failed, keeping previous set", logger.ErrorField(err))
					continue
				}
				logger.Info("[Templates] reloaded", logger.String("file", event.Name))
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("[Templates] watcher error", logger.ErrorField(err))
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

// RenderBlock executes admin-authored block content against data.
func RenderBlock(name, content string, data interface{}) (template.HTML, error) {
	t, err := template.New(name).Funcs(Funcs).Parse(content)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
