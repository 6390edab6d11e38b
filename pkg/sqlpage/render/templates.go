package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync/atomic"
)

//go:embed builtin/*.tmpl
var builtinFS embed.FS

// ComponentTemplates holds the compiled header/item/footer partials for one
// component. A component with no item/footer partial renders its top-level
// row once via header and emits nothing for body rows — used by components
// that render fully from the top-level row alone (e.g. "debug").
type ComponentTemplates struct {
	Name   string
	Header *template.Template
	Item   *template.Template
	Footer *template.Template
}

var templateFuncs = template.FuncMap{
	"json": func(s string) []map[string]any {
		var out []map[string]any
		if s == "" {
			return out
		}
		_ = json.Unmarshal([]byte(s), &out)
		return out
	},
}

// TemplateSet is the fixed set of built-in partials plus user overrides,
// cached as an atomically-swapped copy-on-write map — an immutable snapshot
// like the analyzed-file cache, replaced wholesale when overrides reload.
type TemplateSet struct {
	components atomic.Pointer[map[string]*ComponentTemplates]
	overrideDir string
}

func NewTemplateSet(overrideDir string) (*TemplateSet, error) {
	ts := &TemplateSet{overrideDir: overrideDir}
	if err := ts.Load(); err != nil {
		return nil, err
	}
	return ts, nil
}

// Load (re)compiles the built-in partials plus any *.tmpl files found in
// overrideDir, swapping the whole map atomically.
func (ts *TemplateSet) Load() error {
	names := []string{"debug", "text", "shell", "table", "card", "alert"}
	next := make(map[string]*ComponentTemplates, len(names))

	for _, name := range names {
		ct, err := loadComponent(name, ts.overrideDir)
		if err != nil {
			return err
		}
		next[name] = ct
	}

	ts.components.Store(&next)
	return nil
}

func loadComponent(name, overrideDir string) (*ComponentTemplates, error) {
	ct := &ComponentTemplates{Name: name}
	for partial, field := range map[string]**template.Template{
		"header": &ct.Header,
		"item":   &ct.Item,
		"footer": &ct.Footer,
	} {
		text, err := partialSource(name, partial, overrideDir)
		if err != nil {
			return nil, err
		}
		if text == "" {
			continue
		}
		tmpl, err := template.New(name + "." + partial).Funcs(templateFuncs).Parse(text)
		if err != nil {
			return nil, fmt.Errorf("compile %s.%s: %w", name, partial, err)
		}
		*field = tmpl
	}
	return ct, nil
}

func partialSource(name, partial, overrideDir string) (string, error) {
	if overrideDir != "" {
		path := filepath.Join(overrideDir, name, partial+".tmpl")
		if b, err := os.ReadFile(path); err == nil {
			return string(b), nil
		}
	}
	path := "builtin/" + name + "." + partial + ".tmpl"
	b, err := builtinFS.ReadFile(path)
	if err != nil {
		return "", nil
	}
	return string(b), nil
}

// Get returns the compiled partials for name, or the debug component if name
// has no registered template (TemplateMissing is a render-time error raised
// by the caller, not here).
func (ts *TemplateSet) Get(name string) (*ComponentTemplates, bool) {
	m := ts.components.Load()
	ct, ok := (*m)[name]
	return ct, ok
}
