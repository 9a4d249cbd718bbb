package reporting

import (
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

//go:embed templates/*.tmpl
var builtinTemplates embed.FS

const htmlReportTemplate = "report.html.tmpl"

type TemplateManager struct {
	templates map[string]*template.Template
	mu        sync.RWMutex
}

func NewTemplateManager() *TemplateManager {
	return &TemplateManager{
		templates: make(map[string]*template.Template),
	}
}

// NewDefaultTemplateManager preloads the built-in report templates.
func NewDefaultTemplateManager() (*TemplateManager, error) {
	tm := NewTemplateManager()
	entries, err := fs.ReadDir(builtinTemplates, "templates")
	if err != nil {
		return nil, fmt.Errorf("read builtin templates: %w", err)
	}
	for _, e := range entries {
		b, err := builtinTemplates.ReadFile("templates/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read builtin template %q: %w", e.Name(), err)
		}
		if err := tm.Register(e.Name(), string(b), templateFuncs()); err != nil {
			return nil, err
		}
	}
	return tm, nil
}

func (tm *TemplateManager) Register(name, tpl string, funcs template.FuncMap) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	t := template.New(name)
	if funcs != nil {
		t = t.Funcs(funcs)
	}
	parsed, err := t.Parse(tpl)
	if err != nil {
		return fmt.Errorf("parse %q: %w", name, err)
	}
	tm.templates[name] = parsed
	return nil
}

// LoadDir registers every .tmpl/.gohtml/.html file under dir, replacing
// built-ins of the same name.
func (tm *TemplateManager) LoadDir(dir string, funcs template.FuncMap) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(d.Name()) {
		case ".tmpl", ".gohtml", ".html":
		default:
			return nil
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %q: %w", path, err)
		}
		return tm.Register(d.Name(), string(b), funcs)
	})
}

func (tm *TemplateManager) Get(name string) (*template.Template, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	t, ok := tm.templates[name]
	return t, ok
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"sevLabel": func(s models.Severity) string { return models.ParseSeverity(string(s)).Label() },
		"sevClass": func(s models.Severity) string {
			sev := models.ParseSeverity(string(s))
			if !sev.Valid() {
				return "info"
			}
			return string(sev)
		},
		"date": func(t time.Time) string {
			if t.IsZero() {
				return "-"
			}
			return t.UTC().Format("2006-01-02 15:04 UTC")
		},
		"upper": strings.ToUpper,
	}
}
