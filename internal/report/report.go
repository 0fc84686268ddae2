package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	texttemplate "text/template"

	"go.uber.org/zap"

	"github.com/roach88/roadrunner/internal/artifact"
	"github.com/roach88/roadrunner/internal/engine"
)

// Template file names. A templates directory may override either.
const (
	MarkdownTemplate = "report.md.tmpl"
	HTMLTemplate     = "report.html.tmpl"
)

//go:embed templates/*.tmpl
var defaults embed.FS

var funcs = map[string]any{
	"seconds": func(s float64) string { return fmt.Sprintf("%.2f", s) },
}

// data is the template context.
type data struct {
	Summary *engine.Summary
}

// template is the part of text/template and html/template a report needs.
type template interface {
	Execute(w io.Writer, data any) error
}

// Renderer writes report.md and report.html for a run.
//
// Templates come from the embedded defaults unless templatesDir holds a file
// of the same name. An override that fails to parse or execute is logged and
// the default is used instead.
type Renderer struct {
	templatesDir string
	logger       *zap.Logger
}

// NewRenderer creates a renderer. templatesDir may be empty or missing.
func NewRenderer(templatesDir string, logger *zap.Logger) *Renderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{templatesDir: templatesDir, logger: logger}
}

// Render writes both reports into the run directory.
func (r *Renderer) Render(summary *engine.Summary, paths artifact.RunPaths) error {
	md, err := r.Markdown(summary)
	if err != nil {
		return err
	}
	html, err := r.HTML(summary)
	if err != nil {
		return err
	}
	if err := artifact.WriteFile(paths.MarkdownReport(), md); err != nil {
		return err
	}
	return artifact.WriteFile(paths.HTMLReport(), html)
}

// Markdown renders the markdown report.
func (r *Renderer) Markdown(summary *engine.Summary) ([]byte, error) {
	return r.render(MarkdownTemplate, summary, func(name, text string) (template, error) {
		return texttemplate.New(name).Funcs(funcs).Parse(text)
	})
}

// HTML renders the HTML report with contextual escaping.
func (r *Renderer) HTML(summary *engine.Summary) ([]byte, error) {
	return r.render(HTMLTemplate, summary, func(name, text string) (template, error) {
		return htmltemplate.New(name).Funcs(funcs).Parse(text)
	})
}

func (r *Renderer) render(name string, summary *engine.Summary, parse func(name, text string) (template, error)) ([]byte, error) {
	ctx := data{Summary: summary}

	if text, ok, err := r.override(name); err != nil {
		r.logger.Warn("read report template", zap.String("template", name), zap.Error(err))
	} else if ok {
		out, err := execute(parse, name, text, ctx)
		if err == nil {
			return out, nil
		}
		r.logger.Warn("custom report template failed, using default",
			zap.String("template", name), zap.Error(err))
	}

	text, err := fs.ReadFile(defaults, "templates/"+name)
	if err != nil {
		return nil, fmt.Errorf("default template %s: %w", name, err)
	}
	return execute(parse, name, string(text), ctx)
}

// override returns the project's copy of a template, if any.
func (r *Renderer) override(name string) (string, bool, error) {
	if r.templatesDir == "" {
		return "", false, nil
	}
	text, err := os.ReadFile(filepath.Join(r.templatesDir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return string(text), true, nil
}

func execute(parse func(name, text string) (template, error), name, text string, ctx data) ([]byte, error) {
	tmpl, err := parse(name, text)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}
