// Package weft is a streaming XML template engine. It parses a
// marked-up document containing embedded directives and expressions and
// transforms it, given a data context, into an output event stream.
//
// Basic Usage:
//
//	tmpl, err := weft.NewTemplateString(`<ul xmlns:py="http://purl.org/kid/ns#">
//	  <li py:for="item in items">${item}</li>
//	</ul>`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	out, err := tmpl.Render(map[string]any{
//	    "items": []any{1, 2, 3},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(out)
//
// Template Syntax:
//
// Interpolation: ${expression} or $name, $customer.address in text and
// attribute values; a literal dollar sign is written $$.
//
// Directives are attributes in the http://purl.org/kid/ns# namespace:
// py:def, py:match, py:for, py:if, py:replace, py:content, py:attrs,
// py:strip. Several directives on one element compose in a fixed order.
//
// Templates loaded through a Loader can include one another with
// XInclude elements: <xi:include href="other.xml"/>.
package weft

import (
	"io"
	"os"
)

// Engine ties a loader, a configuration, and the parse entry points
// together. Use New() for an engine with defaults.
type Engine struct {
	config *Config
	loader *Loader
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig replaces the engine configuration.
func WithConfig(config *Config) Option {
	return func(e *Engine) {
		e.config = NewConfigWithDefaults(config)
	}
}

// WithSearchPath sets the directories templates are loaded from.
func WithSearchPath(dirs ...string) Option {
	return func(e *Engine) {
		e.loader = NewLoaderWithConfig(e.config, dirs...)
	}
}

// WithAutoReload toggles re-parsing of cached templates whose source
// changed on disk.
func WithAutoReload(enabled bool) Option {
	return func(e *Engine) {
		cfg := *e.config
		cfg.AutoReload = enabled
		e.config = &cfg
		e.loader = NewLoaderWithConfig(e.config, e.loader.searchPath...)
	}
}

// New creates an engine. Options are applied in order.
func New(opts ...Option) *Engine {
	e := &Engine{config: GetGlobalConfig()}
	e.loader = NewLoaderWithConfig(e.config)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Loader returns the engine's template loader.
func (e *Engine) Loader() *Loader {
	return e.loader
}

// Load resolves a template name through the engine's loader.
func (e *Engine) Load(name string) (*Template, error) {
	return e.loader.Load(name)
}

// Parse compiles template source read from r.
func (e *Engine) Parse(r io.Reader, filename string) (*Template, error) {
	source, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return NewTemplate(source, filename)
}

// ParseFile compiles a template directly from a file path, bypassing
// the loader's search path and cache.
func (e *Engine) ParseFile(path string) (*Template, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewTemplate(source, path)
}
