package weft

import (
	"container/list"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Loader resolves template names to compiled templates via an ordered
// search path. Compiled templates are cached by normalized name behind
// an LRU with optional TTL; with auto-reload enabled, a changed file
// modification time forces a re-parse. Every loaded template gets an
// include pre-filter bound back to this loader, so includes resolve
// through the same search path and cache.
type Loader struct {
	searchPath []string
	config     *Config

	mu    sync.RWMutex
	cache map[string]*loaderEntry
	lru   *list.List
}

type loaderEntry struct {
	key      string
	template *Template
	path     string
	mtime    time.Time
	expiry   time.Time
	element  *list.Element
}

// NewLoader creates a loader over the given search directories using
// the global configuration.
func NewLoader(searchPath ...string) *Loader {
	return NewLoaderWithConfig(GetGlobalConfig(), searchPath...)
}

// NewLoaderWithConfig creates a loader with an explicit configuration.
func NewLoaderWithConfig(config *Config, searchPath ...string) *Loader {
	config = NewConfigWithDefaults(config)
	return &Loader{
		searchPath: searchPath,
		config:     config,
		cache:      make(map[string]*loaderEntry),
		lru:        list.New(),
	}
}

// SearchPath returns the directories the loader resolves names against.
func (l *Loader) SearchPath() []string {
	return append([]string(nil), l.searchPath...)
}

func (l *Loader) maxIncludeDepth() int {
	return l.config.MaxIncludeDepth
}

// Load resolves a template name against the search path, parsing and
// caching the first hit. A relative name that escapes the search
// directories, or one that no directory contains, yields a
// NotFoundError listing the paths tried.
func (l *Loader) Load(name string) (*Template, error) {
	key := filepath.ToSlash(filepath.Clean(name))

	if tmpl, ok := l.cached(key); ok {
		return tmpl, nil
	}

	roots := l.searchPath
	if len(roots) == 0 {
		roots = []string{"."}
	}
	for _, root := range roots {
		path := filepath.Join(root, filepath.FromSlash(key))
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			continue
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		logDebug("parsing template %s", path)
		tmpl, err := NewTemplate(source, path)
		if err != nil {
			return nil, err
		}
		tmpl.preFilters = append(tmpl.preFilters, newIncludeFilter(l, tmpl))
		l.store(key, tmpl, path, info.ModTime())
		return tmpl, nil
	}
	return nil, &NotFoundError{Name: name, SearchPath: l.SearchPath()}
}

// cached returns a fresh cache hit, dropping entries that expired or
// whose source file changed under auto-reload.
func (l *Loader) cached(key string) (*Template, bool) {
	l.mu.RLock()
	entry, exists := l.cache[key]
	l.mu.RUnlock()
	if !exists {
		return nil, false
	}

	if l.config.CacheTTL > 0 && time.Now().After(entry.expiry) {
		logDebug("cache entry for %s expired", key)
		l.remove(key)
		return nil, false
	}
	if l.config.AutoReload {
		info, err := os.Stat(entry.path)
		if err != nil {
			logWarn("cached template %s is no longer readable: %v", entry.path, err)
			l.remove(key)
			return nil, false
		}
		if !info.ModTime().Equal(entry.mtime) {
			logDebug("template %s changed on disk, reloading", entry.path)
			l.remove(key)
			return nil, false
		}
	}

	l.mu.Lock()
	l.lru.MoveToFront(entry.element)
	l.mu.Unlock()
	return entry.template, true
}

func (l *Loader) store(key string, tmpl *Template, path string, mtime time.Time) {
	if l.config.CacheMaxSize == 0 {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, exists := l.cache[key]; exists {
		existing.template = tmpl
		existing.path = path
		existing.mtime = mtime
		if l.config.CacheTTL > 0 {
			existing.expiry = time.Now().Add(l.config.CacheTTL)
		}
		l.lru.MoveToFront(existing.element)
		return
	}

	if l.lru.Len() >= l.config.CacheMaxSize {
		oldest := l.lru.Back()
		if oldest != nil {
			oldEntry := oldest.Value.(*loaderEntry)
			delete(l.cache, oldEntry.key)
			l.lru.Remove(oldest)
		}
	}

	entry := &loaderEntry{
		key:      key,
		template: tmpl,
		path:     path,
		mtime:    mtime,
	}
	if l.config.CacheTTL > 0 {
		entry.expiry = time.Now().Add(l.config.CacheTTL)
	}
	entry.element = l.lru.PushFront(entry)
	l.cache[key] = entry
}

func (l *Loader) remove(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.cache[key]
	if !exists {
		return
	}
	delete(l.cache, key)
	l.lru.Remove(entry.element)
}

// Clear empties the template cache.
func (l *Loader) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cache = make(map[string]*loaderEntry)
	l.lru = list.New()
}

// CacheSize returns the current number of cached templates.
func (l *Loader) CacheSize() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.cache)
}
