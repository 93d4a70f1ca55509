package frontend

import (
	"log/slog"
	"os"
	"path/filepath"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/phobologic/fanout/internal/ast"
)

// headerItem is one recorded event of a cached header: a delivered batch or
// an #include to follow again on replay.
type headerItem struct {
	batch   ast.Batch
	include string
	angled  bool
}

type header struct {
	items []headerItem
}

// HeaderCache holds lowered system headers across units. Cached
// declarations are shared and must be treated as read-only.
type HeaderCache struct {
	lru *lru.Cache[string, *header]
}

// NewHeaderCache returns a cache holding up to size headers, or nil when
// size is not positive.
func NewHeaderCache(size int) *HeaderCache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, *header](size)
	if err != nil {
		return nil
	}
	return &HeaderCache{lru: c}
}

// Len returns the number of cached headers.
func (c *HeaderCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

func (c *HeaderCache) get(key string) (*header, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(key)
}

func (c *HeaderCache) add(key string, h *header) {
	if c != nil {
		c.lru.Add(key, h)
	}
}

func isFile(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}

// resolveInclude finds name on the search path. Quoted includes look in the
// includer's directory first. system is true for a match under a system
// include directory.
func (fe *Frontend) resolveInclude(fromDir, name string, angled bool) (path string, system, ok bool) {
	if filepath.IsAbs(name) {
		return name, false, isFile(name)
	}
	if !angled {
		if p := filepath.Join(fromDir, name); isFile(p) {
			return p, false, true
		}
	}
	for _, dir := range fe.opts.IncludeDirs {
		if p := filepath.Join(dir, name); isFile(p) {
			return p, false, true
		}
	}
	for _, dir := range fe.opts.SystemIncludeDirs {
		if p := filepath.Join(dir, name); isFile(p) {
			return p, true, true
		}
	}
	return "", false, false
}

// include follows one #include directive. Unresolvable headers are not an
// error: their declarations are simply unknown to the unit.
func (u *unitParser) include(fromDir string, from ast.Provenance, depth int, name string, angled bool) error {
	log := u.fe.log
	if depth >= u.fe.opts.MaxIncludeDepth {
		log.Debug("include depth exceeded", slog.String("header", name), slog.Int("depth", depth))
		u.stats.MissingHeaders++
		return nil
	}
	path, system, ok := u.fe.resolveInclude(fromDir, name, angled)
	if !ok {
		log.Debug("header not found", slog.String("header", name), slog.String("from", fromDir))
		u.stats.MissingHeaders++
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if u.seen[abs] {
		return nil
	}
	u.seen[abs] = true
	u.stats.Headers++

	prov := ast.Local
	if system || from == ast.System {
		prov = ast.System
	}
	return u.header(abs, prov, depth+1)
}

func (u *unitParser) header(path string, prov ast.Provenance, depth int) error {
	cache := u.fe.opts.Cache
	key := u.lang.Name + ":" + path
	if prov == ast.System {
		if h, ok := cache.get(key); ok {
			u.stats.CachedHeaders++
			return u.replay(h, filepath.Dir(path), prov, depth)
		}
	}

	src, err := os.ReadFile(path)
	if err != nil {
		u.fe.log.Debug("header unreadable", slog.String("header", path), slog.Any("error", err))
		u.stats.MissingHeaders++
		return nil
	}
	var rec *header
	if prov == ast.System && cache != nil {
		rec = &header{}
	}
	if err := u.parse(path, src, prov, depth, rec); err != nil {
		return err
	}
	if rec != nil {
		cache.add(key, rec)
	}
	return nil
}

// replay delivers a cached header as if it had just been parsed.
func (u *unitParser) replay(h *header, dir string, prov ast.Provenance, depth int) error {
	for _, it := range h.items {
		if err := u.ctx.Err(); err != nil {
			return err
		}
		if it.batch == nil {
			if err := u.include(dir, prov, depth, it.include, it.angled); err != nil {
				return err
			}
			continue
		}
		for _, d := range it.batch {
			u.table.declare(d)
		}
		if err := u.consumer.HandleBatch(it.batch); err != nil {
			return err
		}
	}
	return nil
}
