// Package catalog holds the run-wide lists that workers share: the
// repository list and the private/public prefix lists.
//
// All lists are ordered, de-duplicated and append-only. Readers get a
// snapshot; an append made after a snapshot was taken is visible to the
// next snapshot only.
package catalog

import (
	"strings"
	"sync"
)

// List is an ordered, de-duplicated, append-only string list that is
// safe for concurrent use.
type List struct {
	mu    sync.RWMutex
	items []string
	seen  map[string]struct{}
	norm  func(string) string
}

// NewList returns a list holding items, normalized by norm (may be nil).
func NewList(norm func(string) string, items ...string) *List {
	l := &List{seen: make(map[string]struct{}), norm: norm}
	for _, it := range items {
		l.Add(it)
	}
	return l
}

// Add appends item unless it is empty or already present. It reports
// whether the list grew.
func (l *List) Add(item string) bool {
	if l.norm != nil {
		item = l.norm(item)
	}
	if item == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.seen[item]; ok {
		return false
	}
	l.seen[item] = struct{}{}
	l.items = append(l.items, item)
	return true
}

// Contains reports whether item (after normalization) is present.
func (l *List) Contains(item string) bool {
	if l.norm != nil {
		item = l.norm(item)
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.seen[item]
	return ok
}

// Snapshot returns a copy of the items in append order.
func (l *List) Snapshot() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, len(l.items))
	copy(out, l.items)
	return out
}

// Len returns the number of items.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Repositories is the list of repository base URLs, in try order.
type Repositories struct{ *List }

// NewRepositories returns a repository list. URLs are stored with a
// single trailing slash.
func NewRepositories(urls ...string) *Repositories {
	return &Repositories{NewList(NormalizeRepository, urls...)}
}

// NormalizeRepository trims whitespace and ensures one trailing slash.
func NormalizeRepository(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	return strings.TrimRight(u, "/") + "/"
}

// Prefixes is a list of class path prefixes.
type Prefixes struct{ *List }

// NewPrefixes returns a prefix list.
func NewPrefixes(prefixes ...string) *Prefixes {
	return &Prefixes{NewList(strings.TrimSpace, prefixes...)}
}

// Match returns the first prefix that path starts with. An empty path
// never matches.
func (p *Prefixes) Match(path string) (string, bool) {
	if path == "" {
		return "", false
	}
	for _, prefix := range p.Snapshot() {
		if strings.HasPrefix(path, prefix) {
			return prefix, true
		}
	}
	return "", false
}
