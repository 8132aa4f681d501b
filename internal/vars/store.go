// internal/vars/store.go

// Package vars holds values captured by extract and evaluate steps and
// substitutes ${name} references when plans are handed to an executor.
package vars

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
)

// refPattern matches ${name} and ${name:-fallback}. Names are restricted to
// identifier characters; the fallback may be any text without a closing
// brace.
var refPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Store is a goroutine-safe variable table for one run.
type Store struct {
	mu     sync.RWMutex
	values map[string]any
}

// NewStore creates an empty store, optionally seeded from initial.
func NewStore(initial map[string]any) *Store {
	values := make(map[string]any, len(initial))
	for k, v := range initial {
		values[k] = v
	}
	return &Store{values: values}
}

// Get returns the value for name and whether it is set.
func (s *Store) Get(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[name]
	return v, ok
}

// Set stores a value under name, overwriting any previous value.
func (s *Store) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[name] = value
}

// Merge copies all entries of m into the store.
func (s *Store) Merge(m map[string]any) {
	if len(m) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, v := range m {
		s.values[k] = v
	}
}

// Snapshot returns a copy of the current table. The copy is safe to embed
// into prompts while the run keeps mutating the store.
func (s *Store) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

// Render substitutes variable references throughout v, descending into maps
// and slices and returning a new value; v itself is never mutated. Unset
// references without a fallback are left verbatim so the executor surface
// still shows what the plan asked for.
func (s *Store) Render(v any) any {
	switch val := v.(type) {
	case string:
		return s.renderString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = s.Render(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = s.Render(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = s.renderString(item)
		}
		return out
	default:
		return v
	}
}

func (s *Store) renderString(in string) string {
	if !strings.Contains(in, "${") {
		return in
	}
	return refPattern.ReplaceAllStringFunc(in, func(match string) string {
		groups := refPattern.FindStringSubmatch(match)
		name := groups[1]
		if value, ok := s.Get(name); ok {
			return stringify(value)
		}
		// groups[2] is the fallback; distinguish ${x} from ${x:-}.
		if strings.Contains(match, ":-") {
			return groups[2]
		}
		return match
	})
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
