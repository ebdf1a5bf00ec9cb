package preferences

import (
	"strings"
	"sync"
)

// Source resolves a setting by its dotted id, e.g. "local-history.fileLimit".
type Source interface {
	Lookup(id string) (any, bool)
}

// Notifier is implemented by sources that can report changed setting ids.
// The returned function releases the subscription.
type Notifier interface {
	Subscribe(fn func(ids []string)) (cancel func())
}

// lookupNested resolves id in a decoded document. Keys may be stored flat
// ("local-history.fileLimit"), nested ([local-history] fileLimit) or mixed.
func lookupNested(m map[string]any, id string) (any, bool) {
	if v, ok := m[id]; ok {
		return v, true
	}
	for i := strings.Index(id, "."); i >= 0; {
		if sub, ok := asMap(m[id[:i]]); ok {
			if v, ok := lookupNested(sub, id[i+1:]); ok {
				return v, true
			}
		}
		next := strings.Index(id[i+1:], ".")
		if next < 0 {
			break
		}
		i += next + 1
	}
	return nil, false
}

func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = val
		}
		return out, true
	}
	return nil, false
}

// subscribers is the callback registry shared by the notifying sources.
type subscribers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(ids []string)
}

func (s *subscribers) add(fn func(ids []string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(ids []string))
	}
	id := s.next
	s.next++
	s.fns[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.fns, id)
	}
}

func (s *subscribers) notify(ids []string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	fns := make([]func([]string), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(ids)
	}
}

// MapSource is an in-memory Source. Set notifies subscribers.
type MapSource struct {
	mu     sync.RWMutex
	values map[string]any
	subs   subscribers
}

// NewMapSource copies values into a new MapSource.
func NewMapSource(values map[string]any) *MapSource {
	m := &MapSource{values: make(map[string]any, len(values))}
	for k, v := range values {
		m.values[k] = v
	}
	return m
}

func (m *MapSource) Lookup(id string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lookupNested(m.values, id)
}

// Set stores value under id and notifies subscribers.
func (m *MapSource) Set(id string, value any) {
	m.mu.Lock()
	m.values[id] = value
	m.mu.Unlock()
	m.subs.notify([]string{id})
}

// Delete removes id and notifies subscribers.
func (m *MapSource) Delete(id string) {
	m.mu.Lock()
	delete(m.values, id)
	m.mu.Unlock()
	m.subs.notify([]string{id})
}

func (m *MapSource) Subscribe(fn func(ids []string)) func() {
	return m.subs.add(fn)
}

// Layered consults its sources from last to first, so later sources override
// earlier ones.
type Layered struct {
	sources []Source
}

// NewLayered builds a Layered source. Nil sources are ignored.
func NewLayered(sources ...Source) *Layered {
	l := &Layered{}
	for _, s := range sources {
		if s != nil {
			l.sources = append(l.sources, s)
		}
	}
	return l
}

func (l *Layered) Lookup(id string) (any, bool) {
	for i := len(l.sources) - 1; i >= 0; i-- {
		if v, ok := l.sources[i].Lookup(id); ok {
			return v, true
		}
	}
	return nil, false
}

// Subscribe forwards notifications from every layer that supports them.
func (l *Layered) Subscribe(fn func(ids []string)) func() {
	var cancels []func()
	for _, s := range l.sources {
		if n, ok := s.(Notifier); ok {
			cancels = append(cancels, n.Subscribe(fn))
		}
	}
	return func() {
		for _, c := range cancels {
			c()
		}
	}
}

var (
	_ Notifier = (*MapSource)(nil)
	_ Notifier = (*Layered)(nil)
)
