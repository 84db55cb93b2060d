package parsing

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps format tags to parser capabilities. Supporting a new receipt
// format means registering an entry here; no content sniffing, no tag
// switches elsewhere.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser
}

func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register binds a parser to a format tag. Registering the same tag twice is
// a programming error.
func (r *Registry) Register(formatTag string, parser Parser) error {
	if formatTag == "" {
		return fmt.Errorf("format tag is required")
	}
	if parser == nil {
		return fmt.Errorf("parser is required for %q", formatTag)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.parsers[formatTag]; exists {
		return fmt.Errorf("parser already registered for %q", formatTag)
	}
	r.parsers[formatTag] = parser
	return nil
}

// Lookup resolves the parser for a format tag. An unknown tag is a fatal
// parse error: retrying will not make the format supported.
func (r *Registry) Lookup(formatTag string) (Parser, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	parser, ok := r.parsers[formatTag]
	if !ok {
		return nil, Fatal(nil, fmt.Sprintf("unsupported format tag %q", formatTag))
	}
	return parser, nil
}

// Tags returns the registered format tags, sorted.
func (r *Registry) Tags() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tags := make([]string, 0, len(r.parsers))
	for tag := range r.parsers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
