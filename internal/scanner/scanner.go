package scanner

import (
	"context"
	"fmt"

	"whatsnewgen/internal/domain"
)

// Request carries all parameters required to execute a scan.
type Request struct {
	// Releases restricts extraction to these release identifiers. The PDF
	// scanner defaults to the most recent release it discovers when empty;
	// the HTML scanner emits nothing when empty.
	Releases []string
}

// Wants reports whether a release identifier is in the requested set.
func (r Request) Wants(release string) bool {
	for _, want := range r.Releases {
		if want == release {
			return true
		}
	}
	return false
}

// Scanner captures a single document-source strategy (HTML notes page,
// PDF release input, ...).
type Scanner interface {
	Name() string
	Scan(ctx context.Context, req Request) ([]domain.Entry, error)
}

// Registry keeps a mapping from scanner names to their implementations.
type Registry struct {
	scanners map[string]Scanner
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{scanners: map[string]Scanner{}}
}

// Register adds or replaces a scanner implementation.
func (r *Registry) Register(s Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[s.Name()] = s
}

// Resolve returns a scanner by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if s, ok := r.scanners[name]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("scanner %s is not registered", name)
}
