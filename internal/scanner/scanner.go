package scanner

import (
	"context"
	"fmt"

	"HealthIngest/internal/domain"
)

// SubPage is a linked sub-topic document crawled after the primary one.
type SubPage struct {
	Name string
	URL  string
}

// Mode selects how a keyword section is read.
type Mode string

const (
	ModeBullets   Mode = "bullets"
	ModeParagraph Mode = "paragraph"
)

// Rule extracts one keyword-addressed section (symptoms, causes...).
type Rule struct {
	Section  string
	Mode     Mode
	Keywords []string
}

// Request carries all parameters required to extract one source.
type Request struct {
	SourceName   string
	URL          string
	SubPages     []SubPage
	PrimaryRules []Rule
	SubPageRules []Rule
	Options      map[string]string
}

// Scanner captures a single extraction strategy.
type Scanner interface {
	Name() string
	Extract(ctx context.Context, req Request) (domain.Extraction, error)
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
func (r *Registry) Register(scanner Scanner) {
	if r.scanners == nil {
		r.scanners = map[string]Scanner{}
	}
	r.scanners[scanner.Name()] = scanner
}

// Resolve returns a scanner by name. An unknown name is a configuration
// mistake and matches domain.ErrContractViolation.
func (r *Registry) Resolve(name string) (Scanner, error) {
	if scanner, ok := r.scanners[name]; ok {
		return scanner, nil
	}
	return nil, fmt.Errorf("%w: scanner %s is not registered", domain.ErrContractViolation, name)
}
