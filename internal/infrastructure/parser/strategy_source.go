package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"HealthIngest/internal/config"
	"HealthIngest/internal/domain"
	"HealthIngest/internal/ports"
	"HealthIngest/internal/scanner"
)

// StrategySource implements ContentSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  map[string]config.SourceConfig
	order    []string
	logger   *slog.Logger
}

var _ ports.ContentSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, log *slog.Logger) *StrategySource {
	s := &StrategySource{
		registry: reg,
		sources:  make(map[string]config.SourceConfig, len(sources)),
		logger:   log,
	}
	for _, src := range sources {
		if _, dup := s.sources[src.Name]; !dup {
			s.order = append(s.order, src.Name)
		}
		s.sources[src.Name] = src
	}
	return s
}

// Sources lists configured source names in configuration order.
func (s *StrategySource) Sources() []string {
	return append([]string(nil), s.order...)
}

// Validate checks that every configured source names a registered scanner.
func (s *StrategySource) Validate() error {
	if s.registry == nil {
		return fmt.Errorf("%w: scanner registry is not configured", domain.ErrContractViolation)
	}
	var errs []error
	for _, name := range s.order {
		if _, err := s.registry.Resolve(s.sources[name].Extractor); err != nil {
			errs = append(errs, fmt.Errorf("source %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Extract resolves the scanner of the named source and runs it.
func (s *StrategySource) Extract(ctx context.Context, name string) (domain.Extraction, error) {
	if s.registry == nil {
		return domain.Extraction{}, fmt.Errorf("%w: scanner registry is not configured", domain.ErrContractViolation)
	}

	src, ok := s.sources[name]
	if !ok {
		return domain.Extraction{}, fmt.Errorf("%w: source %s is not configured", domain.ErrContractViolation, name)
	}

	strategy, err := s.registry.Resolve(src.Extractor)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("source %s: %w", name, err)
	}

	s.debug("extract source", "source", name, "scanner", src.Extractor, "sub_pages", len(src.SubPages))

	extraction, err := strategy.Extract(ctx, toScannerRequest(src))
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("extract source %s: %w", name, err)
	}

	s.debug("source extracted", "source", name, "sections", len(extraction.Sections))
	return extraction, nil
}

func toScannerRequest(src config.SourceConfig) scanner.Request {
	subPages := make([]scanner.SubPage, 0, len(src.SubPages))
	for _, sp := range src.SubPages {
		subPages = append(subPages, scanner.SubPage{Name: sp.Name, URL: sp.URL})
	}
	return scanner.Request{
		SourceName:   src.Name,
		URL:          src.URL,
		SubPages:     subPages,
		PrimaryRules: toRules(src.PrimaryRules),
		SubPageRules: toRules(src.SubPageRules),
		Options:      src.Options,
	}
}

func toRules(cfg []config.RuleConfig) []scanner.Rule {
	rules := make([]scanner.Rule, 0, len(cfg))
	for _, r := range cfg {
		rules = append(rules, scanner.Rule{
			Section:  r.Section,
			Mode:     scanner.Mode(r.Mode),
			Keywords: append([]string(nil), r.Keywords...),
		})
	}
	return rules
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
