package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"

	"HealthIngest/internal/domain"
	"HealthIngest/internal/scanner"
)

const (
	defaultUserAgent      = "Mozilla/5.0 (compatible; HealthIngest/1.0)"
	defaultMinIntroLength = 40
	defaultFetchTimeout   = 20 * time.Second

	generalTopic   = "general"
	unknownTopic   = "unknown"
	sectionIntro   = "intro"
	sectionDetails = "description"
)

// ConditionScanner extracts a condition page: intro, overview table, keyword
// sections, and the same keyword sections from every linked sub-topic page.
type ConditionScanner struct {
	client         *http.Client
	userAgent      string
	minIntroLength int
	logger         *slog.Logger
	now            func() time.Time
}

var _ scanner.Scanner = (*ConditionScanner)(nil)

// NewConditionScanner wires an HTTP client; a nil client gets a 20s timeout.
func NewConditionScanner(client *http.Client, log *slog.Logger) *ConditionScanner {
	if client == nil {
		client = &http.Client{Timeout: defaultFetchTimeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &ConditionScanner{
		client:         client,
		userAgent:      defaultUserAgent,
		minIntroLength: defaultMinIntroLength,
		logger:         log,
		now:            time.Now,
	}
}

// WithUserAgent overrides the User-Agent header sent with every fetch.
func (c *ConditionScanner) WithUserAgent(ua string) *ConditionScanner {
	if ua != "" {
		c.userAgent = ua
	}
	return c
}

// WithMinIntroLength overrides the intro paragraph threshold.
func (c *ConditionScanner) WithMinIntroLength(n int) *ConditionScanner {
	if n > 0 {
		c.minIntroLength = n
	}
	return c
}

// Name identifies the strategy inside the registry.
func (c *ConditionScanner) Name() string {
	return "condition-page"
}

// Extract fetches the primary page and every sub-page. A primary failure is
// returned as an error; failing sub-pages are logged and skipped.
func (c *ConditionScanner) Extract(ctx context.Context, req scanner.Request) (domain.Extraction, error) {
	if req.URL == "" {
		return domain.Extraction{}, fmt.Errorf("%w: source %s has no url", domain.ErrContractViolation, req.SourceName)
	}

	doc, err := c.fetchDocument(ctx, req.URL)
	if err != nil {
		return domain.Extraction{}, fmt.Errorf("primary document: %w", err)
	}

	out := domain.Extraction{
		Source:     req.URL,
		CapturedAt: c.now().UTC(),
	}

	if intro := extractIntro(doc, c.minIntroLength); intro != "" {
		out.Sections = append(out.Sections, domain.RawSection{
			Kind:      domain.KindIntro,
			Topic:     generalTopic,
			Section:   sectionIntro,
			Text:      intro,
			OriginURL: req.URL,
		})
	}

	for _, row := range extractTableRows(doc) {
		label := row.Label
		if label == "" {
			label = unknownTopic
		}
		out.Sections = append(out.Sections, domain.RawSection{
			Kind:      domain.KindTableRow,
			Topic:     label,
			Section:   sectionDetails,
			Text:      row.Description,
			OriginURL: req.URL,
		})
	}

	out.Sections = append(out.Sections, applyRules(doc, req.PrimaryRules, generalTopic, req.URL, domain.KindIntro)...)

	for _, sub := range req.SubPages {
		subDoc, err := c.fetchDocument(ctx, sub.URL)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.Extraction{}, fmt.Errorf("%w: %w", domain.ErrFetchFailure, ctxErr)
			}
			c.logger.Warn("skip sub-page", "topic", sub.Name, "url", sub.URL, "error", err)
			continue
		}
		sections := applyRules(subDoc, req.SubPageRules, sub.Name, sub.URL, domain.KindLinkedPage)
		c.logger.Debug("sub-page extracted", "topic", sub.Name, "sections", len(sections))
		out.Sections = append(out.Sections, sections...)
	}

	return out, nil
}

// applyRules runs keyword rules against one document. Paragraph sections take
// proseKind; list items are always bullet items.
func applyRules(doc *goquery.Document, rules []scanner.Rule, topic, origin string, proseKind domain.SectionKind) []domain.RawSection {
	var sections []domain.RawSection
	for _, rule := range rules {
		switch rule.Mode {
		case scanner.ModeParagraph:
			if text := extractParagraph(doc, rule.Keywords); text != "" {
				sections = append(sections, domain.RawSection{
					Kind:      proseKind,
					Topic:     topic,
					Section:   rule.Section,
					Text:      text,
					OriginURL: origin,
				})
			}
		default:
			for _, item := range extractBullets(doc, rule.Keywords) {
				sections = append(sections, domain.RawSection{
					Kind:      domain.KindBulletItem,
					Topic:     topic,
					Section:   rule.Section,
					Text:      item,
					OriginURL: origin,
				})
			}
		}
	}
	return sections
}

func (c *ConditionScanner) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrFetchFailure, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %w", domain.ErrFetchFailure, pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: %s returned %s", domain.ErrFetchFailure, pageURL, resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrParseFailure, pageURL, err)
	}

	return doc, nil
}
