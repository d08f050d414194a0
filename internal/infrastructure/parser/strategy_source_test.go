package parser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HealthIngest/internal/config"
	"HealthIngest/internal/domain"
	"HealthIngest/internal/logging"
	"HealthIngest/internal/scanner"
)

func TestStrategySourceUnknownExtractor(t *testing.T) {
	t.Parallel()

	reg := scanner.NewRegistry()
	reg.Register(NewConditionScanner(nil, logging.Discard()))
	src := NewStrategySource(reg, []config.SourceConfig{
		{Name: "nhs", Extractor: "condition-page", URL: "http://localhost/"},
		{Name: "typo", Extractor: "conditon-page", URL: "http://localhost/"},
	}, logging.Discard())

	err := src.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrContractViolation)
	assert.ErrorContains(t, err, "source typo")
	assert.NotContains(t, err.Error(), "source nhs")

	_, err = src.Extract(context.Background(), "typo")
	assert.ErrorIs(t, err, domain.ErrContractViolation)
}

func TestStrategySourceWithoutRegistry(t *testing.T) {
	t.Parallel()

	src := NewStrategySource(nil, []config.SourceConfig{{Name: "nhs", Extractor: "condition-page"}}, nil)
	assert.ErrorIs(t, src.Validate(), domain.ErrContractViolation)

	_, err := src.Extract(context.Background(), "nhs")
	assert.ErrorIs(t, err, domain.ErrContractViolation)
	assert.Equal(t, []string{"nhs"}, src.Sources())
}
