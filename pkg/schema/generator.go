package schema

import (
	"context"
	"log/slog"
	"time"

	"github.com/toolbridge/sdk-mcp/pkg/catalog"
)

const defaultEnrichTimeout = 10 * time.Second

// Enricher produces an additive patch for a structural schema. Implemented
// by pkg/enrich; absence or failure never blocks schema generation.
type Enricher interface {
	Enrich(ctx context.Context, s *ToolSchema) (*Patch, error)
}

// Generator derives tool schemas for a whole catalog.
type Generator struct {
	enricher Enricher
	timeout  time.Duration
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithEnricher enables optional schema enrichment.
func WithEnricher(e Enricher) GeneratorOption {
	return func(g *Generator) { g.enricher = e }
}

// WithEnrichTimeout bounds each enrichment call.
func WithEnrichTimeout(d time.Duration) GeneratorOption {
	return func(g *Generator) { g.timeout = d }
}

// NewGenerator creates a Generator.
func NewGenerator(opts ...GeneratorOption) *Generator {
	g := &Generator{timeout: defaultEnrichTimeout}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds one ToolSchema per catalog descriptor. Enrichment failures
// fall back to the unenriched schema and are logged, never surfaced.
func (g *Generator) Generate(ctx context.Context, cat *catalog.Catalog) map[string]*ToolSchema {
	schemas := make(map[string]*ToolSchema, cat.Len())
	for _, d := range cat.All() {
		s := FromDescriptor(d)
		if g.enricher != nil {
			g.enrich(ctx, s)
		}
		schemas[d.Name] = s
	}
	return schemas
}

func (g *Generator) enrich(ctx context.Context, s *ToolSchema) {
	ectx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	patch, err := g.enricher.Enrich(ectx, s)
	if err != nil {
		slog.Debug("schema enrichment failed, using structural schema", "tool", s.Name, "err", err)
		return
	}
	s.Merge(patch)
}
