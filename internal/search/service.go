package search

import (
	"context"
)

// Service is the consumer-facing entry point: it searches the first of a
// set of workspace roots.
type Service struct {
	pipeline *Pipeline
	roots    []string
}

// NewService creates a service searching roots with p. Only the first root
// is searched; with no roots every search fails with ErrNoWorkspace.
func NewService(p *Pipeline, roots ...string) *Service {
	return &Service{pipeline: p, roots: roots}
}

// Root returns the directory searches run in, or "" if there is none.
func (s *Service) Root() string {
	if len(s.roots) == 0 {
		return ""
	}
	return s.roots[0]
}

// Search returns up to limit records matching term. A non-positive limit
// means DefaultLimit.
func (s *Service) Search(ctx context.Context, term string, limit int) ([]Record, error) {
	return s.pipeline.Run(ctx, Request{Query: term, Limit: limit, RootDir: s.Root()})
}
