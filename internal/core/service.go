package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/woundcare/internal/config"
)

// Service is the entry point the transport layer uses to run dashboards.
// It owns no table data; each Run works on the caller's inputs only.
type Service struct {
	limiter *RunLimiter
}

// NewService creates a Service whose concurrency limits come from cfg.
func NewService(cfg *config.Config) *Service {
	return &Service{
		limiter: NewRunLimiter(cfg.Upload.MaxConcurrent, cfg.Upload.MaxWaitTime),
	}
}

// Run waits for a run slot and executes the pipeline.
func (s *Service) Run(ctx context.Context, in Inputs) (*Result, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire run slot: %w", err)
	}
	defer s.limiter.Release()

	return Run(ctx, in)
}

// Columns prepares the three inputs and returns their column names, which
// are the choices a column picker offers.
func (s *Service) Columns(census, roster, schedule *Table) (map[Source][]string, error) {
	p, err := Prepare(census, roster, schedule)
	if err != nil {
		return nil, err
	}
	return map[Source][]string{
		SourceCensus:   p.Census.Columns,
		SourceRoster:   p.Roster.Columns,
		SourceSchedule: p.Schedule.Columns,
	}, nil
}

// LimiterStatus reports current run concurrency.
func (s *Service) LimiterStatus() RunLimiterStatus {
	return s.limiter.Status()
}

// WaitForRuns blocks until in-flight runs finish or ctx is done.
func (s *Service) WaitForRuns(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
