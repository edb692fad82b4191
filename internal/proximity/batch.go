package proximity

import (
	"context"
	"fmt"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Neighbors pairs a postal code with every code within the batch radius,
// nearest first. The list includes the code itself.
type Neighbors struct {
	Code  string
	Codes []string
}

type neighborJob struct {
	pos  int
	code string
}

// AllNeighbors computes the neighbor list of every record in the reference
// table. workers <= 0 picks a default based on the CPU count.
func (s *Service) AllNeighbors(ctx context.Context, radiusMiles float64, workers int) (map[string][]string, error) {
	if err := s.validateRadius(radiusMiles); err != nil {
		return nil, err
	}
	table, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = runtime.NumCPU() * 4
	}

	g, ctx := errgroup.WithContext(ctx)
	jobs := make(chan neighborJob, workers*2)
	results := make(chan Neighbors, workers*2)

	g.Go(func() error {
		defer close(jobs)
		for pos := 0; pos < table.Len(); pos++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			select {
			case jobs <- neighborJob{pos: pos, code: table.At(pos).Code}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	workerGroup, wctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		workerGroup.Go(func() error {
			for job := range jobs {
				matches, _ := table.Within(table.At(job.pos).Point(), radiusMiles)
				codes := make([]string, len(matches))
				for j, m := range matches {
					codes[j] = table.At(m.Pos).Code
				}
				select {
				case results <- Neighbors{Code: job.code, Codes: codes}:
				case <-wctx.Done():
					return wctx.Err()
				}
			}
			return nil
		})
	}
	g.Go(func() error {
		defer close(results)
		return workerGroup.Wait()
	})

	out := make(map[string][]string, table.Len())
	for res := range results {
		out[res.Code] = res.Codes
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("computing neighbors: %w", err)
	}

	s.logger.Info("computed neighbor lists",
		zap.Int("codes", len(out)),
		zap.Float64("radius_miles", radiusMiles),
		zap.Int("workers", workers))
	return out, nil
}
