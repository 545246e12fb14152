package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rktik/cortex/internal/domain"
	"github.com/rktik/cortex/internal/logger"
	"github.com/rktik/cortex/internal/repository"
)

// SweepService runs the promotion check over movement mindspaces with a
// worker pool.
type SweepService struct {
	thoughtRepo  *repository.ThoughtRepository
	identityRepo *repository.IdentityRepository
	promotion    *PromotionService
	logger       *logger.Logger
	workers      int
	batchSize    int
}

// SweepConfig holds configuration for the sweep service
type SweepConfig struct {
	Workers   int
	BatchSize int
}

// NewSweepService creates a new sweep service
func NewSweepService(
	thoughtRepo *repository.ThoughtRepository,
	identityRepo *repository.IdentityRepository,
	promotion *PromotionService,
	log *logger.Logger,
	cfg *SweepConfig,
) *SweepService {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	batchSize := cfg.BatchSize
	if batchSize < 1 {
		batchSize = 50
	}
	return &SweepService{
		thoughtRepo:  thoughtRepo,
		identityRepo: identityRepo,
		promotion:    promotion,
		logger:       log,
		workers:      workers,
		batchSize:    batchSize,
	}
}

// log returns a logger from context if available, otherwise returns the default logger
func (s *SweepService) log(ctx context.Context) *logger.Logger {
	if l := logger.FromContext(ctx); l != nil {
		return l
	}
	return s.logger
}

// SweepStats holds statistics for a sweep run
type SweepStats struct {
	Movements int64
	Checked   int64
	Promoted  int64
	Failed    int64
	StartTime time.Time
	EndTime   time.Time
}

type sweepItem struct {
	movement *domain.Identity
	thought  domain.Thought
}

// Run checks every movement's mindspace for thoughts due promotion.
func (s *SweepService) Run(ctx context.Context) (*SweepStats, error) {
	movements, err := s.identityRepo.ListMovements(ctx)
	if err != nil {
		return nil, err
	}
	return s.sweep(ctx, movements), nil
}

// RunMovement checks a single movement's mindspace.
func (s *SweepService) RunMovement(ctx context.Context, movement *domain.Identity) (*SweepStats, error) {
	return s.sweep(ctx, []domain.Identity{*movement}), nil
}

func (s *SweepService) sweep(ctx context.Context, movements []domain.Identity) *SweepStats {
	stats := &SweepStats{
		Movements: int64(len(movements)),
		StartTime: time.Now(),
	}

	s.log(ctx).WithFields(logger.Fields{
		"movements": len(movements),
		"workers":   s.workers,
	}).Info("Starting promotion sweep")

	// Tag everything below, including promotion checks, as sweep work
	ctx = s.log(ctx).WithField(logger.FieldComponent, "sweep").WithContext(ctx)

	itemsChan := make(chan sweepItem, s.workers*2)

	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, itemsChan, stats)
		}()
	}

	// Feed candidates per movement
	for i := range movements {
		if ctx.Err() != nil {
			break
		}
		movement := &movements[i]

		candidates, err := s.thoughtRepo.PromotionCandidates(ctx, movement.MindspaceID, s.batchSize)
		if err != nil {
			atomic.AddInt64(&stats.Failed, 1)
			s.log(ctx).WithError(err).WithField(logger.FieldMovementID, movement.ID).
				Error("Failed to fetch promotion candidates")
			continue
		}

		for _, thought := range candidates {
			select {
			case itemsChan <- sweepItem{movement: movement, thought: thought}:
			case <-ctx.Done():
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	close(itemsChan)
	wg.Wait()

	stats.EndTime = time.Now()

	s.log(ctx).WithFields(logger.Fields{
		"movements":            stats.Movements,
		"checked":              stats.Checked,
		"promoted":             stats.Promoted,
		"failed":               stats.Failed,
		logger.FieldDurationMs: stats.EndTime.Sub(stats.StartTime).Milliseconds(),
	}).Info("Promotion sweep completed")

	return stats
}

func (s *SweepService) worker(ctx context.Context, items <-chan sweepItem, stats *SweepStats) {
	for item := range items {
		select {
		case <-ctx.Done():
			return
		default:
		}

		atomic.AddInt64(&stats.Checked, 1)

		clone, err := s.promotion.PromotionCheck(ctx, &item.thought, item.movement)
		if err != nil {
			atomic.AddInt64(&stats.Failed, 1)
			s.log(ctx).WithFields(logger.Fields{
				logger.FieldThoughtID:  item.thought.ID,
				logger.FieldMovementID: item.movement.ID,
			}).WithError(err).Error("Failed to check promotion")
			continue
		}
		if clone != nil {
			atomic.AddInt64(&stats.Promoted, 1)
		}
	}
}
