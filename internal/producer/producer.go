// Package producer drives a Filter with concurrent signal producers, each
// emitting a fixed number of signals separated by random pauses.
package producer

import (
	"context"
	"errors"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/GuilhermeSoares009/signal-filter/internal/ratelimit"
)

type Config struct {
	Producers int
	// Signals is the number of signals each producer emits.
	Signals int
	// MaxPause bounds the random pause after each signal; zero means no pause.
	MaxPause time.Duration
	// Seed makes pauses reproducible; zero picks a time-based seed.
	Seed int64
}

type ProducerReport struct {
	ID     string
	Passed int64
	Total  int64
}

type Report struct {
	Producers []ProducerReport
	Passed    int64
	Total     int64
	Elapsed   time.Duration
}

var ErrNoProducers = errors.New("at least one producer is required")

// Run starts cfg.Producers producers against filter and waits for all of them.
// Cancelling ctx stops producers between signals; the partial report is
// returned together with ctx's error.
func Run(ctx context.Context, filter ratelimit.Filter, cfg Config, logger *zap.Logger) (Report, error) {
	if cfg.Producers <= 0 {
		return Report{}, ErrNoProducers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	reports := make([]ProducerReport, cfg.Producers)
	var passed atomic.Int64
	began := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for i := range reports {
		reports[i].ID = uuid.NewString()
		report := &reports[i]
		rng := rand.New(rand.NewSource(seed + int64(i)))
		g.Go(func() error {
			return produce(gctx, filter, cfg, rng, report, &passed)
		})
	}
	err := g.Wait()

	report := Report{
		Producers: reports,
		Passed:    passed.Load(),
		Elapsed:   time.Since(began),
	}
	for _, p := range reports {
		report.Total += p.Total
	}
	logger.Info("producers finished",
		zap.Int("producers", cfg.Producers),
		zap.Int64("passed", report.Passed),
		zap.Int64("total", report.Total),
		zap.Duration("elapsed", report.Elapsed),
	)
	return report, err
}

func produce(ctx context.Context, filter ratelimit.Filter, cfg Config, rng *rand.Rand, report *ProducerReport, passed *atomic.Int64) error {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for j := 0; j < cfg.Signals; j++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		report.Total++
		if filter.IsSignalAllowed() {
			report.Passed++
			passed.Add(1)
		}

		if cfg.MaxPause <= 0 {
			continue
		}
		pause := time.Duration(rng.Int63n(int64(cfg.MaxPause)))
		if timer == nil {
			timer = time.NewTimer(pause)
		} else {
			timer.Reset(pause)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}
