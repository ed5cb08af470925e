package collab

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Sweeper periodically drops participants that stopped sending activity,
// for transports that could not deliver their disconnect.
type Sweeper struct {
	cron    *cron.Cron
	maxIdle time.Duration
	source  func() []*Overlay
	onPrune func(ids []string)
}

// NewSweeper schedules a sweep of every overlay returned by source.
// schedule is a standard five-field cron expression or a descriptor such
// as "@every 30s".
func NewSweeper(schedule string, maxIdle time.Duration, source func() []*Overlay) (*Sweeper, error) {
	s := &Sweeper{
		cron:    cron.New(),
		maxIdle: maxIdle,
		source:  source,
	}
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", schedule, err)
	}
	return s, nil
}

// OnPrune registers a callback receiving the ids removed by each sweep.
func (s *Sweeper) OnPrune(fn func(ids []string)) { s.onPrune = fn }

// Sweep prunes idle users now.
func (s *Sweeper) Sweep() {
	now := time.Now()
	var pruned []string
	for _, o := range s.source() {
		if !o.IsCollaborating() {
			continue
		}
		pruned = append(pruned, o.PruneIdle(s.maxIdle, now)...)
	}
	if len(pruned) == 0 {
		return
	}
	log.Printf("[COLLAB] pruned %d idle participant(s)", len(pruned))
	if s.onPrune != nil {
		s.onPrune(pruned)
	}
}

func (s *Sweeper) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running sweep, or ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
