// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package troop

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
	"github.com/xmidt-org/crossing/clock"
	"github.com/xmidt-org/crossing/crossing"
	"github.com/xmidt-org/sallust"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Report summarizes a single Run.
type Report struct {
	// ID uniquely identifies the run in logs.
	ID ksuid.KSUID

	// Crossed is the number of baboons that made it across, indexed by direction.
	Crossed [2]int

	// GaveUp is the number of baboons that ran out of patience.
	GaveUp int

	// Flips is the rope's direction change count once the run finished.
	Flips uint64

	// Elapsed is the wall time of the run, as measured by the troop's clock.
	Elapsed time.Duration
}

// Total is the number of baboons that crossed in either direction.
func (r Report) Total() int {
	return r.Crossed[crossing.A] + r.Crossed[crossing.B]
}

// Option configures a Troop.
type Option func(*Troop)

// WithLogger sets the troop's logger.  A nil logger means sallust.Default().
func WithLogger(l *zap.Logger) Option {
	return func(t *Troop) {
		if l != nil {
			t.logger = l
		} else {
			t.logger = sallust.Default()
		}
	}
}

// WithClock sets the clock used for transits, patience timers, and status ticks.
// A nil clock means the system clock.
func WithClock(c clock.Interface) Option {
	return func(t *Troop) {
		if c != nil {
			t.clock = c
		} else {
			t.clock = clock.System()
		}
	}
}

// Troop drives a number of baboon goroutines across a shared rope.
type Troop struct {
	config Config
	rope   crossing.Closeable
	logger *zap.Logger
	clock  clock.Interface
}

// New validates the configuration and creates a Troop that will cross the given rope.  The rope
// must have the configured capacity.
// The troop closes the rope if a run is canceled.
func New(c Config, rope crossing.Closeable, o ...Option) (*Troop, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if rope == nil {
		return nil, errors.New("a rope is required")
	}

	if capacity := rope.State().Capacity; capacity != c.Capacity {
		return nil, fmt.Errorf("%w: capacity %d does not match the rope's capacity %d", ErrInvalidConfig, c.Capacity, capacity)
	}

	t := &Troop{
		config: c,
		rope:   rope,
	}

	WithLogger(nil)(t)
	WithClock(nil)(t)
	for _, f := range o {
		f(t)
	}

	return t, nil
}

// baboon is the plan for a single actor, decided before any goroutine starts so that a
// given seed always produces the same troop.
type baboon struct {
	id        int
	direction crossing.Direction
	transit   time.Duration
}

func (t *Troop) plan(seed int64) []baboon {
	var (
		random  = rand.New(rand.NewSource(seed)) // #nosec G404
		baboons = make([]baboon, t.config.Baboons)
	)

	for i := range baboons {
		b := baboon{id: i}
		if n := len(t.config.Directions); n > 0 {
			b.direction = t.config.Directions[i%n]
		} else {
			b.direction = crossing.Directions[random.Intn(2)]
		}

		if t.config.MaxCrossingTime > 0 {
			b.transit = time.Duration(random.Int63n(int64(t.config.MaxCrossingTime)))
		}

		baboons[i] = b
	}

	return baboons
}

// tally accumulates a Report's counters from concurrent baboons.
type tally struct {
	lock    sync.Mutex
	crossed [2]int
	gaveUp  int
}

func (t *tally) cross(d crossing.Direction) {
	t.lock.Lock()
	t.crossed[d]++
	t.lock.Unlock()
}

func (t *tally) giveUp() {
	t.lock.Lock()
	t.gaveUp++
	t.lock.Unlock()
}

// Run spawns every baboon and waits for all of them to finish.  If ctx is canceled first, the rope
// is closed so that waiting baboons are released, baboons already on the rope finish crossing,
// and ctx.Err() is returned along with the partial report.
func (t *Troop) Run(ctx context.Context) (Report, error) {
	var (
		report = Report{ID: ksuid.New()}
		seed   = t.config.Seed
		start  = t.clock.Now()
	)

	if seed == 0 {
		seed = start.UnixNano()
	}

	logger := t.logger.With(zap.Stringer("run", report.ID))
	logger.Info(
		"troop starting",
		zap.Int("baboons", t.config.Baboons),
		zap.Int("capacity", t.config.Capacity),
		zap.Int64("seed", seed),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var background sync.WaitGroup
	background.Add(1)
	go func() {
		defer background.Done()
		<-runCtx.Done()
		if ctx.Err() != nil {
			logger.Info("troop canceled, closing the rope", zap.Error(ctx.Err()))
			_ = t.rope.Close()
		}
	}()

	if t.config.StatusInterval > 0 {
		background.Add(1)
		go func() {
			defer background.Done()
			t.status(runCtx, logger)
		}()
	}

	var (
		counts tally
		group  errgroup.Group
	)

	for _, b := range t.plan(seed) {
		b := b
		group.Go(func() error {
			return t.cross(logger, b, &counts)
		})
	}

	err := group.Wait()
	cancel()
	background.Wait()

	counts.lock.Lock()
	report.Crossed = counts.crossed
	report.GaveUp = counts.gaveUp
	counts.lock.Unlock()

	report.Flips = t.rope.State().Flips
	report.Elapsed = t.clock.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return report, ctxErr
	}

	if err != nil {
		return report, err
	}

	logger.Info(
		"all baboons have crossed the canyon",
		zap.Int("crossedA", report.Crossed[crossing.A]),
		zap.Int("crossedB", report.Crossed[crossing.B]),
		zap.Int("gaveUp", report.GaveUp),
		zap.Uint64("flips", report.Flips),
		zap.Duration("elapsed", report.Elapsed),
	)

	return report, nil
}

// cross runs a single baboon: get on the rope, swing across, get off.
func (t *Troop) cross(logger *zap.Logger, b baboon, counts *tally) error {
	logger = logger.With(zap.Int("baboon", b.id), zap.Stringer("direction", b.direction))
	logger.Debug("baboon wants to cross the canyon")

	if err := t.enter(b.direction); err != nil {
		if errors.Is(err, crossing.ErrTimeout) {
			logger.Debug("baboon ran out of patience", zap.Duration("patience", t.config.Patience))
			counts.giveUp()
			return nil
		}

		return err
	}

	logger.Debug("baboon is crossing the rope", zap.Duration("transit", b.transit))
	t.clock.Sleep(b.transit)
	t.rope.Leave(b.direction)
	counts.cross(b.direction)
	logger.Debug("baboon has crossed the rope")

	return nil
}

func (t *Troop) enter(d crossing.Direction) error {
	if t.config.Patience <= 0 {
		return t.rope.Enter(d)
	}

	timer := t.clock.NewTimer(t.config.Patience)
	defer timer.Stop()
	return t.rope.EnterWait(d, timer.C())
}

// status logs the rope's state on every tick until ctx is done.
func (t *Troop) status(ctx context.Context, logger *zap.Logger) {
	ticker := t.clock.NewTicker(t.config.StatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C():
			s := t.rope.State()
			logger.Info(
				"rope status",
				zap.Stringer("direction", s.Direction),
				zap.Int("occupancy", s.Occupancy),
				zap.Int("waitingA", s.Waiting[crossing.A]),
				zap.Int("waitingB", s.Waiting[crossing.B]),
				zap.Uint64("flips", s.Flips),
			)
		}
	}
}
