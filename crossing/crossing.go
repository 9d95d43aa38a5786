// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package crossing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCapacity is the number of actors the reference rope can hold.
const DefaultCapacity = 5

var (
	// ErrTimeout is returned when a timeout occurs while waiting to enter a crossing.
	// This error does not apply when using a context.  ctx.Err() is returned in that case.
	ErrTimeout = errors.New("the crossing could not be entered within the timeout")

	// ErrClosed is returned when a closeable crossing has been closed.
	ErrClosed = errors.New("the crossing has been closed")

	// errCanceled is the internal signal that a context's Done channel fired.  It is
	// never returned to callers.
	errCanceled = errors.New("canceled")
)

// State is a consistent snapshot of a crossing.
type State struct {
	// Direction is the direction currently permitted on the crossing.
	Direction Direction

	// Occupancy is the number of actors currently on the crossing.
	Occupancy int

	// Capacity is the maximum simultaneous occupancy.
	Capacity int

	// Waiting is the number of actors suspended while trying to enter, indexed by Direction.
	Waiting [2]int

	// Flips is the number of times the permitted direction has changed.
	Flips uint64
}

// Interface represents a single-lane crossing shared by actors travelling in two directions.
// Actors travelling opposite directions are never on the crossing together, and no more than
// the capacity may be on it at once.  When any enter method is successful, Leave *must* be
// called with the same direction once the actor is done crossing.
//
// Admission follows these rules:
//
//   - An actor arriving at an empty crossing that nobody is waiting to use in the active
//     direction claims the crossing for its own direction.
//   - While actors wait for the other direction, newcomers do not join the group already on
//     the crossing.  They wait instead, even if there is room.
//   - When the last actor leaves, the crossing turns to the other direction.  It keeps its
//     direction only when actors are waiting for that direction alone.
//   - When waiters give up, an empty crossing is handed to whichever direction still has
//     actors waiting, and actors that yielded to the departed waiters rejoin the group on
//     the crossing if there is room.
type Interface interface {
	// Enter blocks until the caller may occupy the crossing in the given direction.  This method
	// only fails for a closeable crossing that has been closed.
	Enter(Direction) error

	// EnterWait attempts to enter before the given time channel becomes signaled.  If the
	// time channel gets signaled first, ErrTimeout is returned.
	EnterWait(Direction, <-chan time.Time) error

	// EnterCtx attempts to enter before the given context is canceled.  If the context ends
	// first, this method returns ctx.Err().
	EnterCtx(context.Context, Direction) error

	// TryEnter attempts to enter without waiting, returning true if the caller is now on the crossing.
	TryEnter(Direction) bool

	// Leave records that an actor which entered in the given direction has finished crossing.
	// When the crossing empties, the permitted direction passes to the actors waiting for the
	// other direction.
	//
	// Calling Leave without a matching successful enter, or with a different direction,
	// is a programming error and panics.
	Leave(Direction)

	// State returns a snapshot of this crossing.
	State() State
}

// Closeable represents a crossing that can be closed.  Once closed, a crossing cannot be reopened.
//
// Any goroutines waiting to enter when a Closeable is closed will receive ErrClosed from the blocked
// enter method.  Subsequent attempts to enter will also result in ErrClosed.  Leave continues to work
// so that actors already on the crossing can get off.
type Closeable interface {
	io.Closer
	Interface

	// Closed returns a channel that is closed when this crossing has been closed.
	Closed() <-chan struct{}
}

// New constructs a crossing with the given capacity.  A nonpositive capacity will result in a panic.
func New(capacity int, o ...Option) Interface {
	return newCrossing(capacity, nil, o...)
}

// NewCloseable constructs a crossing which honors close-once semantics.
func NewCloseable(capacity int, o ...Option) Closeable {
	return &closeable{
		crossing: newCrossing(capacity, make(chan struct{}), o...),
	}
}

func newCrossing(capacity int, closed chan struct{}, o ...Option) *crossing {
	if capacity < 1 {
		panic("The capacity must be positive")
	}

	c := &crossing{
		capacity: capacity,
		current:  A,
		wake:     [2]chan struct{}{make(chan struct{}), make(chan struct{})},
		closed:   closed,
	}

	WithLogger(nil)(c)
	WithMeasures(nil)(c)
	for _, f := range o {
		f(c)
	}

	c.measures.Occupancy.Set(0.0)
	for _, d := range Directions {
		c.measureWaiting(d)
	}

	return c
}

// crossing is the internal Interface implementation.  A single lock guards every field
// below it, including the wake channels.
type crossing struct {
	lock sync.Mutex

	capacity  int
	current   Direction
	occupancy int
	waiting   [2]int
	flips     uint64

	// wake[d] is closed to broadcast to the actors waiting for d, then replaced.
	wake [2]chan struct{}

	// closed is nil unless this crossing is closeable.
	closed   chan struct{}
	isClosed bool

	logger   *zap.Logger
	measures *Measures
}

func (c *crossing) Enter(d Direction) error {
	return c.acquire(d, nil, nil)
}

func (c *crossing) EnterWait(d Direction, t <-chan time.Time) error {
	return c.acquire(d, nil, t)
}

func (c *crossing) EnterCtx(ctx context.Context, d Direction) error {
	err := c.acquire(d, ctx.Done(), nil)
	if err == errCanceled {
		return ctx.Err()
	}

	return err
}

func (c *crossing) TryEnter(d Direction) bool {
	mustBeValid(d)

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.isClosed || !c.admitArrival(d) {
		return false
	}

	c.occupy(d)
	return true
}

func (c *crossing) Leave(d Direction) {
	mustBeValid(d)

	c.lock.Lock()
	defer c.lock.Unlock()

	if c.occupancy == 0 {
		panic("crossing: Leave called on an empty crossing")
	}

	if d != c.current {
		panic(fmt.Sprintf("crossing: Leave called for direction %s while %s is active", d, c.current))
	}

	c.occupancy--
	c.measures.Occupancy.Set(float64(c.occupancy))
	if c.occupancy == 0 {
		c.drain()
	}
}

func (c *crossing) State() State {
	c.lock.Lock()
	defer c.lock.Unlock()

	return State{
		Direction: c.current,
		Occupancy: c.occupancy,
		Capacity:  c.capacity,
		Waiting:   c.waiting,
		Flips:     c.flips,
	}
}

// acquire implements the enter methods.  A nil done or expired channel never fires.
func (c *crossing) acquire(d Direction, done <-chan struct{}, expired <-chan time.Time) error {
	mustBeValid(d)

	c.lock.Lock()
	if c.isClosed {
		c.lock.Unlock()
		c.failed(d, ErrClosed)
		return ErrClosed
	}

	if c.admitArrival(d) {
		c.occupy(d)
		c.lock.Unlock()
		return nil
	}

	c.waiting[d]++
	c.measureWaiting(d)

	for {
		wake := c.wake[d]
		c.lock.Unlock()

		var err error
		select {
		case <-wake:
		case <-done:
			err = errCanceled
		case <-expired:
			err = ErrTimeout
		case <-c.closed:
			err = ErrClosed
		}

		c.lock.Lock()
		if err == nil && c.isClosed {
			err = ErrClosed
		}

		if err != nil {
			c.waiting[d]--
			c.measureWaiting(d)
			c.abandoned()
			c.lock.Unlock()

			c.failed(d, err)
			return err
		}

		// a wakeup is only a hint: the broadcast may have admitted others up to capacity first
		if c.admitWaiter(d) {
			c.waiting[d]--
			c.measureWaiting(d)
			c.occupy(d)
			c.lock.Unlock()
			return nil
		}
	}
}

// admitArrival is the admission predicate for an actor that is not yet waiting.
// The lock must be held.
func (c *crossing) admitArrival(d Direction) bool {
	if c.occupancy == 0 && c.current != d && c.waiting[c.current] == 0 {
		// idle claim: the rope is empty and nobody is queued for the active direction
		c.flip(d)
	}

	if c.current != d || c.occupancy >= c.capacity {
		return false
	}

	// yield: while the other direction waits, newcomers stop joining the group on the rope
	return c.occupancy == 0 || c.waiting[d.Opposite()] == 0
}

// admitWaiter is the admission predicate for an actor that was woken.  The lock must be held.
func (c *crossing) admitWaiter(d Direction) bool {
	return c.current == d && c.occupancy < c.capacity
}

func (c *crossing) occupy(d Direction) {
	c.occupancy++
	c.measures.Occupancy.Set(float64(c.occupancy))
	c.measures.Admissions.With(DirectionLabel, d.String()).Add(1.0)
}

// drain hands the empty rope to the other direction.  The drained direction keeps it
// only when it alone has actors waiting.  The lock must be held.
func (c *crossing) drain() {
	next := c.current.Opposite()
	if c.waiting[next] == 0 && c.waiting[c.current] > 0 {
		next = c.current
	}

	if next != c.current {
		c.flip(next)
	}

	c.broadcast(next)
}

// abandoned runs after a waiter gives up.  If that left an empty rope with nobody queued
// for the active direction, the other direction's waiters get the rope.  If it left nobody
// queued for the other direction while the rope is in use, actors that yielded to it are
// woken to join the group on the rope.  The lock must be held.
func (c *crossing) abandoned() {
	next := c.current.Opposite()
	if c.occupancy > 0 {
		if c.waiting[next] == 0 {
			c.broadcast(c.current)
		}

		return
	}

	if c.waiting[c.current] == 0 && c.waiting[next] > 0 {
		c.flip(next)
		c.broadcast(next)
	}
}

func (c *crossing) flip(next Direction) {
	previous := c.current
	c.current = next
	c.flips++
	c.measures.Flips.With(DirectionLabel, next.String()).Add(1.0)

	c.logger.Debug(
		"direction flipped",
		zap.Stringer("from", previous),
		zap.Stringer("to", next),
		zap.Int("waiting", c.waiting[next]),
	)
}

// broadcast wakes every actor waiting for d.  The lock must be held.
func (c *crossing) broadcast(d Direction) {
	if c.waiting[d] > 0 {
		close(c.wake[d])
		c.wake[d] = make(chan struct{})
	}
}

func (c *crossing) measureWaiting(d Direction) {
	c.measures.Waiting.With(DirectionLabel, d.String()).Set(float64(c.waiting[d]))
}

func (c *crossing) failed(d Direction, err error) {
	var reason string
	switch err {
	case ErrTimeout:
		reason = TimeoutReason
	case ErrClosed:
		reason = ClosedReason
	default:
		reason = CanceledReason
	}

	c.measures.EnterFailures.With(DirectionLabel, d.String(), ReasonLabel, reason).Add(1.0)
	c.logger.Debug("enter abandoned", zap.Stringer("direction", d), zap.String("reason", reason))
}

func (c *crossing) close() error {
	c.lock.Lock()
	defer c.lock.Unlock()

	if c.isClosed {
		return ErrClosed
	}

	c.isClosed = true
	close(c.closed)
	c.logger.Debug(
		"crossing closed",
		zap.Int("occupancy", c.occupancy),
		zap.Int("waitingA", c.waiting[A]),
		zap.Int("waitingB", c.waiting[B]),
	)

	return nil
}

func mustBeValid(d Direction) {
	if !d.Valid() {
		panic(fmt.Sprintf("crossing: invalid direction %d", int(d)))
	}
}

// closeable exposes the close operations of a crossing built with a closed channel.
type closeable struct {
	*crossing
}

func (cc *closeable) Close() error {
	return cc.crossing.close()
}

func (cc *closeable) Closed() <-chan struct{} {
	return cc.crossing.closed
}
