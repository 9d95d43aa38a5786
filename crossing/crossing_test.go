// SPDX-FileCopyrightText: 2025 Comcast Cable Communications Management, LLC
// SPDX-License-Identifier: Apache-2.0

package crossing

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Example() {
	var (
		c  = New(DefaultCapacity)
		wg = new(sync.WaitGroup)
	)

	for i, d := range []Direction{A, B, A, B} {
		wg.Add(1)
		go func(i int, d Direction) {
			defer wg.Done()
			c.Enter(d)
			fmt.Printf("baboon %d crossed toward %s\n", i, d)
			c.Leave(d)
		}(i, d)
	}

	wg.Wait()

	// Unordered output:
	// baboon 0 crossed toward A
	// baboon 1 crossed toward B
	// baboon 2 crossed toward A
	// baboon 3 crossed toward B
}

func ExampleNew() {
	c := New(2)
	fmt.Println(c.TryEnter(A), c.TryEnter(A), c.TryEnter(A))
	fmt.Println(c.TryEnter(B))

	c.Leave(A)
	c.Leave(A)
	fmt.Println(c.State().Direction)
	fmt.Println(c.TryEnter(B))

	// Output:
	// true true false
	// false
	// B
	// true
}

// enter spawns a goroutine that calls Enter, returning a channel that receives the result.
func enter(c Interface, d Direction) <-chan error {
	result := make(chan error, 1)
	go func() {
		result <- c.Enter(d)
	}()

	return result
}

func requireAdmitted(t *testing.T, result <-chan error) {
	t.Helper()
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(time.Second):
		require.FailNow(t, "Enter blocked unexpectedly")
	}
}

func assertBlocked(t *testing.T, result <-chan error) {
	t.Helper()
	select {
	case err := <-result:
		assert.Fail(t, "Enter returned unexpectedly", "error: %v", err)
	case <-time.After(50 * time.Millisecond):
		// passing
	}
}

func requireWaiting(t *testing.T, c Interface, d Direction, count int) {
	t.Helper()
	require.Eventually(
		t,
		func() bool { return c.State().Waiting[d] == count },
		time.Second,
		time.Millisecond,
		"expected %d actors waiting for %s", count, d,
	)
}

func fill(t *testing.T, c Interface, d Direction, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		require.True(t, c.TryEnter(d), "actor %d could not enter toward %s", i, d)
	}
}

func testNewInvalidCapacity(t *testing.T) {
	for _, c := range []int{0, -1} {
		t.Run(strconv.Itoa(c), func(t *testing.T) {
			assert.Panics(t, func() {
				New(c)
			})

			assert.Panics(t, func() {
				NewCloseable(c)
			})
		})
	}
}

func testNewValidCapacity(t *testing.T) {
	for _, capacity := range []int{1, 2, 5} {
		t.Run(strconv.Itoa(capacity), func(t *testing.T) {
			c := New(capacity)
			require.NotNil(t, c)
			assert.Equal(
				t,
				State{Direction: A, Capacity: capacity},
				c.State(),
			)
		})
	}
}

func testNewInitialDirection(t *testing.T) {
	assert := assert.New(t)
	assert.Equal(B, New(1, WithInitialDirection(B)).State().Direction)
	assert.Equal(A, New(1, WithInitialDirection(Direction(9))).State().Direction)
}

func TestNew(t *testing.T) {
	t.Run("InvalidCapacity", testNewInvalidCapacity)
	t.Run("ValidCapacity", testNewValidCapacity)
	t.Run("InitialDirection", testNewInitialDirection)
}

// capacity = 5: five actors toward A are admitted, a sixth waits until the rope drains.
func testScenarioCapacity(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
	)

	fill(t, c, A, DefaultCapacity)
	assert.Equal(DefaultCapacity, c.State().Occupancy)

	sixth := enter(c, A)
	requireWaiting(t, c, A, 1)
	assertBlocked(t, sixth)

	c.Leave(A)
	assert.Equal(DefaultCapacity-1, c.State().Occupancy)
	assertBlocked(t, sixth)

	for i := 1; i < DefaultCapacity; i++ {
		c.Leave(A)
	}

	requireAdmitted(t, sixth)
	state := c.State()
	assert.Equal(A, state.Direction)
	assert.Equal(1, state.Occupancy)
	assert.Zero(state.Waiting[A])
	assert.Zero(state.Flips)
}

// capacity = 5: an actor toward B waits on direction even though capacity remains for it.
func testScenarioHeadOn(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
	)

	fill(t, c, A, DefaultCapacity)
	b := enter(c, B)
	requireWaiting(t, c, B, 1)
	assertBlocked(t, b)
	assert.Equal(A, c.State().Direction)

	for i := 0; i < DefaultCapacity; i++ {
		c.Leave(A)
	}

	requireAdmitted(t, b)
	state := c.State()
	assert.Equal(B, state.Direction)
	assert.Equal(1, state.Occupancy)
	assert.Equal(uint64(1), state.Flips)
}

// the last actor toward A leaves and every actor waiting toward B is admitted.
func testScenarioDrainFlips(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
	)

	fill(t, c, A, 1)
	first, second := enter(c, B), enter(c, B)
	requireWaiting(t, c, B, 2)

	c.Leave(A)
	requireAdmitted(t, first)
	requireAdmitted(t, second)

	state := c.State()
	assert.Equal(B, state.Direction)
	assert.Equal(2, state.Occupancy)
	assert.Zero(state.Waiting[B])
	assert.Equal(uint64(1), state.Flips)
}

// an empty rope already permitting A admits an actor toward A immediately.
func testScenarioImmediate(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
	)

	requireAdmitted(t, enter(c, A))
	state := c.State()
	assert.Equal(A, state.Direction)
	assert.Equal(1, state.Occupancy)
	assert.Zero(state.Flips)
}

// a leave that does not empty the rope changes nothing for the actor still crossing.
func testScenarioPartialLeave(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
	)

	fill(t, c, A, 2)
	c.Leave(A)

	state := c.State()
	assert.Equal(A, state.Direction)
	assert.Equal(1, state.Occupancy)
	assert.Zero(state.Flips)

	assert.NotPanics(func() { c.Leave(A) })
}

func TestScenarios(t *testing.T) {
	t.Run("Capacity", testScenarioCapacity)
	t.Run("HeadOn", testScenarioHeadOn)
	t.Run("DrainFlips", testScenarioDrainFlips)
	t.Run("Immediate", testScenarioImmediate)
	t.Run("PartialLeave", testScenarioPartialLeave)
}

func testFlipWithNobodyWaiting(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
	)

	fill(t, c, A, 1)
	c.Leave(A)

	state := c.State()
	assert.Equal(B, state.Direction)
	assert.Equal(uint64(1), state.Flips)
}

func testFlipKeepsDirectionWhenOnlyItWaits(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(1)
	)

	fill(t, c, A, 1)
	second := enter(c, A)
	requireWaiting(t, c, A, 1)

	c.Leave(A)
	requireAdmitted(t, second)
	assert.Equal(A, c.State().Direction)
	assert.Zero(c.State().Flips)
}

func testIdleClaim(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
	)

	assert.True(c.TryEnter(B))
	state := c.State()
	assert.Equal(B, state.Direction)
	assert.Equal(uint64(1), state.Flips)

	// no claim while someone is on the rope
	assert.False(c.TryEnter(A))
}

func testYield(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
	)

	fill(t, c, A, 1)
	b := enter(c, B)
	requireWaiting(t, c, B, 1)

	// capacity remains, but newcomers toward A queue behind the waiting B
	assert.False(c.TryEnter(A))
	a := enter(c, A)
	requireWaiting(t, c, A, 1)
	assertBlocked(t, a)

	c.Leave(A)
	requireAdmitted(t, b)
	assert.Equal(B, c.State().Direction)
	assertBlocked(t, a)

	c.Leave(B)
	requireAdmitted(t, a)
	assert.Equal(A, c.State().Direction)
	assert.Equal(uint64(2), c.State().Flips)
}

func testYieldEndsWhenOtherSideGivesUp(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
		timer  = make(chan time.Time)
		b      = make(chan error, 1)
	)

	fill(t, c, A, 1)
	go func() {
		b <- c.EnterWait(B, timer)
	}()

	requireWaiting(t, c, B, 1)
	a := enter(c, A)
	requireWaiting(t, c, A, 1)
	assertBlocked(t, a)

	// nobody is left to yield to, so the waiting A joins the group on the rope
	timer <- time.Time{}
	select {
	case err := <-b:
		assert.Equal(ErrTimeout, err)
	case <-time.After(time.Second):
		require.FailNow(t, "EnterWait blocked unexpectedly")
	}

	requireAdmitted(t, a)
	state := c.State()
	assert.Equal(A, state.Direction)
	assert.Equal(2, state.Occupancy)
	assert.Equal([2]int{0, 0}, state.Waiting)
	assert.Zero(state.Flips)
}

func testCapacityTryEnter(t *testing.T) {
	c := New(2)
	fill(t, c, B, 2)
	assert.False(t, c.TryEnter(B))

	c.Leave(B)
	assert.True(t, c.TryEnter(B))
}

func testRecheckDoesNotMutate(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(2)
	)

	fill(t, c, A, 1)
	waiters := []<-chan error{enter(c, B), enter(c, B), enter(c, B)}
	requireWaiting(t, c, B, 3)

	// every B waiter is woken, only two fit and the third must wait again untouched
	c.Leave(A)
	require.Eventually(
		t,
		func() bool { return c.State().Occupancy == 2 },
		time.Second,
		time.Millisecond,
	)

	requireWaiting(t, c, B, 1)
	state := c.State()
	assert.Equal(B, state.Direction)
	assert.Equal(2, state.Occupancy)
	assert.Equal(uint64(1), state.Flips)

	c.Leave(B)
	c.Leave(B)

	admitted := 0
	for _, w := range waiters {
		select {
		case err := <-w:
			assert.NoError(err)
			admitted++
		case <-time.After(time.Second):
		}
	}

	assert.Equal(3, admitted)
}

func TestFlip(t *testing.T) {
	t.Run("NobodyWaiting", testFlipWithNobodyWaiting)
	t.Run("OnlyDrainedDirectionWaits", testFlipKeepsDirectionWhenOnlyItWaits)
	t.Run("IdleClaim", testIdleClaim)
	t.Run("Yield", testYield)
	t.Run("YieldEndsWhenOtherSideGivesUp", testYieldEndsWhenOtherSideGivesUp)
	t.Run("CapacityTryEnter", testCapacityTryEnter)
	t.Run("Recheck", testRecheckDoesNotMutate)
}

func testEnterWaitTimeout(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = New(DefaultCapacity)
		timer  = make(chan time.Time)
		result = make(chan error, 1)
	)

	fill(t, c, A, 1)
	before := c.State()

	go func() {
		result <- c.EnterWait(B, timer)
	}()

	requireWaiting(t, c, B, 1)
	timer <- time.Time{}

	select {
	case err := <-result:
		assert.Equal(ErrTimeout, err)
	case <-time.After(time.Second):
		require.FailNow(t, "EnterWait blocked unexpectedly")
	}

	assert.Equal(before, c.State())
}

func testEnterWaitSuccess(t *testing.T) {
	c := New(DefaultCapacity)
	assert.NoError(t, c.EnterWait(B, make(chan time.Time)))
	assert.Equal(t, B, c.State().Direction)
}

func testEnterCtxCanceled(t *testing.T) {
	var (
		assert      = assert.New(t)
		c           = New(DefaultCapacity)
		ctx, cancel = context.WithCancel(context.Background())
		result      = make(chan error, 1)
	)

	defer cancel()
	fill(t, c, B, 1)

	go func() {
		result <- c.EnterCtx(ctx, A)
	}()

	requireWaiting(t, c, A, 1)
	cancel()

	select {
	case err := <-result:
		assert.Equal(context.Canceled, err)
	case <-time.After(time.Second):
		require.FailNow(t, "EnterCtx blocked unexpectedly")
	}

	state := c.State()
	assert.Zero(state.Waiting[A])
	assert.Equal(1, state.Occupancy)
	assert.Equal(B, state.Direction)
}

func testEnterCtxSuccess(t *testing.T) {
	c := New(DefaultCapacity)
	assert.NoError(t, c.EnterCtx(context.Background(), A))
}

func TestEnterVariants(t *testing.T) {
	t.Run("EnterWait/Timeout", testEnterWaitTimeout)
	t.Run("EnterWait/Success", testEnterWaitSuccess)
	t.Run("EnterCtx/Canceled", testEnterCtxCanceled)
	t.Run("EnterCtx/Success", testEnterCtxSuccess)
}

func TestAbandonedHandsBack(t *testing.T) {
	var (
		assert = assert.New(t)
		c      = newCrossing(1, nil)
	)

	// the state right after the last waiter toward A gave up on an empty rope
	c.waiting[B] = 1
	wake := c.wake[B]

	c.lock.Lock()
	c.abandoned()
	c.lock.Unlock()

	assert.Equal(B, c.current)
	assert.Equal(uint64(1), c.flips)

	select {
	case <-wake:
		// passing
	default:
		assert.Fail("waiters toward B were not woken")
	}
}

func TestLeaveMisuse(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		assert.Panics(t, func() {
			New(1).Leave(A)
		})
	})

	t.Run("WrongDirection", func(t *testing.T) {
		c := New(1)
		fill(t, c, A, 1)
		assert.Panics(t, func() {
			c.Leave(B)
		})
	})

	t.Run("InvalidDirection", func(t *testing.T) {
		c := New(1)
		assert.Panics(t, func() { c.Leave(Direction(5)) })
		assert.Panics(t, func() { c.Enter(Direction(5)) })
		assert.Panics(t, func() { c.TryEnter(Direction(-1)) })
	})
}

// ropeMonitor tracks who is between a successful enter and the matching leave.
type ropeMonitor struct {
	lock     sync.Mutex
	capacity int
	on       [2]int
}

func (m *ropeMonitor) enter(t *testing.T, d Direction) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.on[d]++
	assert.Zero(t, m.on[d.Opposite()], "actors toward %s met actors toward %s", d, d.Opposite())
	assert.LessOrEqual(t, m.on[d], m.capacity)
}

func (m *ropeMonitor) leave(d Direction) {
	m.lock.Lock()
	m.on[d]--
	m.lock.Unlock()
}

func TestSafetyUnderLoad(t *testing.T) {
	const (
		capacity = 3
		actors   = 40
		rounds   = 25
	)

	var (
		c       = New(capacity)
		monitor = &ropeMonitor{capacity: capacity}
		wg      = new(sync.WaitGroup)
	)

	wg.Add(actors)
	for i := 0; i < actors; i++ {
		go func(seed int64) {
			defer wg.Done()
			random := rand.New(rand.NewSource(seed))

			for r := 0; r < rounds; r++ {
				d := Directions[random.Intn(2)]

				if random.Intn(4) == 0 {
					timer := time.NewTimer(time.Duration(random.Intn(500)) * time.Microsecond)
					err := c.EnterWait(d, timer.C)
					timer.Stop()
					if err != nil {
						assert.Equal(t, ErrTimeout, err)
						continue
					}
				} else if !assert.NoError(t, c.Enter(d)) {
					return
				}

				monitor.enter(t, d)
				state := c.State()
				assert.Equal(t, d, state.Direction)
				assert.LessOrEqual(t, state.Occupancy, capacity)

				time.Sleep(time.Duration(random.Intn(100)) * time.Microsecond)
				monitor.leave(d)
				c.Leave(d)
			}
		}(int64(i))
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
		// passing
	case <-time.After(30 * time.Second):
		require.FailNow(t, "actors did not finish crossing", "state: %+v", c.State())
	}

	state := c.State()
	assert.Zero(t, state.Occupancy)
	assert.Equal(t, [2]int{}, state.Waiting)
}

func TestNoStarvation(t *testing.T) {
	var (
		c           = New(DefaultCapacity)
		ctx, cancel = context.WithCancel(context.Background())
		wg          = new(sync.WaitGroup)
	)

	defer cancel()

	// a continuous stream toward A, more actors than the rope holds
	for i := 0; i < 2*DefaultCapacity; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				if err := c.EnterCtx(ctx, A); err != nil {
					return
				}

				time.Sleep(time.Millisecond)
				c.Leave(A)
			}
		}()
	}

	require.Eventually(
		t,
		func() bool { return c.State().Occupancy > 0 },
		time.Second,
		time.Millisecond,
	)

	result := make(chan error, 1)
	go func() {
		result <- c.Enter(B)
	}()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "the actor toward B starved", "state: %+v", c.State())
	}

	assert.Equal(t, B, c.State().Direction)
	c.Leave(B)

	cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		wg.Wait()
	}()

	select {
	case <-done:
		// passing
	case <-time.After(5 * time.Second):
		require.FailNow(t, "the stream toward A did not stop", "state: %+v", c.State())
	}
}
