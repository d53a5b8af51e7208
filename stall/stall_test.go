package stall_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/cogito/stall"
	"github.com/m-mizutani/gt"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func signalAll(t *testing.T, e *stall.Engine, clock *fakeClock, names ...string) []stall.Result {
	t.Helper()
	results := make([]stall.Result, 0, len(names))
	for _, name := range names {
		clock.Advance(time.Second)
		results = append(results, e.SignalEndOfAction(name))
	}
	return results
}

func TestRepeatedAction(t *testing.T) {
	clock := newFakeClock()
	e := stall.New(stall.WithClock(clock.Now))

	results := signalAll(t, e, clock, "search", "search", "search")
	gt.False(t, results[0].IsStall)
	gt.False(t, results[1].IsStall)
	gt.True(t, results[2].IsStall)
	gt.Equal(t, results[2].Detector, "repeated_action")
	gt.S(t, results[2].Reason).Contains(`"search"`)
}

func TestActionPattern(t *testing.T) {
	testCases := map[string]struct {
		history []string
		cycle   int
	}{
		"cycle of two": {
			history: []string{"a", "b", "a", "b"},
			cycle:   2,
		},
		"cycle of three": {
			history: []string{"a", "b", "c", "a", "b", "c"},
			cycle:   3,
		},
		"cycle of five after noise": {
			history: []string{"x", "a", "b", "c", "d", "e", "a", "b", "c", "d", "e"},
			cycle:   5,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			clock := newFakeClock()
			e := stall.New(stall.WithClock(clock.Now))

			results := signalAll(t, e, clock, tc.history...)
			for _, r := range results[:len(results)-1] {
				gt.False(t, r.IsStall)
			}

			last := results[len(results)-1]
			gt.True(t, last.IsStall)
			gt.Equal(t, last.Detector, "action_pattern")
			gt.S(t, last.Reason).Contains(fmt.Sprintf("length %d", tc.cycle))
		})
	}
}

func TestActionPatternNeedsMinimumHistory(t *testing.T) {
	d := &stall.ActionPattern{MinCycle: 2, MaxCycle: 5}
	gt.False(t, d.CheckStall(&stall.Context{DecisionHistory: []string{"a", "b", "a"}}).IsStall)
	gt.True(t, d.CheckStall(&stall.Context{DecisionHistory: []string{"a", "b", "a", "b"}}).IsStall)
}

func TestIterationLimit(t *testing.T) {
	clock := newFakeClock()
	e := stall.New(stall.WithClock(clock.Now))

	names := make([]string, 20)
	for i := range names {
		names[i] = fmt.Sprintf("action_%02d", i)
	}

	results := signalAll(t, e, clock, names...)
	for _, r := range results[:19] {
		gt.False(t, r.IsStall)
	}
	gt.Equal(t, e.Snapshot().TotalIterations, 20)
	gt.True(t, results[19].IsStall)
	gt.Equal(t, results[19].Detector, "iteration_limit")
}

func TestTakingTooLong(t *testing.T) {
	clock := newFakeClock()
	e := stall.New(stall.WithClock(clock.Now))

	clock.Advance(299 * time.Second)
	gt.False(t, e.SignalEndOfAction("slow").IsStall)

	clock.Advance(301 * time.Second)
	r := e.SignalEndOfAction("slower")
	gt.True(t, r.IsStall)
	gt.Equal(t, r.Detector, "taking_too_long")

	sc := e.Snapshot()
	gt.Equal(t, sc.ActionExecutionTimes, []time.Duration{299 * time.Second, 301 * time.Second})
}

func TestNoFalsePositive(t *testing.T) {
	clock := newFakeClock()
	e := stall.New(stall.WithClock(clock.Now))

	for _, r := range signalAll(t, e, clock, "a", "b", "c", "d") {
		gt.False(t, r.IsStall)
	}

	sc := e.Snapshot()
	gt.Equal(t, sc.DecisionHistory, []string{"a", "b", "c", "d"})
	for _, d := range stall.DefaultDetectors() {
		r := d.CheckStall(&sc)
		gt.False(t, r.IsStall)
		gt.Equal(t, r.Reason, "")
	}
}

func TestDetectorOrder(t *testing.T) {
	clock := newFakeClock()
	e := stall.New(
		stall.WithClock(clock.Now),
		stall.WithDetectors(
			&stall.RepeatedAction{Count: 3},
			&stall.IterationLimit{Limit: 3},
		),
	)

	results := signalAll(t, e, clock, "search", "search", "search")
	gt.Equal(t, results[2].Detector, "repeated_action")

	t.Run("reversed order reports the other detector", func(t *testing.T) {
		clock := newFakeClock()
		e := stall.New(
			stall.WithClock(clock.Now),
			stall.WithDetectors(
				&stall.IterationLimit{Limit: 3},
				&stall.RepeatedAction{Count: 3},
			),
		)

		results := signalAll(t, e, clock, "search", "search", "search")
		gt.Equal(t, results[2].Detector, "iteration_limit")
	})
}

func TestHistoryIsBounded(t *testing.T) {
	clock := newFakeClock()
	e := stall.New(stall.WithClock(clock.Now), stall.WithDetectors())

	for i := 0; i < 25; i++ {
		clock.Advance(time.Millisecond)
		gt.False(t, e.SignalEndOfAction(fmt.Sprintf("a%d", i)).IsStall)
	}

	sc := e.Snapshot()
	gt.Equal(t, sc.TotalIterations, 25)
	gt.Equal(t, len(sc.DecisionHistory), stall.DefaultHistoryLimit)
	gt.Equal(t, len(sc.ActionExecutionTimes), stall.DefaultHistoryLimit)
	gt.Equal(t, sc.DecisionHistory[0], "a5")
	gt.Equal(t, sc.DecisionHistory[19], "a24")
}

type alwaysStall struct{}

func (alwaysStall) Name() string { return "always" }

func (alwaysStall) CheckStall(sc *stall.Context) stall.Result {
	return stall.Result{IsStall: true, Reason: "stop " + strings.Join(sc.DecisionHistory, ",")}
}

func TestCustomDetector(t *testing.T) {
	e := stall.New(stall.WithDetectors(alwaysStall{}))
	r := e.SignalEndOfAction("x")
	gt.True(t, r.IsStall)
	gt.Equal(t, r.Detector, "always")
	gt.Equal(t, r.Reason, "stop x")
}
