package tooltip

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"groundchat/internal/citation"
	"groundchat/internal/render"
)

// manualScheduler fires timers only when the test advances its clock.
type manualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*manualTimer
}

type manualTimer struct {
	s       *manualScheduler
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (s *manualScheduler) AfterFunc(d time.Duration, f func()) Timer {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTimer{s: s, at: s.now + d, f: f}
	s.timers = append(s.timers, t)
	return t
}

func (s *manualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	var due []*manualTimer
	for _, t := range s.timers {
		if !t.fired && !t.stopped && t.at <= s.now {
			t.fired = true
			due = append(due, t)
		}
	}
	s.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

type fakeHost struct {
	mu          sync.Mutex
	active      int
	subscribes  int
	repositions int
	details     []render.ShowAllEvent
	onMove      func()
	onOutside   func()
}

func (h *fakeHost) Subscribe(onMove func(), onOutsideClick func()) func() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active++
	h.subscribes++
	h.onMove = onMove
	h.onOutside = onOutsideClick
	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.active--
	}
}

func (h *fakeHost) Reposition(render.Element) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.repositions++
}

func (h *fakeHost) OpenDetails(ev render.ShowAllEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.details = append(h.details, ev)
}

func (h *fakeHost) Active() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func hybridElement() render.Element {
	return render.Element{
		Kind:     render.KindHybrid,
		Citation: citation.Citation{KB: []int{1}, Web: []int{1}},
		Sources: []citation.EvidenceItem{
			{Pool: citation.PoolKB, DisplayIndex: 1, Title: "FAQ.pdf"},
			{Pool: citation.PoolWeb, DisplayIndex: 1, Title: "Example"},
		},
	}
}

func newTestController() (*Controller, *fakeHost, *manualScheduler) {
	host := &fakeHost{}
	sched := &manualScheduler{}
	return NewController(hybridElement(), host, sched, DefaultConfig()), host, sched
}

func TestController_HoverShowsAfterDelay(t *testing.T) {
	c, host, sched := newTestController()

	c.Handle(PointerEnter)
	assert.Equal(t, Pending, c.State())

	sched.Advance(199 * time.Millisecond)
	assert.Equal(t, Pending, c.State())

	sched.Advance(time.Millisecond)
	assert.Equal(t, Visible, c.State())
	assert.Equal(t, 1, host.Active())
	assert.True(t, c.Subscribed())
	assert.GreaterOrEqual(t, host.repositions, 1)
}

func TestController_LeaveCancelsPendingShow(t *testing.T) {
	c, host, sched := newTestController()

	c.Handle(PointerEnter)
	sched.Advance(100 * time.Millisecond)
	c.Handle(PointerLeave)
	assert.Equal(t, Hidden, c.State())

	sched.Advance(time.Second)
	assert.Equal(t, Hidden, c.State())
	assert.Equal(t, 0, host.subscribes)
}

func TestController_ReenterCancelsPendingHide(t *testing.T) {
	c, host, sched := newTestController()
	c.Handle(PointerEnter)
	sched.Advance(200 * time.Millisecond)
	require.Equal(t, Visible, c.State())

	c.Handle(PointerLeave)
	sched.Advance(299 * time.Millisecond)
	assert.Equal(t, Visible, c.State())

	c.Handle(PointerEnter)
	sched.Advance(time.Second)
	assert.Equal(t, Visible, c.State())

	c.Handle(PointerLeave)
	sched.Advance(300 * time.Millisecond)
	assert.Equal(t, Hidden, c.State())
	assert.Equal(t, 0, host.Active())
	assert.False(t, c.Subscribed())
}

func TestController_ClickToggles(t *testing.T) {
	c, host, _ := newTestController()

	c.Handle(Click)
	assert.Equal(t, Visible, c.State())
	assert.Equal(t, 1, host.Active())

	c.Handle(Click)
	assert.Equal(t, Hidden, c.State())
	assert.Equal(t, 0, host.Active())
}

func TestController_ClickDuringPendingShowsImmediately(t *testing.T) {
	c, host, sched := newTestController()

	c.Handle(PointerEnter)
	c.Handle(Click)
	assert.Equal(t, Visible, c.State())

	sched.Advance(time.Second)
	assert.Equal(t, Visible, c.State())
	assert.Equal(t, 1, host.subscribes)
}

func TestController_Dismiss(t *testing.T) {
	tests := []struct {
		name    string
		dismiss func(c *Controller, h *fakeHost)
	}{
		{"escape", func(c *Controller, _ *fakeHost) { c.Handle(Escape) }},
		{"outside click event", func(c *Controller, _ *fakeHost) { c.Handle(OutsideClick) }},
		{"outside click listener", func(_ *Controller, h *fakeHost) { h.onOutside() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, host, _ := newTestController()
			c.Handle(Click)
			require.Equal(t, Visible, c.State())

			tt.dismiss(c, host)
			assert.Equal(t, Hidden, c.State())
			assert.Equal(t, 0, host.Active())
		})
	}
}

func TestController_RepositionWhileVisible(t *testing.T) {
	c, host, _ := newTestController()
	c.Handle(Click)
	before := host.repositions

	host.onMove()
	host.onMove()
	assert.Equal(t, before+2, host.repositions)
}

func TestController_ShowAll(t *testing.T) {
	c, host, _ := newTestController()

	c.Handle(ShowAll)
	assert.Empty(t, host.details, "hidden tooltip must not raise show-all")

	c.Handle(Click)
	c.Handle(ShowAll)
	require.Len(t, host.details, 1)
	ev := host.details[0]
	assert.Equal(t, render.KindHybrid, ev.Kind)
	require.Len(t, ev.KB, 1)
	require.Len(t, ev.Web, 1)
	assert.Equal(t, "FAQ.pdf", ev.KB[0].Title)
	assert.Equal(t, Hidden, c.State())
	assert.Equal(t, 0, host.Active())
}

func TestController_Unmount(t *testing.T) {
	t.Run("while visible", func(t *testing.T) {
		c, host, _ := newTestController()
		c.Handle(Click)
		c.Handle(Unmount)
		assert.Equal(t, Hidden, c.State())
		assert.Equal(t, 0, host.Active())

		c.Handle(Click)
		assert.Equal(t, Hidden, c.State(), "events after unmount are ignored")
	})

	t.Run("while pending", func(t *testing.T) {
		c, host, sched := newTestController()
		c.Handle(PointerEnter)
		c.Handle(Unmount)
		sched.Advance(time.Second)
		assert.Equal(t, Hidden, c.State())
		assert.Equal(t, 0, host.subscribes)
	})
}

func TestGroup_NoLeakedListeners(t *testing.T) {
	host := &fakeHost{}
	sched := &manualScheduler{}
	elements := make([]render.Element, 100)
	for i := range elements {
		elements[i] = hybridElement()
	}

	g := Mount(elements, host, sched, DefaultConfig())
	require.Equal(t, 100, g.Len())
	for i := 0; i < g.Len(); i++ {
		g.At(i).Handle(Click)
	}
	assert.Equal(t, 100, g.Visible())
	assert.Equal(t, 100, host.Active())

	g.Unmount()
	assert.Equal(t, 0, g.Visible())
	assert.Equal(t, 0, host.Active())
}

func TestController_ClockScheduler(t *testing.T) {
	defer goleak.VerifyNone(t)

	host := &fakeHost{}
	c := NewController(hybridElement(), host, nil, Config{ShowDelay: time.Millisecond, HideDelay: time.Millisecond})

	c.Handle(PointerEnter)
	require.Eventually(t, func() bool { return c.State() == Visible }, time.Second, time.Millisecond)

	c.Handle(PointerLeave)
	require.Eventually(t, func() bool { return c.State() == Hidden }, time.Second, time.Millisecond)
	assert.Equal(t, 0, host.Active())

	c.Handle(PointerEnter)
	c.Handle(Unmount)
}
