// Package tooltip drives the hover and click behavior of citation elements.
//
// Each element owns a Controller, a small state machine (Hidden, Pending, Visible) fed by
// pointer and keyboard events. Delays go through a Scheduler so pending shows and hides
// can be cancelled, and host listeners are held only while the tooltip is visible.
package tooltip

import (
	"sync"
	"time"

	"groundchat/internal/render"
)

// State is the visibility state of one tooltip.
type State int

const (
	Hidden State = iota
	Pending
	Visible
)

func (s State) String() string {
	switch s {
	case Hidden:
		return "hidden"
	case Pending:
		return "pending"
	case Visible:
		return "visible"
	default:
		return "unknown"
	}
}

// Event is an input to the state machine.
type Event int

const (
	PointerEnter Event = iota
	PointerLeave
	Click
	OutsideClick
	Escape
	ShowAll
	Unmount
)

func (e Event) String() string {
	switch e {
	case PointerEnter:
		return "pointer_enter"
	case PointerLeave:
		return "pointer_leave"
	case Click:
		return "click"
	case OutsideClick:
		return "outside_click"
	case Escape:
		return "escape"
	case ShowAll:
		return "show_all"
	case Unmount:
		return "unmount"
	default:
		return "unknown"
	}
}

// Timer is a cancellable delayed callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs callbacks after a delay.
type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// ClockScheduler schedules on the wall clock.
type ClockScheduler struct{}

// AfterFunc wraps time.AfterFunc.
func (ClockScheduler) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Host is the UI surface a tooltip is mounted in.
type Host interface {
	// Subscribe registers scroll/resize and outside-click listeners and returns their release.
	Subscribe(onMove func(), onOutsideClick func()) (release func())
	// Reposition recomputes the popover position of an element.
	Reposition(el render.Element)
	// OpenDetails opens the detail view with every source of a citation.
	OpenDetails(ev render.ShowAllEvent)
}

// Config holds the hover-intent delays.
type Config struct {
	ShowDelay time.Duration
	HideDelay time.Duration
}

// DefaultConfig matches the delays used by the web client.
func DefaultConfig() Config {
	return Config{
		ShowDelay: 200 * time.Millisecond,
		HideDelay: 300 * time.Millisecond,
	}
}

// Controller is the tooltip state machine of one citation element.
type Controller struct {
	mu sync.Mutex

	el    render.Element
	host  Host
	sched Scheduler
	cfg   Config

	state  State
	timer  Timer
	gen    uint64
	hiding bool
	sub    *subscription
	done   bool
}

// NewController creates a hidden controller for el.
func NewController(el render.Element, host Host, sched Scheduler, cfg Config) *Controller {
	if sched == nil {
		sched = ClockScheduler{}
	}
	return &Controller{
		el:    el,
		host:  host,
		sched: sched,
		cfg:   cfg,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribed reports whether host listeners are currently held.
func (c *Controller) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub != nil
}

// Handle feeds one event to the state machine. Events after Unmount are ignored.
func (c *Controller) Handle(ev Event) {
	c.mu.Lock()
	if c.done {
		c.mu.Unlock()
		return
	}
	effects := c.transition(ev)
	c.mu.Unlock()

	// host callbacks run outside the lock so they may feed events back
	for _, f := range effects {
		f()
	}
}

func (c *Controller) transition(ev Event) []func() {
	switch ev {
	case Unmount:
		c.done = true
		return c.hide()

	case Escape, OutsideClick:
		return c.hide()

	case PointerEnter:
		switch c.state {
		case Hidden:
			c.state = Pending
			c.schedule(c.cfg.ShowDelay, c.show)
		case Visible:
			if c.hiding {
				c.cancel()
			}
		}
		return nil

	case PointerLeave:
		switch c.state {
		case Pending:
			c.cancel()
			c.state = Hidden
		case Visible:
			if !c.hiding {
				c.schedule(c.cfg.HideDelay, c.hide)
				c.hiding = true
			}
		}
		return nil

	case Click:
		if c.state == Visible && !c.hiding {
			return c.hide()
		}
		c.cancel()
		return c.show()

	case ShowAll:
		if c.state != Visible {
			return nil
		}
		payload := render.ShowAllPayload(c.el)
		effects := c.hide()
		return append(effects, func() { c.host.OpenDetails(payload) })
	}
	return nil
}

// schedule arms the single timer. A fired callback whose generation is stale is dropped.
func (c *Controller) schedule(d time.Duration, action func() []func()) {
	c.cancel()
	c.gen++
	gen := c.gen
	c.timer = c.sched.AfterFunc(d, func() {
		c.mu.Lock()
		if c.done || gen != c.gen {
			c.mu.Unlock()
			return
		}
		c.timer = nil
		effects := action()
		c.mu.Unlock()
		for _, f := range effects {
			f()
		}
	})
}

func (c *Controller) cancel() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.gen++
	c.hiding = false
}

func (c *Controller) show() []func() {
	c.cancel()
	if c.state == Visible {
		return nil
	}
	c.state = Visible
	el := c.el
	var effects []func()
	if c.sub == nil {
		sub := &subscription{}
		c.sub = sub
		effects = append(effects, func() {
			sub.set(c.host.Subscribe(
				func() { c.host.Reposition(el) },
				func() { c.Handle(OutsideClick) },
			))
		})
	}
	effects = append(effects, func() { c.host.Reposition(el) })
	return effects
}

func (c *Controller) hide() []func() {
	c.cancel()
	c.state = Hidden
	if c.sub == nil {
		return nil
	}
	sub := c.sub
	c.sub = nil
	return []func(){sub.close}
}

// subscription holds the host listeners of one visible period. close may run before set
// when a hide races the subscribe; set then releases immediately.
type subscription struct {
	mu      sync.Mutex
	release func()
	closed  bool
}

func (s *subscription) set(release func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		if release != nil {
			release()
		}
		return
	}
	s.release = release
	s.mu.Unlock()
}

func (s *subscription) close() {
	s.mu.Lock()
	s.closed = true
	release := s.release
	s.release = nil
	s.mu.Unlock()
	if release != nil {
		release()
	}
}

// Group holds the controllers of every citation element in one rendered answer.
type Group struct {
	controllers []*Controller
}

// Mount creates one hidden controller per element.
func Mount(elements []render.Element, host Host, sched Scheduler, cfg Config) *Group {
	g := &Group{controllers: make([]*Controller, 0, len(elements))}
	for _, el := range elements {
		g.controllers = append(g.controllers, NewController(el, host, sched, cfg))
	}
	return g
}

// Len is the number of mounted controllers.
func (g *Group) Len() int {
	return len(g.controllers)
}

// At returns the controller of the i-th element.
func (g *Group) At(i int) *Controller {
	return g.controllers[i]
}

// Visible counts controllers currently showing their tooltip.
func (g *Group) Visible() int {
	n := 0
	for _, c := range g.controllers {
		if c.State() == Visible {
			n++
		}
	}
	return n
}

// Unmount tears down every controller, releasing any host listeners still held.
func (g *Group) Unmount() {
	for _, c := range g.controllers {
		c.Handle(Unmount)
	}
}
