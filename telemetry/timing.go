package telemetry

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// TimingCollector records operation timings as a tree. Safe for use from
// multiple goroutines; timers opened on different goroutines nest under
// whichever timer was current when Start ran, so concurrent callers
// should prefer explicit Child timers.
type TimingCollector struct {
	mu      sync.Mutex
	root    *span
	current *span
}

type span struct {
	name     string
	start    time.Time
	end      time.Time
	parent   *span
	children []*span
}

func (s *span) duration() time.Duration {
	if s.end.IsZero() {
		return time.Since(s.start)
	}
	return s.end.Sub(s.start)
}

// NewTimingCollector creates an empty timing collector.
func NewTimingCollector() *TimingCollector {
	return &TimingCollector{}
}

// Start begins timing an operation. The first Start becomes the root of
// the report; later ones nest under the currently running timer.
func (c *TimingCollector) Start(name string) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := &span{name: name, start: time.Now()}
	if c.root == nil {
		c.root = node
	} else {
		node.parent = c.current
		c.current.children = append(c.current.children, node)
	}
	c.current = node

	return &timingTimer{collector: c, node: node}
}

// Report writes the collected tree, one line per span, indented by depth.
func (c *TimingCollector) Report(w io.Writer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.root == nil {
		return
	}
	writeSpan(w, c.root, 0)
}

func writeSpan(w io.Writer, s *span, depth int) {
	indent := strings.Repeat("  ", depth)
	_, _ = fmt.Fprintf(w, "%s%s %s\n", indent, s.name, formatDuration(s.duration()))
	for _, child := range s.children {
		writeSpan(w, child, depth+1)
	}
}

// formatDuration renders durations at a precision a human cares about:
// microseconds below 1ms, tenths of ms below 1s, and seconds above.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("(%dµs)", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("(%.1fms)", float64(d.Microseconds())/1000)
	default:
		return fmt.Sprintf("(%.2fs)", d.Seconds())
	}
}

type timingTimer struct {
	collector *TimingCollector
	node      *span
}

func (t *timingTimer) End() {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	t.node.end = time.Now()
	if t.node.parent != nil {
		t.collector.current = t.node.parent
	}
}

func (t *timingTimer) Child(name string) Timer {
	t.collector.mu.Lock()
	defer t.collector.mu.Unlock()

	node := &span{name: name, start: time.Now(), parent: t.node}
	t.node.children = append(t.node.children, node)

	return &timingTimer{collector: t.collector, node: node}
}
