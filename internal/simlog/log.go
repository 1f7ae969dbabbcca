// Package simlog provides the logger components use to report
// simulation events. It generalizes the teacher's bare log.Printf call
// (heistp-scim/log.go) into an interface so that batch evaluation runs can
// pass a no-op implementation while the trace CLI subcommand wires in one
// that actually writes.
package simlog

import (
	"fmt"
	"log"

	"github.com/heistp/flowforge/internal/quantities"
)

// Logger is implemented by anything that can receive simulation log lines.
// ComponentId is passed as a plain int rather than simulation.ComponentId
// to avoid an import cycle; callers format it themselves.
type Logger interface {
	Logf(now quantities.Time, component int, format string, a ...any)
}

// Nothing is a Logger that discards everything. Use it for batch training
// and evaluation runs where per-packet logging would dominate runtime.
type Nothing struct{}

// Logf implements Logger.
func (Nothing) Logf(quantities.Time, int, string, ...any) {}

// Standard logs through the standard library's log package, mirroring the
// teacher's logf helper.
type Standard struct {
	logger *log.Logger
}

// NewStandard returns a Standard logger writing through l.
func NewStandard(l *log.Logger) *Standard {
	return &Standard{logger: l}
}

// Logf implements Logger.
func (s *Standard) Logf(now quantities.Time, component int, format string, a ...any) {
	s.logger.Printf("%s [%d]: %s", now, component, fmt.Sprintf(format, a...))
}

// Collector is a Logger that appends every line to an in-memory slice, used
// by the trace CLI subcommand to build its JSON event list.
type Collector struct {
	Lines []Line
}

// Line is one collected log line.
type Line struct {
	Time      quantities.Time `json:"time"`
	Component int             `json:"component"`
	Message   string          `json:"message"`
}

// Logf implements Logger.
func (c *Collector) Logf(now quantities.Time, component int, format string, a ...any) {
	c.Lines = append(c.Lines, Line{now, component, fmt.Sprintf(format, a...)})
}
