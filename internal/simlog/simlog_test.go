package simlog

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/heistp/flowforge/internal/quantities"
)

func TestNothingDiscardsEverything(t *testing.T) {
	var n Nothing
	n.Logf(quantities.Time(1), 2, "hello %d", 3) // must not panic
}

func TestStandardFormatsLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewStandard(log.New(&buf, "", 0))
	s.Logf(quantities.Time(1.5), 3, "dropped %d", 7)
	got := buf.String()
	if !strings.Contains(got, "[3]:") || !strings.Contains(got, "dropped 7") {
		t.Errorf("Logf output = %q, want it to contain component tag and formatted message", got)
	}
}

func TestCollectorAppendsLines(t *testing.T) {
	c := &Collector{}
	c.Logf(quantities.Time(1), 0, "first")
	c.Logf(quantities.Time(2), 1, "second %s", "event")
	if len(c.Lines) != 2 {
		t.Fatalf("len(Lines) = %d, want 2", len(c.Lines))
	}
	if c.Lines[0].Time != 1 || c.Lines[0].Component != 0 || c.Lines[0].Message != "first" {
		t.Errorf("Lines[0] = %+v, want {1 0 first}", c.Lines[0])
	}
	if c.Lines[1].Message != "second event" {
		t.Errorf("Lines[1].Message = %q, want %q", c.Lines[1].Message, "second event")
	}
}
