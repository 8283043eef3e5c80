package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestLevelFiltersScopes(t *testing.T) {
	cases := []struct {
		level Level
		scope Scope
		want  bool
	}{
		{LevelOff, ScopeSession, false},
		{LevelError, ScopeSession, false},
		{LevelPhase, ScopeRequest, true},
		{LevelPhase, ScopePhase, false},
		{LevelDetail, ScopePhase, true},
		{LevelDetail, ScopeDetail, false},
		{LevelDebug, ScopeDetail, true},
	}
	for _, c := range cases {
		if got := c.level.ShouldEmit(c.scope); got != c.want {
			t.Fatalf("%s.ShouldEmit(%s) = %v, want %v", c.level, c.scope, got, c.want)
		}
	}
}

func TestSpanNestingInRing(t *testing.T) {
	ring := NewRingTracer(16, LevelDetail)
	req := Begin(ring, ScopeRequest, "request", 0)
	phase := Begin(ring, ScopePhase, "infer", req.ID())
	Point(ring, ScopeDetail, "candidate", phase.ID(), "filtered")
	phase.WithExtra("rounds", "2").End("")
	req.End("ok")

	events := ring.Snapshot()
	if len(events) != 4 {
		t.Fatalf("expected 4 events, got %d", len(events))
	}
	if events[1].ParentID != events[0].SpanID {
		t.Fatalf("phase should be parented to the request span")
	}
	if events[2].Extra["rounds"] != "2" || events[2].Kind != KindSpanEnd {
		t.Fatalf("unexpected end event %+v", events[2])
	}
	if events[3].Detail != "ok" {
		t.Fatalf("unexpected request end %+v", events[3])
	}
}

func TestRingWrapsAround(t *testing.T) {
	ring := NewRingTracer(3, LevelDebug)
	for i := range 5 {
		Point(ring, ScopeSession, "p", 0, string(rune('a'+i)))
	}
	events := ring.Snapshot()
	if len(events) != 3 || events[0].Detail != "c" || events[2].Detail != "e" {
		t.Fatalf("unexpected ring contents %+v", events)
	}
}

func TestInertSpanKeepsParent(t *testing.T) {
	ring := NewRingTracer(8, LevelPhase)
	req := Begin(ring, ScopeRequest, "request", 0)
	phase := Begin(ring, ScopePhase, "key", req.ID())
	if phase.ID() != req.ID() {
		t.Fatalf("filtered span should report its parent")
	}
	if phase.End("") != 0 {
		t.Fatalf("filtered span should not measure")
	}
}

func TestStreamFormats(t *testing.T) {
	var text, js bytes.Buffer
	multi := NewMultiTracer(LevelDebug,
		NewStreamTracer(&text, LevelDebug, FormatText),
		NewStreamTracer(&js, LevelDebug, FormatNDJSON),
	)
	span := Begin(multi, ScopeSession, "resolve", 0)
	span.WithExtra("unit", "Sort").End("done")

	if !strings.Contains(text.String(), "← resolve (done) {unit=Sort}") {
		t.Fatalf("unexpected text output %q", text.String())
	}
	lines := strings.Split(strings.TrimSpace(js.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 ndjson lines, got %d", len(lines))
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("invalid ndjson: %v", err)
	}
	if ev["kind"] != "end" || ev["name"] != "resolve" {
		t.Fatalf("unexpected event %v", ev)
	}
}

func TestContextPropagation(t *testing.T) {
	if FromContext(context.Background()) != Nop {
		t.Fatalf("missing tracer should be Nop")
	}
	ring := NewRingTracer(4, LevelDebug)
	ctx := WithTracer(context.Background(), ring)
	span := Begin(FromContext(ctx), ScopeSession, "s", 0)
	ctx = WithSpan(ctx, span)
	if CurrentSpan(ctx) != span.ID() {
		t.Fatalf("span not propagated")
	}
}

func TestNewHonoursConfig(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("off level should yield a disabled tracer")
	}
	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m, ok := tr.(*MultiTracer)
	if !ok || m.Ring() == nil {
		t.Fatalf("both mode should include a ring")
	}
	if _, err := New(Config{Level: LevelPhase}); err == nil {
		t.Fatalf("missing mode should be rejected")
	}
}

func TestHeartbeatStops(t *testing.T) {
	ring := NewRingTracer(64, LevelPhase)
	h := StartHeartbeat(ring, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	h.Stop()
	h.Stop()
	n := len(ring.Snapshot())
	if n == 0 {
		t.Fatalf("expected heartbeat events")
	}
	time.Sleep(5 * time.Millisecond)
	if len(ring.Snapshot()) != n {
		t.Fatalf("heartbeat kept running after Stop")
	}
	if StartHeartbeat(Nop, time.Millisecond) != nil {
		t.Fatalf("disabled tracer should not start a heartbeat")
	}
}
