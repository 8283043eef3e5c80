package trace

import "time"

// Kind represents the type of trace event.
type Kind uint8

const (
	KindSpanBegin Kind = iota + 1
	KindSpanEnd
	KindPoint
	KindHeartbeat
)

func (k Kind) String() string {
	switch k {
	case KindSpanBegin:
		return "begin"
	case KindSpanEnd:
		return "end"
	case KindPoint:
		return "point"
	case KindHeartbeat:
		return "heartbeat"
	default:
		return "unknown"
	}
}

// Scope is the granularity of an event. Lower values are coarser.
type Scope uint8

const (
	ScopeSession Scope = iota + 1 // one resolver session or CLI command
	ScopeRequest                  // one instantiation request
	ScopePhase                    // key, infer, place, elaborate
	ScopeDetail                   // individual decisions inside a phase
)

func (s Scope) String() string {
	switch s {
	case ScopeSession:
		return "session"
	case ScopeRequest:
		return "request"
	case ScopePhase:
		return "phase"
	case ScopeDetail:
		return "detail"
	default:
		return "unknown"
	}
}

// Event is a single trace record.
type Event struct {
	Time     time.Time
	Seq      uint64
	Kind     Kind
	Scope    Scope
	SpanID   uint64
	ParentID uint64
	GID      uint64
	Name     string // e.g. "request", "infer", "hoist"
	Detail   string
	Extra    map[string]string
}
