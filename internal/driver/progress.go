package driver

import "time"

// Status captures where a translation unit is in a run.
type Status string

const (
	// StatusQueued indicates the unit is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusResolving indicates the unit's references are being resolved.
	StatusResolving Status = "resolving"
	// StatusDone indicates every reference met its expectation.
	StatusDone Status = "done"
	// StatusError indicates a reference missed its expectation or the run was cancelled.
	StatusError Status = "error"
)

// Event reports progress for one translation unit.
type Event struct {
	TU       string
	Status   Status
	Resolved int
	Total    int
	Elapsed  time.Duration
}

// ProgressSink consumes progress events. It is called from worker goroutines.
type ProgressSink interface {
	OnEvent(Event)
}

// ChannelSink forwards events into a channel.
type ChannelSink struct {
	Ch chan<- Event
}

func (s ChannelSink) OnEvent(evt Event) {
	if s.Ch == nil {
		return
	}
	s.Ch <- evt
}

func emit(sink ProgressSink, evt Event) {
	if sink != nil {
		sink.OnEvent(evt)
	}
}
