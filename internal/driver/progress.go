package driver

import (
	"slices"
	"time"

	"codeweave/internal/dex"
	"codeweave/internal/pass"
)

// Status captures the progress of one method.
type Status string

const (
	// StatusQueued indicates the method is waiting for a worker.
	StatusQueued Status = "queued"
	// StatusWorking indicates the modules are running over the method.
	StatusWorking Status = "weaving"
	// StatusDone indicates the method was instrumented.
	StatusDone Status = "done"
	// StatusSkipped indicates every module skipped the method.
	StatusSkipped Status = "skipped"
	// StatusError indicates the method kept its original code after a failure.
	StatusError Status = "error"
)

// Event reports progress for one method.
type Event struct {
	Class   string
	Method  string
	Status  Status
	Err     error
	Elapsed time.Duration
}

// ProgressSink consumes progress events. OnEvent is called from worker
// goroutines.
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

func (o *Options) progress(ev Event) {
	if o.Progress != nil {
		o.Progress.OnEvent(ev)
	}
}

// Classes lists the classes of bin that define at least one method with
// code, in definition order. These are the rows a progress view shows.
func Classes(bin *dex.Binary) []string {
	if bin == nil {
		return nil
	}
	var out []string
	for i := range bin.ClassDefs {
		cd := &bin.ClassDefs[i]
		if slices.ContainsFunc(cd.Methods, func(em dex.EncodedMethod) bool { return em.Code != nil }) {
			out = append(out, bin.TypeDescriptor(cd.Class))
		}
	}
	return out
}

func statusOf(res *MethodResult) Status {
	switch {
	case res.Err != nil:
		return StatusError
	case res.Outcome == 0 || res.Outcome == pass.Instrumented:
		return StatusDone
	}
	return StatusSkipped
}

// NumMethods returns the number of methods of bin a run compiles.
func NumMethods(bin *dex.Binary) int {
	if bin == nil {
		return 0
	}
	return len(methodsWithCode(bin))
}
