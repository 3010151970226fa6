package pass

import (
	"sync"
	"sync/atomic"
)

// Flag is a one-shot flag. The zero value is unset.
type Flag struct {
	set atomic.Bool
}

// TestAndSet sets the flag and reports whether this call was the one that
// set it. Exactly one of any number of concurrent callers gets true.
func (f *Flag) TestAndSet() bool {
	return f.set.CompareAndSwap(false, true)
}

// IsSet reports whether the flag has been set.
func (f *Flag) IsSet() bool { return f.set.Load() }

// setupState is the setup progress of one module.
type setupState struct {
	state atomic.Int32
}

const (
	setupPending int32 = iota
	setupStarted
	setupFailed
)

// claim reports whether the caller won the right to run the setup.
func (s *setupState) claim() bool {
	return s.state.CompareAndSwap(setupPending, setupStarted)
}

func (s *setupState) fail() { s.state.Store(setupFailed) }

func (s *setupState) failed() bool { return s.state.Load() == setupFailed }

// Globals is the state shared by every pass of a process: the counter of
// instrumented methods and the one-shot flags. Nothing in it blocks.
type Globals struct {
	ordinals    atomic.Uint64
	methods     atomic.Uint64
	versionLog  Flag
	globalSetup Flag
	modules     sync.Map // module name -> *setupState
}

// NewGlobals returns fresh process state. Tests use one per case.
func NewGlobals() *Globals { return &Globals{} }

// Methods returns the number of methods instrumented so far. A method whose
// modules failed took an ordinal but is not counted.
func (g *Globals) Methods() uint64 { return g.methods.Load() }

// nextOrdinal hands out the 1-based ordinal of a method compilation.
func (g *Globals) nextOrdinal() uint64 { return g.ordinals.Add(1) }

func (g *Globals) instrumented() { g.methods.Add(1) }

// moduleSetup returns the setup state of the named module.
func (g *Globals) moduleSetup(name string) *setupState {
	if s, ok := g.modules.Load(name); ok {
		return s.(*setupState)
	}
	s, _ := g.modules.LoadOrStore(name, new(setupState))
	return s.(*setupState)
}
