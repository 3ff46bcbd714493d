// +build nomon

package hdrhistogram

// Times calls the callback with all of the states that have been
// captured. Built with the nomon tag, there are none.
func Times(func(string, *State) bool) {}

// Thunk is a type that allows one to get the benefits of Start without having to
// compute the caller every time it's called. Zero values are valid.
type Thunk struct{}

// Start returns a Timer where the name is chosen the first time by the caller. Don't
// use the same Thunk from different functions/methods.
func (t *Thunk) Start() Timer { return Timer{} }

// Start returns a Timer using the calling function for the name.
func Start() Timer { return Timer{} }

// StartNamed returns a Timer that records a duration when its Stop method is called.
func StartNamed(name string) Timer { return Timer{} }

// Timer keeps track of the state necessary to record timing info.
type Timer struct{}

// Stop records the timing info.
func (Timer) Stop(*error) {}
