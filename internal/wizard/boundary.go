package wizard

import "fmt"

// RenderFunc produces one screen of output and may fail.
type RenderFunc func() (string, error)

// Boundary wraps a fallible render function with a fallback. Once the
// wrapped function fails or panics, the boundary stays in the failed state
// and serves the fallback until Reset is called.
type Boundary struct {
	render   RenderFunc
	fallback string
	err      error
}

// NewBoundary wraps render with the given fallback output.
func NewBoundary(render RenderFunc, fallback string) *Boundary {
	return &Boundary{render: render, fallback: fallback}
}

// Render runs the wrapped function, converting errors and panics into the
// fallback output.
func (b *Boundary) Render() (out string) {
	if b.err != nil {
		return b.fallback
	}

	defer func() {
		if r := recover(); r != nil {
			b.err = fmt.Errorf("render panicked: %v", r)
			out = b.fallback
		}
	}()

	result, err := b.render()
	if err != nil {
		b.err = err
		return b.fallback
	}
	return result
}

// Failed reports whether the boundary is in the failed state.
func (b *Boundary) Failed() bool {
	return b.err != nil
}

// Err returns the captured fault, or nil.
func (b *Boundary) Err() error {
	return b.err
}

// Reset clears the fault so the next Render tries the wrapped function
// again.
func (b *Boundary) Reset() {
	b.err = nil
}
