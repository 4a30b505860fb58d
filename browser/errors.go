package browser

import "fmt"

// SelectorNotFoundError reports a selector that did not resolve within
// the action timeout. The message names the selector, never the
// underlying automation failure.
type SelectorNotFoundError struct {
	Selector string
}

func (e *SelectorNotFoundError) Error() string {
	return fmt.Sprintf("selector %q not found", e.Selector)
}

// FrameNotFoundError reports a frame selector that did not resolve.
type FrameNotFoundError struct {
	Frame string
}

func (e *FrameNotFoundError) Error() string {
	return fmt.Sprintf("frame %q not found", e.Frame)
}

// ElementNotFoundError reports an element whose bounding box could not
// be measured.
type ElementNotFoundError struct {
	Selector string
}

func (e *ElementNotFoundError) Error() string {
	return fmt.Sprintf("cannot measure element %q", e.Selector)
}
