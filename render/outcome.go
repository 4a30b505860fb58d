package render

// Status classifies one render attempt.
type Status string

const (
	// StatusCreated: no baseline existed; the capture became the baseline.
	StatusCreated Status = "created"
	// StatusUpdated: the capture diverged; the baseline was overwritten.
	StatusUpdated Status = "updated"
	// StatusMatched: the capture matched; the baseline was left untouched.
	StatusMatched Status = "matched"
	// StatusError: the render failed; Error carries the message.
	StatusError Status = "error"
)

// Outcome is the classified result of one render. It is created fresh
// per render and never mutated after being returned.
type Outcome struct {
	Status Status  `json:"status"`
	Path   string  `json:"path,omitempty"`
	SSIM   float64 `json:"ssim,omitempty"`
	Error  string  `json:"error,omitempty"`
}

func errorOutcome(err error) Outcome {
	return Outcome{Status: StatusError, Error: err.Error()}
}
