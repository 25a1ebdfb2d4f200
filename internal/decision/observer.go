package decision

import "context"

// Observer is called after every synthesis attempt, success or failure,
// so callers can persist the exchange. Implementations must not block.
type Observer interface {
	AfterSynthesis(ctx context.Context, trace Trace)
}

// Trace is the material and result of one model exchange. BundleRef
// ties it to the stored decision made from the same bundle.
type Trace struct {
	Provider   string
	Symbol     string
	Interval   string
	BundleRef  string
	System     string
	User       string
	Raw        string
	State      ParseState
	Err        string
	ImageCount int
	Timestamp  int64
}
