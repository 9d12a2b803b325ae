package tunable

// Status is the outcome of a candidate invocation or a support probe.
type Status int

const (
	// OK means the call succeeded and its outputs are valid.
	OK Status = iota
	// Fail means the call was attempted but did not produce a valid result.
	Fail
	// Unsupported means the candidate cannot handle the given parameters.
	Unsupported
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Fail:
		return "FAIL"
	case Unsupported:
		return "UNSUPPORTED"
	default:
		return "UNKNOWN"
	}
}
