package tunable

// Params is the capability a parameter object must provide so the tuner can
// benchmark candidates against it without understanding its contents.
//
// Signature is used only as a cache key and is never interpreted. DeepCopy
// must return a fully independent copy; the rotating flag tells the
// implementation the copy will be cycled through during measurement (device
// backed implementations may allocate it differently). Release frees any
// resources the copy holds; it is always called exactly once per copy the
// tuner makes.
type Params[P any] interface {
	Signature() string
	DeepCopy(rotating bool) P
	Size(rotating bool) int64
	NumericalCheck(other P) Status
	Release()
}

// Callable is one concrete implementation of a tunable operation.
//
// Call attempts the operation and reports OK on success. It must be safe to
// invoke repeatedly and against reused or rotated parameter copies.
// IsSupported is a support probe; implementations without a cheaper check
// simply delegate to Call.
type Callable[P any] interface {
	Call(params P) Status
	IsSupported(params P) Status
}

// CallableFunc adapts a plain function to the Callable interface. Attempting
// execution doubles as the support probe.
type CallableFunc[P any] func(params P) Status

func (f CallableFunc[P]) Call(params P) Status { return f(params) }

func (f CallableFunc[P]) IsSupported(params P) Status { return f(params) }
