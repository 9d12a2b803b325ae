package tunable

import "errors"

var (
	ErrCorruptResultsFile = errors.New("corrupt tuning results file")
	ErrResultsFileVersion = errors.New("unsupported tuning results file version")
)
