// Package tunable implements online autotuning for operations with several
// functionally equivalent implementations. Candidates are benchmarked at
// runtime on first encounter of a parameter signature, the fastest is
// selected, and the decision is cached so later calls dispatch directly.
package tunable
