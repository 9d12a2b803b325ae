package tunable

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Results file layout: a few "Validator" header records followed by one
// record per decision.
//
//	Validator,TUNABLE_VERSION,1
//	Validator,SESSION,<uuid>
//	Validator,GO_VERSION,go1.26
//	GemmTunableOp[kernels.GemmParams],128_128_128,Tiled,0.8451
//
// Durations are mean per-call milliseconds.
const (
	resultsFileVersion = "1"

	validatorTag       = "Validator"
	validatorVersion   = "TUNABLE_VERSION"
	validatorSession   = "SESSION"
	validatorGoVersion = "GO_VERSION"
)

// WriteFile persists every decision to path, replacing the file if present.
func (m *TuningResultsManager) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create results file: %w", err)
	}
	if err := m.Write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Write serialises the decision snapshot to w. Records are sorted so output
// is deterministic for a given set of decisions.
func (m *TuningResultsManager) Write(w io.Writer) error {
	snapshot := m.Results()

	cw := csv.NewWriter(w)
	header := [][]string{
		{validatorTag, validatorVersion, resultsFileVersion},
		{validatorTag, validatorSession, uuid.NewString()},
		{validatorTag, validatorGoVersion, runtime.Version()},
	}
	for _, rec := range header {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write results header: %w", err)
		}
	}

	opSigs := make([]string, 0, len(snapshot))
	for opSig := range snapshot {
		opSigs = append(opSigs, opSig)
	}
	sort.Strings(opSigs)

	for _, opSig := range opSigs {
		ops := snapshot[opSig]
		paramsSigs := make([]string, 0, len(ops))
		for paramsSig := range ops {
			paramsSigs = append(paramsSigs, paramsSig)
		}
		sort.Strings(paramsSigs)
		for _, paramsSig := range paramsSigs {
			entry := ops[paramsSig]
			rec := []string{
				opSig,
				paramsSig,
				entry.Name,
				strconv.FormatFloat(durationMs(entry.Duration), 'f', -1, 64),
			}
			if err := cw.Write(rec); err != nil {
				return fmt.Errorf("write results record: %w", err)
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadFile loads decisions from path and merges them into the cache.
func (m *TuningResultsManager) ReadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open results file: %w", err)
	}
	defer f.Close()
	return m.Read(f)
}

// Read parses a results stream and merges its decisions. The stream is
// rejected if the TUNABLE_VERSION validator is missing or does not match;
// other validator keys are informational and ignored.
func (m *TuningResultsManager) Read(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	loaded := make(map[string]map[string]ResultEntry)
	versionSeen := false

	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrCorruptResultsFile, err)
		}
		if len(rec) > 0 && rec[0] == validatorTag {
			if len(rec) != 3 {
				return fmt.Errorf("%w: malformed validator record", ErrCorruptResultsFile)
			}
			if rec[1] == validatorVersion {
				if rec[2] != resultsFileVersion {
					return fmt.Errorf("%w: got %q, want %q", ErrResultsFileVersion, rec[2], resultsFileVersion)
				}
				versionSeen = true
			}
			continue
		}
		if len(rec) != 4 {
			return fmt.Errorf("%w: record has %d fields, want 4", ErrCorruptResultsFile, len(rec))
		}
		ms, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return fmt.Errorf("%w: bad duration %q", ErrCorruptResultsFile, rec[3])
		}
		opSig, paramsSig, name := rec[0], rec[1], rec[2]
		if opSig == "" || paramsSig == "" || name == "" {
			return fmt.Errorf("%w: empty signature or candidate name", ErrCorruptResultsFile)
		}
		ops, ok := loaded[opSig]
		if !ok {
			ops = make(map[string]ResultEntry)
			loaded[opSig] = ops
		}
		ops[paramsSig] = ResultEntry{Name: name, Duration: millis(ms)}
	}

	if !versionSeen {
		return fmt.Errorf("%w: missing %s validator", ErrCorruptResultsFile, validatorVersion)
	}

	m.Load(loaded)
	return nil
}

// jsonResult is the wire shape used by MarshalJSON and the debug API.
type jsonResult struct {
	Candidate  string  `json:"candidate"`
	DurationMs float64 `json:"duration_ms"`
}

// MarshalJSON renders the decision snapshot as
// {"op_sig": {"params_sig": {"candidate": ..., "duration_ms": ...}}}.
func (m *TuningResultsManager) MarshalJSON() ([]byte, error) {
	snapshot := m.Results()
	out := make(map[string]map[string]jsonResult, len(snapshot))
	for opSig, ops := range snapshot {
		converted := make(map[string]jsonResult, len(ops))
		for paramsSig, entry := range ops {
			converted[paramsSig] = jsonResult{
				Candidate:  entry.Name,
				DurationMs: durationMs(entry.Duration),
			}
		}
		out[opSig] = converted
	}
	return json.Marshal(out)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
