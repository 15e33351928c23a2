package worker

// JobState is the lifecycle position of one file within a run.
type JobState string

const (
	StateDiscovered         JobState = "discovered"
	StateConverting         JobState = "converting"
	StateVerifying          JobState = "verifying"
	StateSucceeded          JobState = "succeeded"
	StateFailedConversion   JobState = "failed_conversion"
	StateFailedVerification JobState = "failed_verification"
	StateOriginalDeleted    JobState = "original_deleted"
)

// RunSummary is the externally observed result of a run. Failed counts
// conversion and verification failures only; deletion problems land in
// Warnings.
type RunSummary struct {
	RunID       string   `json:"run_id"`
	TotalFound  int      `json:"total_found"`
	Processed   int      `json:"processed"`
	Failed      int      `json:"failed"`
	Converted   int      `json:"converted"` // verified outputs
	Deleted     int      `json:"deleted"`   // originals removed
	Failures    []string `json:"failures"`
	Warnings    []string `json:"warnings"`
	InputBytes  int64    `json:"input_bytes"`
	OutputBytes int64    `json:"output_bytes"`
	Interrupted bool     `json:"interrupted"`
}

func (s *RunSummary) recordFailure(msg string) {
	s.Failed++
	s.Failures = append(s.Failures, msg)
}

func (s *RunSummary) recordWarning(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

// SpaceSaved returns the byte difference between converted inputs and their
// outputs. Positive means the outputs are smaller.
func (s *RunSummary) SpaceSaved() int64 {
	return s.InputBytes - s.OutputBytes
}
