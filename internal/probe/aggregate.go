package probe

// Summary collapses a batch of outcomes into its two partitions. Scan
// engines build their result types from it.
type Summary[U any] struct {
	// Total is the number of units in the batch.
	Total int
	// Succeeded is the number of successful outcomes.
	Succeeded int
	// Failed is the number of failed outcomes.
	Failed int
	// Successes holds successful outcomes in original unit order.
	Successes []Outcome[U]
	// Failures holds failed outcomes in original unit order.
	Failures []Outcome[U]
}

// Summarize partitions outcomes into successes and failures, preserving
// the original unit order within each partition.
func Summarize[U any](outcomes []Outcome[U]) Summary[U] {
	s := Summary[U]{Total: len(outcomes)}
	for _, out := range outcomes {
		if out.Success {
			s.Successes = append(s.Successes, out)
		} else {
			s.Failures = append(s.Failures, out)
		}
	}
	s.Succeeded = len(s.Successes)
	s.Failed = len(s.Failures)
	return s
}
