package model

import "time"

// Checkpoint records the progress of a run so it can be resumed. There is one
// checkpoint per log file.
type Checkpoint struct {
	// Identifier of the last test that completed
	LastTest string `json:"last_test"`
	// Identifier of the next test to run, nil once the run is complete
	NextTest *string `json:"next_test"`
	// Index of LastTest in the run's test list
	LastIndex int `json:"last_index"`
	// Number of tests in the run's test list
	Total int `json:"total"`
	// Run mode (csv or full_suite)
	Mode Mode `json:"mode"`
	// Where the test list came from (CSV file, discovery targets or log file)
	Source string `json:"source,omitempty"`
	// Target environment root
	Target string `json:"target,omitempty"`
	// Run ID of the run that wrote this checkpoint
	RunID string `json:"run_id,omitempty"`
	// Time of the last update
	Updated time.Time `json:"updated"`
}

// Complete reports whether the checkpointed run reached the end of its list.
func (c *Checkpoint) Complete() bool {
	return c.NextTest == nil
}

// Next returns the next test identifier or an empty string.
func (c *Checkpoint) Next() string {
	if c.NextTest == nil {
		return ""
	}
	return *c.NextTest
}
