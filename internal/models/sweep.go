package models

import "time"

// CheckStatus is the terminal classification of one account check.
type CheckStatus string

const (
	CheckStatusNormal  CheckStatus = "normal"
	CheckStatusExpired CheckStatus = "expired"
	CheckStatusBanned  CheckStatus = "banned"
	CheckStatusFailed  CheckStatus = "failed"
)

// CheckResult is the outcome of checking a single account during a sweep.
type CheckResult struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	CreatedAt time.Time   `json:"createdAt"`
	ExpireAt  string      `json:"expireAt,omitempty"`
	Status    CheckStatus `json:"status"`
	Refreshed bool        `json:"refreshed"`
	Reason    string      `json:"reason,omitempty"`
}

// SweepSummary maps each terminal status to the number of accounts that
// finished the run with it.
type SweepSummary struct {
	Normal  int `json:"normal"`
	Expired int `json:"expired"`
	Banned  int `json:"banned"`
	Failed  int `json:"failed"`
}

// Add increments the bucket for the given status.
func (s *SweepSummary) Add(status CheckStatus) {
	switch status {
	case CheckStatusNormal:
		s.Normal++
	case CheckStatusExpired:
		s.Expired++
	case CheckStatusBanned:
		s.Banned++
	case CheckStatusFailed:
		s.Failed++
	}
}

// SweepReport aggregates one completed sweep run.
type SweepReport struct {
	RunID          string        `json:"runId"`
	RangeDays      int           `json:"rangeDays"`
	TotalEligible  int           `json:"totalEligible"`
	Checked        int           `json:"checked"`
	Summary        SweepSummary  `json:"summary"`
	RefreshedCount int           `json:"refreshedCount"`
	Truncated      bool          `json:"truncated"`
	Skipped        int           `json:"skipped"`
	StartedAt      time.Time     `json:"startedAt"`
	Duration       time.Duration `json:"duration"`
}
