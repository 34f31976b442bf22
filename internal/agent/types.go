// Package agent runs the lead discovery pipeline: parse prompt, search,
// deep crawl, score, persist leads, and queue approval items.
package agent

import (
	"time"

	"github.com/sells-group/salesops/internal/approval"
	"github.com/sells-group/salesops/internal/model"
)

// RunStatus is the lifecycle state of a discovery run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCancelled RunStatus = "cancelled"
)

// Pipeline step names, reported through Progress.CurrentStep.
const (
	StepParsingPrompt     = "parsing_prompt"
	StepSearching         = "searching"
	StepProcessingResults = "processing_results"
	StepDeepCrawling      = "deep_crawling"
	StepScoring           = "scoring"
	StepCreatingLeads     = "creating_leads"
	StepCreatingApprovals = "creating_approvals"
	StepCompleted         = "completed"
)

// Input starts a discovery run. Either Prompt or Criteria must be set; when
// both are present the criteria win and the prompt is kept for the summary.
// Zero MaxResults and MinFitScore fall back to the agent defaults.
type Input struct {
	Prompt      string             `json:"prompt,omitempty"`
	Criteria    *model.ICPCriteria `json:"criteria,omitempty"`
	MaxResults  int                `json:"max_results,omitempty"`
	MinFitScore float64            `json:"min_fit_score,omitempty"`
}

// Summary aggregates the counts of one finished run.
type Summary struct {
	SearchResults int                   `json:"search_results"`
	DeepCrawled   int                   `json:"deep_crawled"`
	Qualified     int                   `json:"qualified"`
	Created       int                   `json:"created"`
	CreateErrors  int                   `json:"create_errors"`
	ByBucket      approval.BucketCounts `json:"by_bucket"`
	AvgFitScore   float64               `json:"avg_fit_score"`
	Prompt        string                `json:"prompt,omitempty"`
	Criteria      *model.ICPCriteria    `json:"criteria,omitempty"`
	Reason        string                `json:"reason,omitempty"`
}

// Output is the terminal result of a run. CreditsUsed stays zero while
// discovery runs on free sources only.
type Output struct {
	Status          RunStatus `json:"status"`
	Summary         Summary   `json:"summary"`
	LeadsDiscovered int       `json:"leads_discovered"`
	CreditsUsed     int       `json:"credits_used"`
	ApprovalItemIDs []string  `json:"approval_item_ids,omitempty"`
}

// Progress is a point-in-time snapshot of a running (or cancelling) run.
type Progress struct {
	RunID          string    `json:"run_id"`
	Status         RunStatus `json:"status"`
	Progress       int       `json:"progress"`
	CurrentStep    string    `json:"current_step"`
	ItemsProcessed int       `json:"items_processed"`
	ItemsTotal     int       `json:"items_total"`
	StartedAt      time.Time `json:"started_at"`
}
