package pipeline

import (
	"fmt"
	"strings"
	"time"

	"github.com/zen-systems/planwright/pkg/adapter"
	"github.com/zen-systems/planwright/pkg/artifact"
)

// StageResult captures execution results for a stage.
type StageResult struct {
	Name     string
	Ordinal  int
	Artifact *artifact.Artifact
	Usage    adapter.Usage
	Report   adapter.CallReport
	Duration time.Duration
}

// Text returns the generated text.
func (r *StageResult) Text() string {
	if r == nil || r.Artifact == nil {
		return ""
	}
	return r.Artifact.Content
}

// Prompt returns the assembled user message sent for this stage.
func (r *StageResult) Prompt() string {
	if r == nil || r.Artifact == nil {
		return ""
	}
	return r.Artifact.Prompt
}

// RunOutputs is the ordered, append-only mapping from stage name to result
// for one pipeline run.
type RunOutputs struct {
	RunID      string
	Topic      string
	Adapter    string
	Model      string
	Context    ContextPolicy
	StartedAt  time.Time
	FinishedAt time.Time
	TotalUsage adapter.Usage
	TotalCost  adapter.Cost

	results []*StageResult
	index   map[string]int
}

// NewRunOutputs creates an empty result set.
func NewRunOutputs(runID, topic string) *RunOutputs {
	return &RunOutputs{
		RunID:     runID,
		Topic:     topic,
		TotalCost: adapter.Cost{Currency: "USD"},
		index:     make(map[string]int),
	}
}

// Add appends the result of the stage that just completed. Duplicate names
// and empty text are rejected; stored results are never replaced.
func (o *RunOutputs) Add(r *StageResult) error {
	if r == nil || r.Name == "" {
		return fmt.Errorf("stage result must be named")
	}
	if strings.TrimSpace(r.Text()) == "" {
		return fmt.Errorf("stage %s: %w", r.Name, ErrEmptyCompletion)
	}
	if o.index == nil {
		o.index = make(map[string]int)
	}
	if _, ok := o.index[r.Name]; ok {
		return fmt.Errorf("stage %s already has a result", r.Name)
	}
	o.index[r.Name] = len(o.results)
	o.results = append(o.results, r)
	o.TotalUsage = o.TotalUsage.Add(r.Usage)
	o.TotalCost.Amount += r.Report.Cost.Amount
	if r.Report.Cost.IsEstimate {
		o.TotalCost.IsEstimate = true
		o.TotalCost.PricingModel = r.Report.Cost.PricingModel
	}
	return nil
}

// Get returns the result stored for a stage.
func (o *RunOutputs) Get(name string) (*StageResult, bool) {
	if o == nil {
		return nil, false
	}
	i, ok := o.index[name]
	if !ok {
		return nil, false
	}
	return o.results[i], true
}

// Text returns the generated text for a stage, or "" if it has not run.
func (o *RunOutputs) Text(name string) string {
	r, _ := o.Get(name)
	return r.Text()
}

// Names returns the completed stage names in execution order.
func (o *RunOutputs) Names() []string {
	if o == nil {
		return nil
	}
	names := make([]string, len(o.results))
	for i, r := range o.results {
		names[i] = r.Name
	}
	return names
}

// Results returns the completed results in execution order.
func (o *RunOutputs) Results() []*StageResult {
	if o == nil {
		return nil
	}
	return append([]*StageResult(nil), o.results...)
}

// Len returns the number of completed stages.
func (o *RunOutputs) Len() int {
	if o == nil {
		return 0
	}
	return len(o.results)
}

// Texts returns a plain name -> text copy.
func (o *RunOutputs) Texts() map[string]string {
	out := make(map[string]string, o.Len())
	for _, r := range o.Results() {
		out[r.Name] = r.Text()
	}
	return out
}

// CompleteFor reports whether every stage in specs has a result.
func (o *RunOutputs) CompleteFor(specs []StageSpec) error {
	for _, s := range specs {
		if _, ok := o.Get(s.Name); !ok {
			return fmt.Errorf("stage %s has no result", s.Name)
		}
	}
	return nil
}
