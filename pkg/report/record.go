package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/zen-systems/planwright/pkg/adapter"
	"github.com/zen-systems/planwright/pkg/artifact"
	"github.com/zen-systems/planwright/pkg/pipeline"
)

// RunRecord is the machine-readable companion of a transcript.
type RunRecord struct {
	ID         string        `json:"id"`
	Topic      string        `json:"topic"`
	Adapter    string        `json:"adapter"`
	Model      string        `json:"model"`
	Context    string        `json:"context"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	TotalUsage adapter.Usage `json:"total_usage"`
	TotalCost  adapter.Cost  `json:"total_cost"`
	Stages     []StageRecord `json:"stages"`
}

// StageRecord captures one stage of a run.
type StageRecord struct {
	Name           string        `json:"name"`
	Ordinal        int           `json:"ordinal"`
	Agent          string        `json:"agent,omitempty"`
	DependsOn      []string      `json:"depends_on,omitempty"`
	PromptHash     string        `json:"prompt_hash"`
	OutputHash     string        `json:"output_hash"`
	OutputChars    int           `json:"output_chars"`
	Usage          adapter.Usage `json:"usage"`
	Cost           adapter.Cost  `json:"cost"`
	Retries        int           `json:"retries"`
	DurationMillis int64         `json:"duration_ms"`
}

// NewRunRecord builds the record of a run in stage order.
func NewRunRecord(outputs *pipeline.RunOutputs, specs []pipeline.StageSpec) RunRecord {
	record := RunRecord{
		ID:         outputs.RunID,
		Topic:      outputs.Topic,
		Adapter:    outputs.Adapter,
		Model:      outputs.Model,
		Context:    outputs.Context.String(),
		StartedAt:  outputs.StartedAt,
		FinishedAt: outputs.FinishedAt,
		TotalUsage: outputs.TotalUsage,
		TotalCost:  outputs.TotalCost,
	}
	for _, spec := range specs {
		res, ok := outputs.Get(spec.Name)
		if !ok {
			continue
		}
		record.Stages = append(record.Stages, StageRecord{
			Name:           spec.Name,
			Ordinal:        spec.Ordinal,
			Agent:          spec.Agent,
			DependsOn:      spec.DependsOn,
			PromptHash:     artifact.HashText(res.Prompt()),
			OutputHash:     res.Artifact.Hash,
			OutputChars:    res.Artifact.Len(),
			Usage:          res.Usage,
			Cost:           res.Report.Cost,
			Retries:        res.Report.Retries,
			DurationMillis: res.Duration.Milliseconds(),
		})
	}
	return record
}

// WriteRecord writes run_<stamp>.json next to the transcript. Partial runs
// are accepted so a failed run can still be inspected.
func (w *Writer) WriteRecord(outputs *pipeline.RunOutputs, specs []pipeline.StageSpec) (string, error) {
	if outputs == nil {
		return "", fmt.Errorf("run outputs are required")
	}
	data, err := json.MarshalIndent(NewRunRecord(outputs, specs), "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}

	f, err := createUnique(w.dir, recordPrefix, w.now().Format(timestampLayout), ".json")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
