package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/zen-systems/planwright/pkg/pipeline"
)

const ruleWidth = 80

var (
	doubleRule = strings.Repeat("=", ruleWidth)
	singleRule = strings.Repeat("-", ruleWidth)
)

// renderTranscript writes the banner and one section per stage. The body
// holds no timestamps so identical runs render identically.
func renderTranscript(out io.Writer, outputs *pipeline.RunOutputs, specs []pipeline.StageSpec) error {
	bw := bufio.NewWriter(out)

	fmt.Fprintln(bw, doubleRule)
	fmt.Fprintf(bw, "PRODUCT PLAN: %s\n", strings.ToUpper(outputs.Topic))
	fmt.Fprintln(bw, doubleRule)
	fmt.Fprintln(bw)

	for _, spec := range specs {
		fmt.Fprintln(bw, SectionHeader(spec))
		fmt.Fprintln(bw, singleRule)
		text := outputs.Text(spec.Name)
		fmt.Fprint(bw, text)
		if !strings.HasSuffix(text, "\n") {
			fmt.Fprintln(bw)
		}
		fmt.Fprintln(bw)
	}

	return bw.Flush()
}

// SectionHeader returns the transcript header of a stage.
func SectionHeader(spec pipeline.StageSpec) string {
	return fmt.Sprintf("PHASE %d: %s", spec.Ordinal, spec.Title)
}

func renderSummary(out io.Writer, outputs *pipeline.RunOutputs, specs []pipeline.StageSpec, now time.Time, transcriptName string) error {
	bw := bufio.NewWriter(out)

	fmt.Fprintln(bw, "EXECUTIVE SUMMARY")
	fmt.Fprintln(bw, doubleRule)
	fmt.Fprintf(bw, "%s - Product Plan\n", outputs.Topic)
	fmt.Fprintf(bw, "Date: %s\n", now.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(bw, "Run ID: %s\n", outputs.RunID)
	fmt.Fprintf(bw, "Model: %s/%s\n", outputs.Adapter, outputs.Model)
	fmt.Fprintf(bw, "Context: %s\n\n", outputs.Context)

	fmt.Fprintln(bw, "WORKFLOW PHASES COMPLETED:")
	for _, spec := range specs {
		label := spec.Summary
		if label == "" {
			label = spec.Title
		}
		fmt.Fprintf(bw, "✓ %s\n", label)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "KEY DELIVERABLES:")
	n := 0
	for _, spec := range specs {
		if spec.Deliverable == "" {
			continue
		}
		n++
		fmt.Fprintf(bw, "%d. %s\n", n, spec.Deliverable)
	}
	fmt.Fprintln(bw)

	fmt.Fprintln(bw, "USAGE:")
	tw := tabwriter.NewWriter(bw, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tPROMPT\tCOMPLETION\tTOTAL\tRETRIES\tCOST (USD)")
	for _, res := range outputs.Results() {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%s\n",
			res.Name,
			res.Usage.PromptTokens,
			res.Usage.CompletionTokens,
			res.Usage.TotalTokens,
			res.Report.Retries,
			formatCost(res.Report.Cost.Amount, res.Report.Cost.IsEstimate))
	}
	fmt.Fprintf(tw, "total\t%d\t%d\t%d\t\t%s\n",
		outputs.TotalUsage.PromptTokens,
		outputs.TotalUsage.CompletionTokens,
		outputs.TotalUsage.TotalTokens,
		formatCost(outputs.TotalCost.Amount, outputs.TotalCost.IsEstimate))
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintln(bw)

	fmt.Fprintf(bw, "All outputs saved in %s\n", transcriptName)
	return bw.Flush()
}

func formatCost(amount float64, estimated bool) string {
	if !estimated {
		return "n/a"
	}
	return fmt.Sprintf("~%.4f", amount)
}
