package cmd

import (
	"fmt"
	"io"
	"time"

	"oauthcheck/internal/flow"
	strutil "oauthcheck/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// detailMaxLen bounds the detail column of the report table.
const detailMaxLen = 80

// renderReport prints the per-step summary of a run.
func renderReport(out io.Writer, report *flow.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(fmt.Sprintf("Run %s (%s)", report.RunID, report.Duration.Round(time.Millisecond)))
	t.AppendHeader(table.Row{"Step", "Status", "Detail"})

	for _, step := range report.Steps {
		t.AppendRow(table.Row{step.Name, formatStepStatus(step.Status), strutil.SingleLine(step.Detail, detailMaxLen)})
	}

	t.AppendSeparator()
	t.AppendRow(table.Row{"result", formatResult(report), ""})
	t.Render()
}

func formatStepStatus(status flow.StepStatus) string {
	switch status {
	case flow.StepOK:
		return text.FgGreen.Sprint("ok")
	case flow.StepWarning:
		return text.FgYellow.Sprint("warning")
	case flow.StepFailed:
		return text.FgRed.Sprint("failed")
	case flow.StepSkipped:
		return text.FgHiBlack.Sprint("skipped")
	default:
		return text.FgHiBlack.Sprint(string(status))
	}
}

func formatResult(report *flow.Report) string {
	if report.Succeeded() {
		return text.FgGreen.Sprint("flow completed")
	}
	return text.FgRed.Sprint("flow not completed")
}
