package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"toolforge/internal/catalog"
	"toolforge/internal/installer"
)

// Reporter adapts bubbletea message sending to the
// installer.ProgressReporter interface, turning engine callbacks into row
// updates.
type Reporter struct {
	send func(tea.Msg)
}

// NewReporter constructs a reporter around a send function, normally
// tea.Program.Send.
func NewReporter(send func(tea.Msg)) *Reporter {
	return &Reporter{send: send}
}

// Start implements installer.ProgressReporter.
func (r *Reporter) Start(spec catalog.ToolSpec) {
	r.send(ToolUpdateMsg{Tool: spec.Name, Status: StatusChecking})
}

// Phase implements installer.ProgressReporter.
func (r *Reporter) Phase(tool string, pr installer.PhaseResult) {
	r.send(ToolUpdateMsg{
		Tool:   tool,
		Phase:  string(pr.Phase),
		Status: phaseStatus(pr.Phase),
		Detail: pr.Detail,
	})
}

// Complete implements installer.ProgressReporter.
func (r *Reporter) Complete(report installer.Report) {
	msg := ToolUpdateMsg{Tool: report.Tool, Status: completionStatus(report)}
	switch {
	case report.Status == installer.StatusFailed:
		msg.Phase = string(report.FailedPhase)
		if report.Err != nil {
			msg.Detail = report.Err.Error()
		}
	case report.Observed() != "":
		msg.Detail = report.Observed()
	}
	r.send(msg)
}

func phaseStatus(phase installer.Phase) string {
	switch phase {
	case installer.PhaseCheckPrereqs, installer.PhaseInstallPrereqs, installer.PhaseVerifyPrereqs:
		return StatusPrereqs
	case installer.PhaseCheckExisting:
		return StatusChecking
	case installer.PhaseInstall:
		return StatusInstalling
	case installer.PhaseValidate:
		return StatusValidating
	default:
		return StatusChecking
	}
}

func completionStatus(report installer.Report) string {
	switch report.Status {
	case installer.StatusAlreadySatisfied:
		return StatusSatisfied
	case installer.StatusFailed:
		return StatusFailed
	default:
		if len(report.Warnings()) > 0 {
			return StatusPartial
		}
		return StatusDone
	}
}
