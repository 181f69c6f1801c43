package tui

// ToolUpdateMsg updates one tool's row. Empty fields leave the current
// value in place, so phase and completion updates can be partial.
type ToolUpdateMsg struct {
	Tool   string
	Phase  string
	Status string
	Detail string
}

// WorkDoneMsg signals that every tool reached a terminal state.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
