package colours

import "github.com/fatih/color"

// Color scheme for the CLI
var (
	Title     = color.New(color.FgCyan, color.Bold)
	Prompt    = color.New(color.FgGreen, color.Bold)
	User      = color.New(color.FgGreen)
	Assistant = color.New(color.FgCyan)
	Task      = color.New(color.FgMagenta)
	Error     = color.New(color.FgRed, color.Bold)
	Success   = color.New(color.FgGreen)
	Info      = color.New(color.FgBlue)
	Warning   = color.New(color.FgYellow)
)
