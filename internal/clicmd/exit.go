package clicmd

// Exit codes.
const (
	exitSuccess     = 0
	exitScriptError = 1
	exitConfigError = 2
	exitTimeout     = 3
)
