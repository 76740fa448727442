package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// ErrorLevel represents the severity of a message
type ErrorLevel int

const (
	ErrorLevelError ErrorLevel = iota
	ErrorLevelWarning
	ErrorLevelInfo
)

// ErrorOptions describes a multi-line error report
type ErrorOptions struct {
	Level        ErrorLevel
	Context      string
	Problem      string
	Consequence  string
	Suggestions  []string
	HelpCommands []string
	NoColor      bool
}

// FormatError renders a report such as
//
//	❌ UNKNOWN JOB: blob_cg
//
//	   Did you mean: blob_gc?
//
//	   → List jobs: egg jobs list
func FormatError(opts ErrorOptions) string {
	var b strings.Builder

	var symbol string
	var attr color.Attribute
	switch opts.Level {
	case ErrorLevelWarning:
		symbol, attr = "⚠️", color.FgYellow
	case ErrorLevelInfo:
		symbol, attr = "ℹ️", color.FgCyan
	default:
		symbol, attr = "❌", color.FgRed
	}
	head := color.New(attr, color.Bold)
	body := color.New(attr)
	hint := color.New(color.FgYellow)
	help := color.New(color.FgCyan)
	if opts.NoColor {
		for _, c := range []*color.Color{head, body, hint, help} {
			c.DisableColor()
		}
	}

	if opts.Context != "" {
		head.Fprintf(&b, "%s %s: %s\n", symbol, strings.ToUpper(opts.Context), opts.Problem)
	} else {
		head.Fprintf(&b, "%s %s\n", symbol, opts.Problem)
	}
	if opts.Consequence != "" {
		body.Fprintf(&b, "\n   %s\n", opts.Consequence)
	}
	if len(opts.Suggestions) > 0 {
		hint.Fprintf(&b, "\n   Did you mean: %s?\n", strings.Join(opts.Suggestions, ", "))
	}
	if len(opts.HelpCommands) > 0 {
		b.WriteString("\n")
		for _, cmd := range opts.HelpCommands {
			help.Fprintf(&b, "   → %s\n", cmd)
		}
	}
	return b.String()
}

// FormatSuccess renders a one-line success message
func FormatSuccess(message string, noColor bool) string {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	return green.Sprintf("✓ %s", message)
}

// WriteSuccess writes a success message to the writer
func WriteSuccess(w io.Writer, message string, noColor bool) {
	fmt.Fprintln(w, FormatSuccess(message, noColor))
}

// Info renders a one-line informational message
func Info(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelInfo, Problem: message, NoColor: noColor})
}

// Warning renders a warning
func Warning(message string, noColor bool) string {
	return FormatError(ErrorOptions{Level: ErrorLevelWarning, Problem: message, NoColor: noColor})
}

// ConfigError reports a configuration that could not be loaded
func ConfigError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context: "configuration error",
		Problem: message,
		HelpCommands: []string{
			"Settings are read from egg.yml, .env and EGG_* variables",
			"Get help: egg --help",
		},
		NoColor: noColor,
	})
}

// MigrationError reports a failed migration command
func MigrationError(message string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:     "migration failed",
		Problem:     message,
		Consequence: "The failing migration was rolled back; earlier ones stay applied.",
		HelpCommands: []string{
			"Check migration status: egg migrate status",
			"Get help: egg migrate --help",
		},
		NoColor: noColor,
	})
}

// NotFoundError reports an unknown name, suggesting close matches from
// candidates
func NotFoundError(kind, name string, candidates []string, listCommand string, noColor bool) string {
	return FormatError(ErrorOptions{
		Context:      kind + " not found",
		Problem:      name,
		Suggestions:  FindSimilar(name, candidates, nil),
		HelpCommands: []string{"List them: " + listCommand},
		NoColor:      noColor,
	})
}
