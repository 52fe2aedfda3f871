package parser

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// SyntaxError describes a parse failure anchored to a source position. Hint
// carries the "Proper syntax" example shown under the caret.
type SyntaxError struct {
	File    string
	Line    int
	Column  int
	Message string
	Hint    string
}

func CreateSyntaxError(file string, line int, column int, message string, hint string) SyntaxError {
	return SyntaxError{
		File:    file,
		Line:    line,
		Column:  column,
		Message: message,
		Hint:    hint,
	}
}

func (e SyntaxError) Error() string {
	return fmt.Sprintf("💥 Syntax error:\n%s, line:%d, column:%d - %s", e.File, e.Line, e.Column, e.Message)
}

// Render formats a front-end error against its source text: the offending
// line, a caret pointing at the column, and the proper-syntax hint when one
// is known.
func Render(source string, file string, line int, column int, kind string, message string, hint string) string {
	var builder strings.Builder

	header := color.New(color.FgRed, color.Bold)
	builder.WriteString(header.Sprintf("%s: %s", kind, message))
	builder.WriteString("\n")
	builder.WriteString(fmt.Sprintf("  --> %s:%d:%d\n", file, line, column))

	lines := strings.Split(source, "\n")
	if line >= 1 && line <= len(lines) {
		sourceLine := lines[line-1]
		builder.WriteString(fmt.Sprintf("   | %s\n", sourceLine))
		caretPad := column
		if caretPad > len(sourceLine) {
			caretPad = len(sourceLine)
		}
		builder.WriteString("   | " + strings.Repeat(" ", caretPad) + color.YellowString("^") + "\n")
	}
	if hint != "" {
		builder.WriteString(color.CyanString("Proper syntax: %s", hint))
		builder.WriteString("\n")
	}
	return builder.String()
}
