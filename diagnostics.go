package main

import (
	"fmt"
	"io"
	"strings"

	"monke/compiler"
	"monke/token"
	"monke/vm"
)

// sourceLineAndColumn returns the full line of source containing byte
// offset start, plus start's zero-based column within that line.
func sourceLineAndColumn(source string, start int) (line string, col int) {
	if start > len(source) {
		start = len(source)
	}
	lineStart := strings.LastIndexByte(source[:start], '\n') + 1
	lineEnd := strings.IndexByte(source[lineStart:], '\n')
	if lineEnd == -1 {
		lineEnd = len(source)
	} else {
		lineEnd += lineStart
	}
	return source[lineStart:lineEnd], start - lineStart
}

// reportSpan prints the `Woops! <stage> failed!` diagnostic: the source
// line, a caret underline spanning [col, col+width), and the message.
func reportSpan(w io.Writer, stage, line string, col, width int, message string) {
	if width < 1 {
		width = 1
	}
	fmt.Fprintf(w, "Woops! %s failed!\n", stage)
	fmt.Fprintln(w, line)
	fmt.Fprintln(w, strings.Repeat(" ", col)+strings.Repeat("^", width))
	fmt.Fprintln(w, message)
}

// reportTokenError reports a diagnostic anchored to a specific token's
// span, used for lex and parse failures.
func reportTokenError(w io.Writer, stage, source string, tok token.Token, message string) {
	line, col := sourceLineAndColumn(source, tok.Start)
	reportSpan(w, stage, line, col, tok.Length, message)
}

// reportCompileError reports a compiler diagnostic, falling back to a
// bare message when the error carries no token (rare internal cases).
func reportCompileError(w io.Writer, source string, err *compiler.CompileError) {
	if err.Token.Length == 0 && err.Token.Start == 0 && err.Token.Line == 0 {
		fmt.Fprintf(w, "Woops! Compilation failed!\n%s\n", err.Message)
		return
	}
	reportTokenError(w, "Compilation", source, err.Token, err.Message)
}

// reportRuntimeError reports a VM failure. RuntimeError carries a
// call-stack trace of "<function> at line <n>" strings rather than a
// token span; the innermost frame's line is used to locate the source
// span to underline, and the rest of the trace follows the message.
func reportRuntimeError(w io.Writer, source string, err *vm.RuntimeError) {
	fmt.Fprintln(w, "Woops! Runtime failed!")
	if lineNo, ok := innermostLine(err.Trace); ok {
		if line, ok := sourceLine(source, lineNo); ok {
			fmt.Fprintln(w, line)
			fmt.Fprintln(w, strings.Repeat("^", 1))
		}
	}
	fmt.Fprintln(w, err.Message)
	for _, frame := range err.Trace {
		fmt.Fprintf(w, "\tat %s\n", frame)
	}
}

// innermostLine extracts the line number from the innermost ("<fn> at
// line <n>") trace entry.
func innermostLine(trace []string) (int, bool) {
	if len(trace) == 0 {
		return 0, false
	}
	idx := strings.LastIndex(trace[0], "line ")
	if idx == -1 {
		return 0, false
	}
	var n int
	if _, err := fmt.Sscanf(trace[0][idx:], "line %d", &n); err != nil {
		return 0, false
	}
	return n, true
}

// sourceLine returns the 1-based lineNo'th line of source.
func sourceLine(source string, lineNo int) (string, bool) {
	lines := strings.Split(source, "\n")
	if lineNo < 1 || lineNo > len(lines) {
		return "", false
	}
	return lines[lineNo-1], true
}
