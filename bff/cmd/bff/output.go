package main

import (
	"io"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
)

func printSuccess(w io.Writer, format string, a ...any) {
	successColor.Fprintf(w, "✓ "+format+"\n", a...)
}

func printWarn(w io.Writer, format string, a ...any) {
	warnColor.Fprintf(w, "⚠ "+format+"\n", a...)
}

func printInfo(w io.Writer, format string, a ...any) {
	infoColor.Fprintf(w, format+"\n", a...)
}

// printSchemaVersion reports the audit schema state for migrate status.
func printSchemaVersion(w io.Writer, version uint, dirty bool) {
	switch {
	case version == 0:
		printWarn(w, "no migrations applied")
	case dirty:
		printWarn(w, "schema version %d is dirty; fix it and force the version", version)
	default:
		printSuccess(w, "schema version %d", version)
	}
}
