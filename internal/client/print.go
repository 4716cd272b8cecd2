package client

import (
	"fmt"
	"io"

	"github.com/calacuda/auto-desk/internal/server"
	"github.com/fatih/color"
)

var (
	successLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	errorLabel   = color.New(color.FgRed, color.Bold).SprintFunc()
)

// Print writes a one-line status for r followed by its message, if any.
func Print(w io.Writer, r server.Reply) {
	if r.OK() {
		fmt.Fprintln(w, successLabel("[SUCCESS]"))
	} else {
		fmt.Fprintf(w, "%s code %d\n", errorLabel("[ERROR]"), r.Code)
	}
	if r.Msg != "" {
		fmt.Fprintln(w, r.Msg)
	}
}
