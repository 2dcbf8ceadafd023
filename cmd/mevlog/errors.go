package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mevlog-go/mevlog/internal/model"
)

// errorPayload is the JSON shape printed to stderr when --format is one of
// the json* variants and a command fails (§6: `{"error": "..."}`).
type errorPayload struct {
	Error string `json:"error"`
}

// reportError prints err to stderr in the shape the active format expects
// and returns the process exit code to use. Every exit code is 1 (§6: "exit
// codes: 0 success, 1 user-visible error") — the code never varies by
// ErrorKind, only the message does.
func reportError(format outputFormat, err error) int {
	if err == nil {
		return 0
	}

	if format == formatText {
		fmt.Fprintln(os.Stderr, userMessage(err))
		return 1
	}

	payload := errorPayload{Error: userMessage(err)}
	enc := json.NewEncoder(os.Stderr)
	if format.pretty() {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(payload)
	return 1
}

// userMessage extracts the message a human or a script should see. A
// *model.Error is rendered as "<Kind>: <op>: <err>"; anything else (flag
// parsing errors from urfave/cli, for instance) is printed as-is.
func userMessage(err error) string {
	var merr *model.Error
	if errors.As(err, &merr) {
		return merr.Error()
	}
	return err.Error()
}
