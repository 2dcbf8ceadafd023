package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mevlog-go/mevlog/internal/model"
)

func TestReportErrorNilReturnsZero(t *testing.T) {
	require.Equal(t, 0, reportError(formatText, nil))
}

func TestReportErrorAlwaysExitsOne(t *testing.T) {
	err := model.NewError(model.KindConfig, "op", errors.New("boom"))
	require.Equal(t, 1, reportError(formatText, err))
	require.Equal(t, 1, reportError(formatJSON, err))
	require.Equal(t, 1, reportError(formatJSONPretty, err))
}

func TestUserMessageUnwrapsModelError(t *testing.T) {
	err := model.NewError(model.KindNetwork, "Dial", errors.New("connection refused"))
	msg := userMessage(err)
	require.Contains(t, msg, "connection refused")
}

func TestUserMessagePlainError(t *testing.T) {
	require.Equal(t, "plain failure", userMessage(errors.New("plain failure")))
}

func TestReportErrorJSONShape(t *testing.T) {
	// reportError writes to os.Stderr directly; exercise the payload shape
	// through errorPayload/json encoding instead of capturing stderr.
	payload := errorPayload{Error: userMessage(errors.New("bad input"))}
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(payload))
	require.JSONEq(t, `{"error":"bad input"}`, buf.String())
}
