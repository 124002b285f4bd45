package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/binarycomp-backend/internal/payouts"
)

func TestRunRejectsBadFlags(t *testing.T) {
	cases := map[string][]string{
		"none":    nil,
		"both":    {"-job", "rank-sweep", "-window", "2026-03-02T06:00"},
		"unknown": {"-since", "yesterday"},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			assert.Equal(t, exitFailure, run(args, &stdout, &stderr))
			assert.Empty(t, stdout.String())
			assert.NotEmpty(t, stderr.String())
		})
	}
}

func TestWindowExitCode(t *testing.T) {
	assert.Equal(t, exitOK, windowExitCode(nil))
	assert.Equal(t, exitOK, windowExitCode(&payouts.WindowReport{Created: 3}))
	assert.Equal(t, exitPartial, windowExitCode(&payouts.WindowReport{Created: 2, Failed: 1}))
}

func TestPrintReportWritesJSON(t *testing.T) {
	var out bytes.Buffer
	printReport(&out, &payouts.WindowReport{Events: 4, Created: 3, Skipped: 1})

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.EqualValues(t, 4, decoded["events"])
	assert.EqualValues(t, 3, decoded["created"])

	out.Reset()
	printReport(&out, nil)
	assert.Empty(t, out.String())
}
