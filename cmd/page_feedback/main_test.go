package main

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"page-feedback/internal/feedback/ingress"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("ENVIRONMENT", "staging")
	t.Setenv("QUEUE_BACKEND", "memory")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("CONFIG_PATH", "")

	var out bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&out)
	root.SetErr(io.Discard)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCommandArgs(t *testing.T) {
	_, err := run(t, "commit", "sqs")
	assert.Error(t, err)

	_, err = run(t, "commit")
	assert.Error(t, err)

	_, err = run(t, "enqueue", "problem")
	assert.ErrorContains(t, err, "exactly one of --email or --raw")
}

func TestEnqueueRaw(t *testing.T) {
	path := writeFile(t, "legacy.txt", "2024-03-01;esdc;B;EI;T;https://x/en/;No;Other;a;b")

	out, err := run(t, "enqueue", "problem", "--raw", path)
	require.NoError(t, err)

	var sub ingress.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &sub))
	assert.True(t, sub.Queued)
	assert.NotEmpty(t, sub.MessageID)
}

func TestEnqueueEmail(t *testing.T) {
	path := writeFile(t, "survey.eml",
		"Subject: t\r\nContent-Type: text/html\r\n\r\n<html><body><pre>a~!~b</pre></body></html>")

	out, err := run(t, "enqueue", "toptask", "--email", path)
	require.NoError(t, err)

	var sub ingress.Submission
	require.NoError(t, json.Unmarshal([]byte(out), &sub))
	assert.True(t, sub.Queued)

	missing := writeFile(t, "plain.eml", "Subject: t\r\nContent-Type: text/plain\r\n\r\nhello")
	out, err = run(t, "enqueue", "toptask", "--email", missing)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &sub))
	assert.False(t, sub.Queued)
}
