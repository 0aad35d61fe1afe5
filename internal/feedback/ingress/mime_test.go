package ingress

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func crlf(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

func alternativeEmail() []byte {
	html := base64.StdEncoding.EncodeToString([]byte("<html><body><pre>a~!~b</pre></body></html>"))
	return crlf(
		"From: form@example.gc.ca",
		"To: feedback@example.gc.ca",
		"Subject: feedback",
		"MIME-Version: 1.0",
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"2024-03-01;ESDC;Caf=C3=A9;section",
		"--inner",
		"Content-Type: text/html; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		html,
		"--inner--",
		"--outer",
		"Content-Type: application/pdf",
		"",
		"binary",
		"--outer--",
		"",
	)
}

func TestFirstPart_NestedMultipart(t *testing.T) {
	plain, err := FirstPart(alternativeEmail(), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01;ESDC;Café;section", plain)

	html, err := FirstPart(alternativeEmail(), "text/html")
	require.NoError(t, err)
	assert.Equal(t, "<html><body><pre>a~!~b</pre></body></html>", html)
}

func TestFirstPart_SinglePart(t *testing.T) {
	raw := crlf(
		"Subject: plain",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"one;two=3Bthree",
	)
	text, err := FirstPart(raw, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "one;two;three", text)
}

func TestFirstPart_Missing(t *testing.T) {
	raw := crlf(
		"Subject: plain only",
		"Content-Type: text/plain",
		"",
		"hello",
	)
	_, err := FirstPart(raw, "text/html")
	assert.ErrorIs(t, err, ErrNoBodyPart)

	_, err = FirstPart([]byte("not a mime message"), "text/plain")
	assert.Error(t, err)
}

func sesEnvelope(t *testing.T, content string) []byte {
	t.Helper()
	msg, err := json.Marshal(map[string]any{"content": content})
	require.NoError(t, err)
	env, err := json.Marshal(map[string]any{
		"Records": []map[string]any{{
			"EventSource": "aws:sns",
			"Sns":         map[string]any{"Message": string(msg)},
		}},
	})
	require.NoError(t, err)
	return env
}

func TestUnwrapEmail(t *testing.T) {
	mimeText := string(alternativeEmail())

	raw, ok := UnwrapEmail(sesEnvelope(t, mimeText))
	require.True(t, ok)
	assert.Equal(t, mimeText, string(raw))

	raw, ok = UnwrapEmail(sesEnvelope(t, base64.StdEncoding.EncodeToString([]byte(mimeText))))
	require.True(t, ok)
	assert.Equal(t, mimeText, string(raw), "base64 content is decoded")

	raw, ok = UnwrapEmail([]byte(mimeText))
	require.True(t, ok)
	assert.Equal(t, mimeText, string(raw), "raw MIME passes through")

	_, ok = UnwrapEmail(sesEnvelope(t, ""))
	assert.False(t, ok)

	_, ok = UnwrapEmail([]byte("   "))
	assert.False(t, ok)
}

func TestUnwrapEmail_EmptyRecords(t *testing.T) {
	_, ok := UnwrapEmail([]byte(`{"Records":[]}`))
	assert.False(t, ok)

	raw, ok := UnwrapEmail([]byte(`{"other":"json"}`))
	assert.True(t, ok)
	assert.Equal(t, `{"other":"json"}`, string(raw))
}
