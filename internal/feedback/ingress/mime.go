package ingress

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

var ErrNoBodyPart = errors.New("ingress: no matching body part")

const maxMIMEDepth = 8

type headerGetter interface {
	Get(key string) string
}

// FirstPart returns the first part of the raw MIME message whose media type
// is mediaType, walking nested multiparts depth-first. Transfer encodings
// are undone; the text is returned as-is otherwise.
func FirstPart(raw []byte, mediaType string) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("read message: %w", err)
	}
	text, ok, err := walkPart(msg.Header, msg.Body, strings.ToLower(mediaType), 0)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoBodyPart, mediaType)
	}
	return text, nil
}

func walkPart(h headerGetter, body io.Reader, want string, depth int) (string, bool, error) {
	if depth > maxMIMEDepth {
		return "", false, nil
	}

	ct := h.Get("Content-Type")
	if ct == "" {
		ct = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(ct)
	if err != nil {
		// An unparseable Content-Type is treated like a missing one.
		mediaType = "text/plain"
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary := params["boundary"]
		if boundary == "" {
			return "", false, nil
		}
		mr := multipart.NewReader(body, boundary)
		for {
			part, err := mr.NextPart()
			if err == io.EOF {
				return "", false, nil
			}
			if err != nil {
				return "", false, fmt.Errorf("read multipart: %w", err)
			}
			text, ok, err := walkPart(part.Header, part, want, depth+1)
			_ = part.Close()
			if err != nil || ok {
				return text, ok, err
			}
		}
	}

	if mediaType != want {
		return "", false, nil
	}
	data, err := io.ReadAll(decodeTransfer(h.Get("Content-Transfer-Encoding"), body))
	if err != nil {
		return "", false, fmt.Errorf("decode %s part: %w", mediaType, err)
	}
	return string(data), true, nil
}

// decodeTransfer undoes base64 and quoted-printable. multipart.Reader already
// strips quoted-printable from nested parts, so this only sees it on
// single-part messages.
func decodeTransfer(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}
