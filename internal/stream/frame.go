package stream

import (
	"bytes"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// STOMP 1.2 commands used by the feed client.
const (
	CmdConnect     = "CONNECT"
	CmdConnected   = "CONNECTED"
	CmdSubscribe   = "SUBSCRIBE"
	CmdUnsubscribe = "UNSUBSCRIBE"
	CmdDisconnect  = "DISCONNECT"
	CmdMessage     = "MESSAGE"
	CmdReceipt     = "RECEIPT"
	CmdError       = "ERROR"
)

var ErrMalformedFrame = errors.New("malformed STOMP frame")

// Frame is one STOMP frame. A zero Command marks a heart-beat.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

func NewFrame(cmd string, kv ...string) Frame {
	f := Frame{Command: cmd, Headers: make(map[string]string, len(kv)/2)}
	for i := 0; i+1 < len(kv); i += 2 {
		f.Headers[kv[i]] = kv[i+1]
	}
	return f
}

func (f Frame) IsHeartbeat() bool { return f.Command == "" }

func (f Frame) Header(key string) string { return f.Headers[key] }

var (
	headerEscaper   = strings.NewReplacer("\\", `\\`, "\r", `\r`, "\n", `\n`, ":", `\c`)
	headerUnescaper = strings.NewReplacer(`\\`, "\\", `\r`, "\r", `\n`, "\n", `\c`, ":")
)

// escapes reports whether header octets are escaped for cmd; CONNECT and
// CONNECTED are exempt.
func escapes(cmd string) bool {
	return cmd != CmdConnect && cmd != CmdConnected
}

// Marshal encodes f with headers in sorted order. A body gets a
// content-length header.
func (f Frame) Marshal() []byte {
	var b bytes.Buffer
	b.WriteString(f.Command)
	b.WriteByte('\n')

	headers := f.Headers
	if len(f.Body) > 0 {
		headers = maps.Clone(headers)
		if headers == nil {
			headers = make(map[string]string, 1)
		}
		headers["content-length"] = strconv.Itoa(len(f.Body))
	}
	for _, k := range slices.Sorted(maps.Keys(headers)) {
		v := headers[k]
		if escapes(f.Command) {
			k, v = headerEscaper.Replace(k), headerEscaper.Replace(v)
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.WriteString(v)
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
	b.Write(f.Body)
	b.WriteByte(0)
	return b.Bytes()
}

// ParseFrame decodes one frame from a WebSocket message. A message made
// only of EOLs is a heart-beat. Repeated headers keep the first value.
func ParseFrame(data []byte) (Frame, error) {
	trimmed := bytes.TrimLeft(data, "\r\n")
	if len(trimmed) == 0 {
		return Frame{}, nil
	}

	head, rest, ok := bytes.Cut(trimmed, []byte("\n\n"))
	if !ok {
		head, rest, ok = bytes.Cut(trimmed, []byte("\r\n\r\n"))
	}
	if !ok {
		return Frame{}, fmt.Errorf("%w: no header terminator", ErrMalformedFrame)
	}

	lines := strings.Split(strings.ReplaceAll(string(head), "\r\n", "\n"), "\n")
	f := Frame{Command: lines[0], Headers: make(map[string]string, len(lines)-1)}
	if f.Command == "" {
		return Frame{}, fmt.Errorf("%w: empty command", ErrMalformedFrame)
	}
	for _, line := range lines[1:] {
		k, v, ok := strings.Cut(line, ":")
		if !ok {
			return Frame{}, fmt.Errorf("%w: header line %q", ErrMalformedFrame, line)
		}
		if escapes(f.Command) {
			k, v = headerUnescaper.Replace(k), headerUnescaper.Replace(v)
		}
		if _, seen := f.Headers[k]; !seen {
			f.Headers[k] = v
		}
	}

	if cl, ok := f.Headers["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil || n < 0 || n > len(rest) {
			return Frame{}, fmt.Errorf("%w: content-length %q", ErrMalformedFrame, cl)
		}
		f.Body = rest[:n]
		return f, nil
	}

	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return Frame{}, fmt.Errorf("%w: missing NUL terminator", ErrMalformedFrame)
	}
	f.Body = rest[:end]
	return f, nil
}

// parseHeartBeat reads a "cx,cy" heart-beat header in milliseconds.
func parseHeartBeat(v string) (int, int) {
	a, b, ok := strings.Cut(v, ",")
	if !ok {
		return 0, 0
	}
	x, err1 := strconv.Atoi(strings.TrimSpace(a))
	y, err2 := strconv.Atoi(strings.TrimSpace(b))
	if err1 != nil || err2 != nil || x < 0 || y < 0 {
		return 0, 0
	}
	return x, y
}
