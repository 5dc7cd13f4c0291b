package proto

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// DefaultMaxLine bounds a single protocol line.
const DefaultMaxLine = 64 * 1024

// ErrLineTooLong is returned when a peer sends a line over the configured limit.
var ErrLineTooLong = errors.New("line too long")

// LineReader reads newline-terminated lines from a byte stream.
type LineReader struct {
	r   *bufio.Reader
	max int
}

// NewLineReader wraps r. A max of zero or less selects DefaultMaxLine.
func NewLineReader(r io.Reader, max int) *LineReader {
	if max <= 0 {
		max = DefaultMaxLine
	}
	return &LineReader{r: bufio.NewReader(r), max: max}
}

// ReadLine returns the next line without its terminator. A trailing line with
// no newline is still returned; io.EOF is reported only when no bytes remain.
func (lr *LineReader) ReadLine() (string, error) {
	var b strings.Builder
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if b.Len()+len(chunk) > lr.max+1 {
			return "", ErrLineTooLong
		}
		b.Write(chunk)

		switch {
		case err == nil:
			return trimEOL(b.String()), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if b.Len() == 0 {
				return "", io.EOF
			}
			return trimEOL(b.String()), nil
		default:
			return "", err
		}
	}
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
