package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// WriteCommand writes a single command line to the given writer,
// appending the terminator if the caller left it off.
func WriteCommand(w io.Writer, line string) error {
	if !strings.HasSuffix(line, Terminator) {
		line += Terminator
	}
	if _, err := io.WriteString(w, line); err != nil {
		return fmt.Errorf("write error: %w", err)
	}
	return nil
}

// ReadResponse reads one response line from the reader, terminator
// stripped. Callers that issue several commands in one write should keep
// reading from the same bufio.Reader, one line per command sent.
func ReadResponse(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read error: %w", err)
	}
	return strings.TrimSuffix(line, Terminator), nil
}

// IsError reports whether a response line carries a command failure.
func IsError(line string) bool {
	return strings.HasPrefix(line, ErrorPrefix)
}
