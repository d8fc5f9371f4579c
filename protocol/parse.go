package protocol

import "strings"

// Split decodes one network read into the commands it carries, in arrival
// order. The buffer is lower-cased as a whole before any splitting, so
// command names and arguments are both case-insensitive. Carriage returns
// count as line breaks and blank lines are dropped; a read containing only
// whitespace therefore yields no commands at all.
func Split(buf []byte) []Command {
	msg := lowerASCII(buf)
	msg = strings.ReplaceAll(msg, "\r", "\n")

	var cmds []Command
	for _, line := range strings.Split(msg, "\n") {
		if line == "" {
			continue
		}
		cmds = append(cmds, parseLine(line))
	}
	return cmds
}

// parseLine splits one command: every colon-separated token but the last
// is a namespace step, and the last token splits on single spaces into
// the leaf followed by its arguments.
func parseLine(line string) Command {
	cmd := Command{Raw: line}

	rest := line
	if segs := strings.Split(line, ":"); len(segs) > 1 {
		cmd.Path = segs[:len(segs)-1]
		rest = segs[len(segs)-1]
	}

	toks := strings.Split(rest, " ")
	cmd.Leaf = toks[0]
	if len(toks) > 1 {
		cmd.Args = toks[1:]
	}
	return cmd
}

// lowerASCII folds A-Z to a-z and leaves every other byte alone, so
// payloads in any single-byte encoding survive the pass unmangled.
// strings.ToLower would rewrite invalid UTF-8 sequences.
func lowerASCII(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out[i] = c
	}
	return string(out)
}
