package protocol

import (
	"fmt"
	"strconv"
)

// Args wraps the argument tokens of one command with typed accessors.
// Every accessor returns a BadArgument CmdError on failure, which the
// dispatcher downgrades to a plain acknowledgment, so handlers can
// propagate it directly and leave their state untouched.
type Args []string

// Word returns argument i as-is.
func (a Args) Word(i int) (string, error) {
	if i >= len(a) {
		return "", NewBadArgument("", fmt.Sprintf("missing argument %d", i+1))
	}
	return a[i], nil
}

// Float parses argument i as a decimal number.
func (a Args) Float(i int) (float64, error) {
	s, err := a.Word(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, NewBadArgument(s, "not a number")
	}
	return v, nil
}

// Int parses argument i as a decimal integer.
func (a Args) Int(i int) (int, error) {
	s, err := a.Word(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, NewBadArgument(s, "not an integer")
	}
	return v, nil
}

// Bool parses argument i: 1, true and on enable, 0, false and off
// disable. Anything else is a BadArgument.
func (a Args) Bool(i int) (bool, error) {
	s, err := a.Word(i)
	if err != nil {
		return false, err
	}
	switch s {
	case "1", "true", "on":
		return true, nil
	case "0", "false", "off":
		return false, nil
	default:
		return false, NewBadArgument(s, "not a boolean")
	}
}
