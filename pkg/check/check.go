// Package check carries the outcome of a single probe run in Sensu/Nagios
// terms: a status that doubles as the process exit code, and one line of
// operator text.
package check

import (
	"fmt"
	"strings"
)

// Status is ordered by severity; the numeric value is the exit code.
type Status int

const (
	OK Status = iota
	Warning
	Critical
	Unknown
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ExitCode maps s to the process exit code. Out-of-range values are UNKNOWN.
func (s Status) ExitCode() int {
	if s < OK || s > Unknown {
		return int(Unknown)
	}
	return int(s)
}

// ParseStatus accepts the names produced by String, case-insensitively.
func ParseStatus(v string) (Status, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "OK":
		return OK, nil
	case "WARNING", "WARN":
		return Warning, nil
	case "CRITICAL", "CRIT":
		return Critical, nil
	case "UNKNOWN":
		return Unknown, nil
	}
	return Unknown, fmt.Errorf("check: unknown status %q", v)
}

// Result is what every probe returns instead of exiting the process.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

func Okf(format string, args ...any) Result {
	return Result{Status: OK, Message: fmt.Sprintf(format, args...)}
}

func Warningf(format string, args ...any) Result {
	return Result{Status: Warning, Message: fmt.Sprintf(format, args...)}
}

func Criticalf(format string, args ...any) Result {
	return Result{Status: Critical, Message: fmt.Sprintf(format, args...)}
}

func Unknownf(format string, args ...any) Result {
	return Result{Status: Unknown, Message: fmt.Sprintf(format, args...)}
}

// Line renders the result as "<name> <STATUS>: <message>", or without the
// message part when there is none.
func (r Result) Line(name string) string {
	if r.Message == "" {
		return fmt.Sprintf("%s %s", name, r.Status)
	}
	return fmt.Sprintf("%s %s: %s", name, r.Status, r.Message)
}

// Worst returns the most severe of rs. An empty list is OK.
func Worst(rs ...Result) Result {
	out := Result{Status: OK}
	for _, r := range rs {
		if r.Status > out.Status {
			out = r
		}
	}
	return out
}

// MarshalText lets Status render by name in JSON documents.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
