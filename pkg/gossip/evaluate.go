package gossip

import (
	"fmt"
	"strings"
)

// VerdictKind names the outcome of Evaluate.
type VerdictKind int

const (
	Healthy VerdictKind = iota
	NodeCountMismatch
	DeadNodesPresent
	NoSingleMaster
	UnrecognizedStates
)

func (k VerdictKind) String() string {
	switch k {
	case Healthy:
		return "Healthy"
	case NodeCountMismatch:
		return "NodeCountMismatch"
	case DeadNodesPresent:
		return "DeadNodesPresent"
	case NoSingleMaster:
		return "NoSingleMaster"
	case UnrecognizedStates:
		return "UnrecognizedStates"
	default:
		return fmt.Sprintf("VerdictKind(%d)", int(k))
	}
}

// Severity splits verdicts into topology breaks and advisory findings.
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityOK:
		return "ok"
	case SeverityWarning:
		return "warning"
	default:
		return "critical"
	}
}

// Verdict is the structured result of evaluating one snapshot. Only the
// fields relevant to Kind are populated.
type Verdict struct {
	Kind VerdictKind

	// NodeCountMismatch
	Actual   int
	Expected int
	// DeadNodesPresent (Expected is set as well)
	AliveCount int
	// NoSingleMaster
	MasterCount int
	// UnrecognizedStates
	Offending []ClusterMember
}

// Healthy reports whether every check passed.
func (v Verdict) Healthy() bool { return v.Kind == Healthy }

// Severity is critical for count, liveness and master violations, warning
// for members caught in transitional states.
func (v Verdict) Severity() Severity {
	switch v.Kind {
	case Healthy:
		return SeverityOK
	case UnrecognizedStates:
		return SeverityWarning
	default:
		return SeverityCritical
	}
}

// Message renders the operator-facing explanation. Healthy verdicts render
// an empty string; callers phrase the success line with their own context.
func (v Verdict) Message() string {
	switch v.Kind {
	case NodeCountMismatch:
		return fmt.Sprintf("Wrong number of nodes, was %d should be %d", v.Actual, v.Expected)
	case DeadNodesPresent:
		return fmt.Sprintf("Only %d alive nodes, should be %d alive", v.AliveCount, v.Expected)
	case NoSingleMaster:
		return fmt.Sprintf("Wrong number of node masters, there should be 1 but there were %d masters", v.MasterCount)
	case UnrecognizedStates:
		parts := make([]string, 0, len(v.Offending))
		for _, m := range v.Offending {
			if addr := m.HTTPAddr(); addr != "" {
				parts = append(parts, fmt.Sprintf("%s (%s)", m.State, addr))
			} else {
				parts = append(parts, string(m.State))
			}
		}
		return fmt.Sprintf("nodes found with states: %s when expected Master or Slave.", strings.Join(parts, ", "))
	default:
		return ""
	}
}

// Evaluate checks a snapshot against the expected cluster size. Checks run
// in a fixed order and the first failure wins:
//
//  1. member count equals expected
//  2. every member is alive
//  3. exactly one Master
//  4. every member is Master or Slave (advisory)
func Evaluate(s Snapshot, expected int) Verdict {
	if n := len(s.Members); n != expected {
		return Verdict{Kind: NodeCountMismatch, Actual: n, Expected: expected}
	}
	if alive := s.AliveCount(); alive != len(s.Members) {
		return Verdict{Kind: DeadNodesPresent, AliveCount: alive, Expected: expected}
	}
	if masters := s.CountState(StateMaster); masters != 1 {
		return Verdict{Kind: NoSingleMaster, MasterCount: masters}
	}
	var offending []ClusterMember
	for _, m := range s.Members {
		if !m.State.Settled() {
			offending = append(offending, m)
		}
	}
	if len(offending) > 0 {
		return Verdict{Kind: UnrecognizedStates, Offending: offending}
	}
	return Verdict{Kind: Healthy}
}
