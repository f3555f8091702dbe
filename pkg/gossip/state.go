package gossip

// MemberState is the role a cluster member reports for itself. Values are
// kept verbatim so unrecognised states survive decoding and can be named in
// diagnostics.
type MemberState string

const (
	StateInitialising MemberState = "Initialising"
	StateUnknown      MemberState = "Unknown"
	StatePreReplica   MemberState = "PreReplica"
	StateCatchingUp   MemberState = "CatchingUp"
	StateClone        MemberState = "Clone"
	StateSlave        MemberState = "Slave"
	StatePreMaster    MemberState = "PreMaster"
	StateMaster       MemberState = "Master"
	StateManager      MemberState = "Manager"
	StateShuttingDown MemberState = "ShuttingDown"
	StateShutdown     MemberState = "Shutdown"
)

// Ordinal is the stable numeric encoding used for metrics:
//
//	Initialising=0 Unknown=1 PreReplica=2 CatchingUp=3 Clone=4 Slave=5
//	PreMaster=6 Master=7 Manager=8 ShuttingDown=9 Shutdown=10
//
// Any other value encodes as -1. Dashboards depend on these numbers; never
// renumber.
func (s MemberState) Ordinal() int {
	switch s {
	case StateInitialising:
		return 0
	case StateUnknown:
		return 1
	case StatePreReplica:
		return 2
	case StateCatchingUp:
		return 3
	case StateClone:
		return 4
	case StateSlave:
		return 5
	case StatePreMaster:
		return 6
	case StateMaster:
		return 7
	case StateManager:
		return 8
	case StateShuttingDown:
		return 9
	case StateShutdown:
		return 10
	default:
		return -1
	}
}

// Known reports whether s is one of the declared states.
func (s MemberState) Known() bool { return s.Ordinal() >= 0 }

// Settled reports whether s is a steady-state role (Master or Slave).
func (s MemberState) Settled() bool { return s == StateMaster || s == StateSlave }

func (s MemberState) String() string { return string(s) }

// States lists the declared states in ordinal order.
func States() []MemberState {
	return []MemberState{
		StateInitialising, StateUnknown, StatePreReplica, StateCatchingUp, StateClone, StateSlave,
		StatePreMaster, StateMaster, StateManager, StateShuttingDown, StateShutdown,
	}
}
