package gossip

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

var ErrSelfNotFound = errors.New("gossip: answering node not found among members")

// Timestamp accepts the timestamp layouts seen in gossip documents, with or
// without a zone designator.
type Timestamp struct {
	Time time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
}

func (t *Timestamp) UnmarshalText(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			t.Time = v
			return nil
		}
	}
	return fmt.Errorf("gossip: unrecognised timestamp %q", s)
}

func (t Timestamp) MarshalText() ([]byte, error) {
	if t.Time.IsZero() {
		return []byte{}, nil
	}
	return []byte(t.Time.UTC().Format(time.RFC3339Nano)), nil
}

// ClusterMember is one entry of a gossip snapshot. Only State and IsAlive
// drive health evaluation; the rest is passed through to metrics.
type ClusterMember struct {
	InstanceID string      `json:"instanceId" xml:"InstanceId"`
	TimeStamp  Timestamp   `json:"timeStamp" xml:"TimeStamp"`
	State      MemberState `json:"state" xml:"State"`
	IsAlive    bool        `json:"isAlive" xml:"IsAlive"`

	InternalTCPIP         string `json:"internalTcpIp" xml:"InternalTcpIp"`
	InternalTCPPort       int    `json:"internalTcpPort" xml:"InternalTcpPort"`
	InternalSecureTCPPort int    `json:"internalSecureTcpPort" xml:"InternalSecureTcpPort"`
	ExternalTCPIP         string `json:"externalTcpIp" xml:"ExternalTcpIp"`
	ExternalTCPPort       int    `json:"externalTcpPort" xml:"ExternalTcpPort"`
	ExternalSecureTCPPort int    `json:"externalSecureTcpPort" xml:"ExternalSecureTcpPort"`
	InternalHTTPIP        string `json:"internalHttpIp" xml:"InternalHttpIp"`
	InternalHTTPPort      int    `json:"internalHttpPort" xml:"InternalHttpPort"`
	ExternalHTTPIP        string `json:"externalHttpIp" xml:"ExternalHttpIp"`
	ExternalHTTPPort      int    `json:"externalHttpPort" xml:"ExternalHttpPort"`

	LastCommitPosition int64  `json:"lastCommitPosition" xml:"LastCommitPosition"`
	WriterCheckpoint   int64  `json:"writerCheckpoint" xml:"WriterCheckpoint"`
	ChaserCheckpoint   int64  `json:"chaserCheckpoint" xml:"ChaserCheckpoint"`
	EpochPosition      int64  `json:"epochPosition" xml:"EpochPosition"`
	EpochNumber        int64  `json:"epochNumber" xml:"EpochNumber"`
	EpochID            string `json:"epochId" xml:"EpochId"`
	NodePriority       int    `json:"nodePriority" xml:"NodePriority"`
}

// HTTPAddr is the member's internal HTTP endpoint as host:port, or the bare
// IP when no port was reported.
func (m ClusterMember) HTTPAddr() string {
	if m.InternalHTTPPort == 0 {
		return m.InternalHTTPIP
	}
	return net.JoinHostPort(m.InternalHTTPIP, strconv.Itoa(m.InternalHTTPPort))
}

// Snapshot is one decoded gossip document: the members as seen by the node
// that answered, plus that node's own address.
type Snapshot struct {
	Members    []ClusterMember `json:"members"`
	ServerIP   string          `json:"serverIp"`
	ServerPort int             `json:"serverPort"`
}

// Self returns the member describing the node that served the snapshot,
// matched on its internal HTTP address. Exactly one match is required.
func (s Snapshot) Self() (ClusterMember, error) {
	var found []ClusterMember
	for _, m := range s.Members {
		if m.InternalHTTPIP == s.ServerIP {
			found = append(found, m)
		}
	}
	if len(found) != 1 {
		return ClusterMember{}, fmt.Errorf("%w: %d members matched serverIp %q", ErrSelfNotFound, len(found), s.ServerIP)
	}
	return found[0], nil
}

// AliveCount returns the number of members reporting IsAlive.
func (s Snapshot) AliveCount() int {
	n := 0
	for _, m := range s.Members {
		if m.IsAlive {
			n++
		}
	}
	return n
}

// CountState returns the number of members in the given state.
func (s Snapshot) CountState(state MemberState) int {
	n := 0
	for _, m := range s.Members {
		if m.State == state {
			n++
		}
	}
	return n
}
