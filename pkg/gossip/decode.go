package gossip

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
)

// Format selects the gossip document encoding served by /gossip?format=.
type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatXML, FormatJSON:
		return Format(s), nil
	default:
		return "", fmt.Errorf("gossip: unsupported format %q (want xml or json)", s)
	}
}

// xmlClusterInfo mirrors ClusterInfoDto. Element names are matched without
// regard to the document's default namespace.
type xmlClusterInfo struct {
	Members    []ClusterMember `xml:"Members>MemberInfoDto"`
	ServerIP   string          `xml:"ServerIp"`
	ServerPort int             `xml:"ServerPort"`
}

// DecodeXML reads a ClusterInfoDto document.
func DecodeXML(r io.Reader) (Snapshot, error) {
	var doc xmlClusterInfo
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return Snapshot{}, fmt.Errorf("gossip: decode xml: %w", err)
	}
	return Snapshot{Members: doc.Members, ServerIP: doc.ServerIP, ServerPort: doc.ServerPort}, nil
}

// DecodeJSON reads the JSON gossip document.
func DecodeJSON(r io.Reader) (Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return Snapshot{}, fmt.Errorf("gossip: decode json: %w", err)
	}
	return s, nil
}

// Decode dispatches on f.
func Decode(r io.Reader, f Format) (Snapshot, error) {
	switch f {
	case FormatJSON:
		return DecodeJSON(r)
	case FormatXML:
		return DecodeXML(r)
	default:
		return Snapshot{}, fmt.Errorf("gossip: unsupported format %q", f)
	}
}
