package model

import (
	"fmt"
	"strings"
)

type Flow string

const (
	FlowExport Flow = "export"
	FlowImport Flow = "import"
)

// Flows lists both directions in pipeline order.
var Flows = []Flow{FlowExport, FlowImport}

// Code returns the statistical source flow code for the direction.
func (f Flow) Code() string {
	switch f {
	case FlowExport:
		return "XPRT"
	case FlowImport:
		return "MPRT"
	default:
		return strings.ToUpper(string(f))
	}
}

func (f Flow) Valid() bool {
	return f == FlowExport || f == FlowImport
}

// ParseFlow accepts the long names and the short session forms (ex, im).
func ParseFlow(value string) (Flow, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "export", "exports", "ex", "xprt":
		return FlowExport, nil
	case "import", "imports", "im", "mprt":
		return FlowImport, nil
	default:
		return "", fmt.Errorf("unknown flow: %s", value)
	}
}

type Reporter struct {
	ISO3 string `json:"iso3"`
	Name string `json:"name"`
}

// FlowShares maps a direction to partner code -> percentage share.
// A missing direction means the reporter has no data for it.
type FlowShares map[Flow]map[string]float64

// ShareTable is the normalized partner-share table keyed by reporter code.
type ShareTable map[string]FlowShares

// Shares returns the partner shares for reporter and flow, and whether the
// direction was recorded at all.
func (t ShareTable) Shares(reporter string, flow Flow) (map[string]float64, bool) {
	entry, ok := t[reporter]
	if !ok {
		return nil, false
	}
	shares, ok := entry[flow]
	return shares, ok
}
