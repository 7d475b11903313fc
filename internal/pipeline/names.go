package pipeline

import (
	"strconv"
	"strings"

	"tradeshare/internal/model"
)

const (
	defaultProvider = "wits"
	defaultYear     = 2020
)

// Names are the cache document names of the pipeline stages.
type Names struct {
	Countries   string
	ExportData  string
	ImportData  string
	Table       string
	ExportGraph string
	ImportGraph string
}

// CacheNames returns the stage document names for a run. The default source
// (wits, 2020, every reporter) uses the bare names; anything else is
// prefixed so different sources or reporter subsets never share documents.
func CacheNames(provider string, year, limit int, subset string) Names {
	var parts []string
	if provider != defaultProvider || year != defaultYear {
		parts = append(parts, provider, strconv.Itoa(year))
	}
	if limit > 0 {
		parts = append(parts, "limit"+strconv.Itoa(limit))
	}
	if subset != "" {
		parts = append(parts, subset)
	}
	prefix := ""
	if len(parts) > 0 {
		prefix = strings.Join(parts, "-") + "-"
	}

	return Names{
		Countries:   prefix + "countries",
		ExportData:  prefix + "xprtdata",
		ImportData:  prefix + "mprtdata",
		Table:       prefix + "imexdata",
		ExportGraph: prefix + "xprtgraph",
		ImportGraph: prefix + "mprtgraph",
	}
}

// All lists the names in stage order.
func (n Names) All() []string {
	return []string{n.Countries, n.ExportData, n.ImportData, n.Table, n.ExportGraph, n.ImportGraph}
}

func (n Names) data(flow model.Flow) string {
	if flow == model.FlowImport {
		return n.ImportData
	}
	return n.ExportData
}

func (n Names) graph(flow model.Flow) string {
	if flow == model.FlowImport {
		return n.ImportGraph
	}
	return n.ExportGraph
}
