// Package normalize flattens partner-share documents into the share table
// keyed by reporter, flow and partner.
package normalize

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"tradeshare/internal/model"
	"tradeshare/internal/sdmx"
)

var ErrMalformed = errors.New("normalize: malformed share document")

// Documents holds the raw partner-share document of every reporter for one
// flow. A nil document records a failed fetch.
type Documents map[string]*sdmx.Document

// Shares extracts partner -> share from one document, keeping only partners
// that are known reporters. A nil document yields ok == false. Values must be
// finite; SDMX writes NaN for a missing observation.
func Shares(doc *sdmx.Document, dir *model.Directory) (map[string]float64, bool, error) {
	if doc == nil {
		return nil, false, nil
	}

	shares := make(map[string]float64, len(doc.Series))
	for i, series := range doc.Series {
		partner, ok := series.Dimension(sdmx.DimensionPartner)
		if !ok {
			return nil, false, fmt.Errorf("%w: series %d has no %s dimension", ErrMalformed, i, sdmx.DimensionPartner)
		}
		partner = model.NormalizeCode(partner)
		if !dir.Has(partner) {
			continue
		}
		raw, ok := series.ObsValue()
		if !ok {
			return nil, false, fmt.Errorf("%w: partner %s has no observation", ErrMalformed, partner)
		}
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
			return nil, false, fmt.Errorf("%w: partner %s value %q", ErrMalformed, partner, raw)
		}
		shares[partner] = value
	}
	return shares, true, nil
}

// Table builds the share table for every reporter in the directory. A
// malformed document leaves that reporter and flow absent; the causes are
// returned alongside the table.
func Table(dir *model.Directory, raw map[model.Flow]Documents) (model.ShareTable, []error) {
	table := make(model.ShareTable, dir.Len())
	var problems []error

	for _, code := range dir.Codes() {
		entry := make(model.FlowShares, len(model.Flows))
		for _, flow := range model.Flows {
			shares, ok, err := Shares(raw[flow][code], dir)
			if err != nil {
				problems = append(problems, fmt.Errorf("reporter %s flow %s: %w", code, flow, err))
				continue
			}
			if ok {
				entry[flow] = shares
			}
		}
		table[code] = entry
	}
	return table, problems
}
