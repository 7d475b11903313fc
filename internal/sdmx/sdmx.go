// Package sdmx holds the typed form of an SDMX generic-data response: a list
// of series, each identified by dimension id/value pairs and carrying its
// observations. The same types are cached as JSON between pipeline runs.
package sdmx

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// DimensionPartner is the series key dimension naming the trade partner.
const DimensionPartner = "PARTNER"

var ErrMalformed = errors.New("sdmx: malformed document")

type Document struct {
	Series []Series `json:"series"`
}

type Series struct {
	Key []Value       `json:"key"`
	Obs []Observation `json:"obs"`
}

type Value struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

type Observation struct {
	Period string `json:"period,omitempty"`
	Value  string `json:"value"`
}

// Dimension returns the value of the key dimension with the given id.
func (s Series) Dimension(id string) (string, bool) {
	for _, value := range s.Key {
		if strings.EqualFold(value.ID, id) {
			return value.Value, true
		}
	}
	return "", false
}

// ObsValue returns the first non-empty observation value. Share queries ask
// for a single period, so a series normally holds exactly one observation.
func (s Series) ObsValue() (string, bool) {
	for _, obs := range s.Obs {
		if value := strings.TrimSpace(obs.Value); value != "" {
			return value, true
		}
	}
	return "", false
}

// Add appends a series keyed by a single dimension with one observation.
func (d *Document) Add(dimension, value, period, obsValue string) {
	d.Series = append(d.Series, Series{
		Key: []Value{{ID: dimension, Value: value}},
		Obs: []Observation{{Period: period, Value: obsValue}},
	})
}

type genericData struct {
	XMLName xml.Name        `xml:"GenericData"`
	DataSet *genericDataSet `xml:"DataSet"`
}

type genericDataSet struct {
	Series []genericSeries `xml:"Series"`
}

type genericSeries struct {
	SeriesKey *genericSeriesKey `xml:"SeriesKey"`
	Obs       []genericObs      `xml:"Obs"`
}

type genericSeriesKey struct {
	Values []genericValue `xml:"Value"`
}

type genericValue struct {
	ID    string `xml:"id,attr"`
	Value string `xml:"value,attr"`
}

type genericObs struct {
	Dimension *genericValue `xml:"ObsDimension"`
	Value     *genericValue `xml:"ObsValue"`
}

// Decode parses a generic-data XML payload. It fails with ErrMalformed when
// the root, the data set or a series key is missing instead of returning a
// partially filled document.
func Decode(payload []byte) (*Document, error) {
	var response genericData
	if err := xml.Unmarshal(payload, &response); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if response.DataSet == nil {
		return nil, fmt.Errorf("%w: missing DataSet", ErrMalformed)
	}

	doc := &Document{Series: make([]Series, 0, len(response.DataSet.Series))}
	for i, raw := range response.DataSet.Series {
		if raw.SeriesKey == nil || len(raw.SeriesKey.Values) == 0 {
			return nil, fmt.Errorf("%w: series %d has no SeriesKey", ErrMalformed, i)
		}
		series := Series{
			Key: make([]Value, 0, len(raw.SeriesKey.Values)),
			Obs: make([]Observation, 0, len(raw.Obs)),
		}
		for _, value := range raw.SeriesKey.Values {
			series.Key = append(series.Key, Value{
				ID:    strings.TrimSpace(value.ID),
				Value: strings.TrimSpace(value.Value),
			})
		}
		for _, obs := range raw.Obs {
			if obs.Value == nil {
				continue
			}
			observation := Observation{Value: strings.TrimSpace(obs.Value.Value)}
			if obs.Dimension != nil {
				observation.Period = strings.TrimSpace(obs.Dimension.Value)
			}
			series.Obs = append(series.Obs, observation)
		}
		doc.Series = append(doc.Series, series)
	}
	return doc, nil
}
