package session

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradeshare/internal/graph"
	"tradeshare/internal/model"
	"tradeshare/internal/query"
)

func testEngine() *query.Engine {
	dir := model.NewDirectory([]model.Reporter{
		{ISO3: "USA", Name: "United States"},
		{ISO3: "CHN", Name: "China"},
		{ISO3: "MEX", Name: "Mexico"},
		{ISO3: "CAN", Name: "Canada"},
		{ISO3: "JPN", Name: "Japan"},
		{ISO3: "DEU", Name: "Germany"},
		{ISO3: "GBR", Name: "United Kingdom"},
		{ISO3: "KOR", Name: "Korea, Rep."},
	})
	table := model.ShareTable{
		"USA": {
			model.FlowExport: {"CAN": 30, "MEX": 25, "CHN": 20, "JPN": 15, "DEU": 5, "GBR": 4, "KOR": 1},
			model.FlowImport: {"CHN": 18.6, "MEX": 13.6},
		},
		"CHN": {
			model.FlowExport: {"USA": 17.45, "KOR": 4.5},
			model.FlowImport: {"USA": 6.6, "KOR": 7.7},
		},
		"KOR": {
			model.FlowExport: {"CHN": 25.9},
			model.FlowImport: {"CHN": 23.3},
		},
	}
	codes := dir.Codes()
	return query.New(dir, graph.Build(codes, table, model.FlowExport), graph.Build(codes, table, model.FlowImport))
}

func runScript(t *testing.T, prompts bool, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	in := strings.NewReader(strings.Join(lines, "\n") + "\n")
	s := New(testEngine(), in, &out, Options{Prompts: prompts})
	require.NoError(t, s.Run(context.Background()))
	return out.String()
}

func TestLookupByCodeAndName(t *testing.T) {
	out := runScript(t, false, "a", "usa", "A", "korea, rep.", "exit")
	assert.Contains(t, out, "USA is the country code of 'United States'")
	assert.Contains(t, out, "'Korea, Rep.' has the country code KOR")
}

func TestSubMenuRetriesUntilSuccess(t *testing.T) {
	out := runScript(t, false, "a", "Atlantis", "chn", "exit")
	assert.Contains(t, out, msgNotListed)
	assert.Contains(t, out, "CHN is the country code of 'China'")
}

func TestSubMenuExitReturnsToMenu(t *testing.T) {
	out := runScript(t, true, "b", "exit", "exit")
	assert.Equal(t, 2, strings.Count(out, "Select an option"))
}

func TestPartners(t *testing.T) {
	out := runScript(t, false, "b", "ex", "ex, Korea, Rep.", "b", "im, usa", "exit")
	assert.Contains(t, out, msgInvalid)
	assert.Contains(t, out, "The export partners of Korea, Rep. are: China")
	assert.Contains(t, out, "The import partners of United States are: China, Mexico")
}

func TestBilateral(t *testing.T) {
	out := runScript(t, false, "c", "USA, MEX", "usa, chn", "exit")
	assert.Contains(t, out, "Sorry, data is not available for these two countries")
	assert.Contains(t, out, "United States has 18.60 percent import from China and 20.00 percent export to China, while China has 6.60 percent import from United States and 17.45 percent export to United States")
}

func TestBilateralNameWithComma(t *testing.T) {
	out := runScript(t, false, "c", "Korea, Rep., CHN", "exit")
	assert.Contains(t, out, "Korea, Rep. has 23.30 percent import from China")
}

func TestTopTables(t *testing.T) {
	out := runScript(t, false, "d", "United States", "exit")
	assert.Contains(t, out, "Export Data")
	assert.Contains(t, out, "Import Data")
	assert.Contains(t, out, "Canada")
	assert.Contains(t, out, "30.00")
	assert.Contains(t, out, "Germany")
	assert.NotContains(t, out, "United Kingdom")
	assert.Less(t, strings.Index(out, "Canada"), strings.Index(out, "Mexico"))
}

func TestChartIncludesOther(t *testing.T) {
	out := runScript(t, false, "e", "ex, USA", "exit")
	assert.Contains(t, out, "Export Share Chart")
	assert.Contains(t, out, "Other")
	assert.Contains(t, out, "  5.0%")
	assert.Contains(t, out, " 30.0%")
}

func TestInvalidMenuOptionAndEOF(t *testing.T) {
	var out bytes.Buffer
	s := New(testEngine(), strings.NewReader("z\nc\nUSA"), &out, Options{})
	require.NoError(t, s.Run(context.Background()))
	assert.Contains(t, out.String(), msgInvalid)
}

func TestPromptsHiddenWhenPiped(t *testing.T) {
	out := runScript(t, false, "exit")
	assert.Empty(t, out)
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := New(testEngine(), strings.NewReader("a\n"), &bytes.Buffer{}, Options{})
	assert.ErrorIs(t, s.Run(ctx), context.Canceled)
}
