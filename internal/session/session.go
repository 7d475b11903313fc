// Package session runs the line-oriented menu over the query engine. It
// reads one line at a time, prints results or an error message, and keeps
// going until the user types exit at the top level or input ends.
package session

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"tradeshare/internal/model"
	"tradeshare/internal/query"
)

const menu = `Select an option, or enter "exit" to quit:
A. Enter a country name to get its code, or a country code to get its name.
B. Get all import or export partners of a country.
C. Get the import and export shares between two countries.
D. Get the top partners of a country for both flows.
E. Get the import or export share chart of a country.`

const (
	promptLookup    = `Enter a country name or code, or "exit" to go back: `
	promptFlowCode  = `Enter 'im' for import or 'ex' for export, then a country, separated by a comma, or "exit" to go back: `
	promptPair      = `Enter two countries separated by a comma, or "exit" to go back: `
	promptCountry   = `Enter a country, or "exit" to go back: `
	msgInvalid      = "Invalid input. Please try again."
	msgNotListed    = "Sorry, that country name or code is not in the reporter list. Please try again."
	exitCommand     = "exit"
	optionLookup    = "a"
	optionPartners  = "b"
	optionBilateral = "c"
	optionTop       = "d"
	optionChart     = "e"
)

// errEnd stops a sub-menu because input ran out.
var errEnd = errors.New("session: end of input")

type Options struct {
	// Prompts prints the menu and prompts; off when input is piped.
	Prompts bool
	Top     int
}

type Session struct {
	engine  *query.Engine
	scanner *bufio.Scanner
	out     io.Writer
	render  *Renderer
	prompts bool
	top     int
}

func New(engine *query.Engine, in io.Reader, out io.Writer, opts Options) *Session {
	if opts.Top <= 0 {
		opts.Top = query.DefaultTop
	}
	return &Session{
		engine:  engine,
		scanner: bufio.NewScanner(in),
		out:     out,
		render:  NewRenderer(out),
		prompts: opts.Prompts,
		top:     opts.Top,
	}
}

// Run serves the top-level menu. It returns nil on exit or end of input.
func (s *Session) Run(ctx context.Context) error {
	handlers := map[string]func() error{
		optionLookup:    s.lookup,
		optionPartners:  s.partners,
		optionBilateral: s.bilateral,
		optionTop:       s.topPartners,
		optionChart:     s.chart,
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		line, err := s.read(menu + "\n")
		if errors.Is(err, errEnd) {
			return nil
		}
		if err != nil {
			return err
		}

		choice := strings.ToLower(strings.TrimSpace(line))
		if choice == exitCommand {
			return nil
		}
		handler, ok := handlers[choice]
		if !ok {
			s.println(msgInvalid)
			continue
		}
		if err := handler(); err != nil {
			if errors.Is(err, errEnd) {
				return nil
			}
			return err
		}
	}
}

func (s *Session) read(prompt string) (string, error) {
	if s.prompts {
		fmt.Fprint(s.out, prompt)
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", err
		}
		return "", errEnd
	}
	return s.scanner.Text(), nil
}

func (s *Session) println(text string) {
	fmt.Fprintln(s.out, text)
}

// loop reads lines for a sub-menu until handle reports success or the user
// types exit.
func (s *Session) loop(prompt string, handle func(line string) bool) error {
	for {
		line, err := s.read(prompt)
		if err != nil {
			return err
		}
		if strings.EqualFold(strings.TrimSpace(line), exitCommand) {
			return nil
		}
		if handle(line) {
			return nil
		}
	}
}

// report prints the message for a query error.
func (s *Session) report(err error) {
	var missing *query.MissingEdgeError
	switch {
	case errors.Is(err, query.ErrNotFound):
		s.println(msgNotListed)
	case errors.As(err, &missing):
		s.println(fmt.Sprintf("Sorry, data is not available for these two countries (%v). Please try again.", missing))
	default:
		s.println(msgInvalid)
	}
}

func (s *Session) lookup() error {
	return s.loop(promptLookup, func(line string) bool {
		match, err := s.engine.Lookup(line)
		if err != nil {
			s.report(err)
			return false
		}
		s.println(s.render.Lookup(match))
		return true
	})
}

// parseFlowCountry splits "ex, USA". Everything after the first comma is the
// country, so names that contain commas still resolve.
func parseFlowCountry(line string) (model.Flow, string, bool) {
	flowToken, country, ok := strings.Cut(line, ",")
	if !ok {
		return "", "", false
	}
	flow, err := model.ParseFlow(flowToken)
	if err != nil {
		return "", "", false
	}
	country = strings.TrimSpace(country)
	return flow, country, country != ""
}

func (s *Session) partners() error {
	return s.loop(promptFlowCode, func(line string) bool {
		flow, country, ok := parseFlowCountry(line)
		if !ok {
			s.println(msgInvalid)
			return false
		}
		match, err := s.engine.Lookup(country)
		if err != nil {
			s.report(err)
			return false
		}
		partners, err := s.engine.Partners(match.Code, flow)
		if err != nil {
			s.report(err)
			return false
		}
		s.println(s.render.Partners(model.Reporter{ISO3: match.Code, Name: match.Name}, flow, partners))
		return true
	})
}

// splitPair finds the comma that separates two known countries. Trying every
// comma lets names such as "Korea, Rep." appear on either side.
func (s *Session) splitPair(line string) (string, string, error) {
	parts := strings.Split(line, ",")
	if len(parts) < 2 {
		return "", "", errors.New("expected two countries")
	}
	var lastErr error
	for i := 1; i < len(parts); i++ {
		a, errA := s.engine.ResolveCode(strings.Join(parts[:i], ","))
		b, errB := s.engine.ResolveCode(strings.Join(parts[i:], ","))
		if errA == nil && errB == nil {
			return a, b, nil
		}
		lastErr = errors.Join(errA, errB)
	}
	return "", "", lastErr
}

func (s *Session) bilateral() error {
	return s.loop(promptPair, func(line string) bool {
		a, b, err := s.splitPair(line)
		if err != nil {
			s.report(err)
			return false
		}
		result, err := s.engine.Compare(a, b)
		if err != nil {
			s.report(err)
			return false
		}
		s.println(s.render.Bilateral(result))
		return true
	})
}

func (s *Session) topPartners() error {
	return s.loop(promptCountry, func(line string) bool {
		code, err := s.engine.ResolveCode(line)
		if err != nil {
			s.report(err)
			return false
		}
		for _, flow := range model.Flows {
			shares, err := s.engine.TopK(code, flow, s.top)
			if err != nil {
				s.report(err)
				return false
			}
			s.println(s.render.Table(tableTitle(flow), shares))
		}
		return true
	})
}

func (s *Session) chart() error {
	return s.loop(promptFlowCode, func(line string) bool {
		flow, country, ok := parseFlowCountry(line)
		if !ok {
			s.println(msgInvalid)
			return false
		}
		slices, err := s.engine.Distribution(country, flow, s.top)
		if err != nil {
			s.report(err)
			return false
		}
		s.println(s.render.Chart(chartTitle(flow), slices))
		return true
	})
}

func tableTitle(flow model.Flow) string {
	if flow == model.FlowImport {
		return "Import Data"
	}
	return "Export Data"
}

func chartTitle(flow model.Flow) string {
	if flow == model.FlowImport {
		return "Import Share Chart"
	}
	return "Export Share Chart"
}
