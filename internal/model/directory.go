package model

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Directory maps reporter codes to display names and back. It is immutable
// after NewDirectory returns and safe for concurrent reads.
type Directory struct {
	reporters []Reporter
	byCode    map[string]string
	byName    map[string]string
}

// NewDirectory indexes reporters in the given order. Codes are upper-cased;
// the first entry wins when a code or normalized name repeats.
func NewDirectory(reporters []Reporter) *Directory {
	d := &Directory{
		reporters: make([]Reporter, 0, len(reporters)),
		byCode:    make(map[string]string, len(reporters)),
		byName:    make(map[string]string, len(reporters)),
	}
	for _, reporter := range reporters {
		code := NormalizeCode(reporter.ISO3)
		if code == "" {
			continue
		}
		if _, exists := d.byCode[code]; exists {
			continue
		}
		name := strings.TrimSpace(reporter.Name)
		d.reporters = append(d.reporters, Reporter{ISO3: code, Name: name})
		d.byCode[code] = name
		key := NormalizeName(name)
		if key == "" {
			continue
		}
		if _, exists := d.byName[key]; !exists {
			d.byName[key] = code
		}
	}
	return d
}

// NormalizeCode trims and upper-cases a country code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormalizeName title-cases free text so names match regardless of the
// casing a user typed.
func NormalizeName(name string) string {
	return cases.Title(language.Und).String(strings.ToLower(strings.TrimSpace(name)))
}

func (d *Directory) Len() int {
	return len(d.reporters)
}

// Reporters returns a copy of the entries in source order.
func (d *Directory) Reporters() []Reporter {
	copied := make([]Reporter, len(d.reporters))
	copy(copied, d.reporters)
	return copied
}

// Codes returns all reporter codes in source order.
func (d *Directory) Codes() []string {
	codes := make([]string, len(d.reporters))
	for i, reporter := range d.reporters {
		codes[i] = reporter.ISO3
	}
	return codes
}

func (d *Directory) Has(code string) bool {
	_, ok := d.byCode[NormalizeCode(code)]
	return ok
}

func (d *Directory) Name(code string) (string, bool) {
	name, ok := d.byCode[NormalizeCode(code)]
	return name, ok
}

func (d *Directory) Code(name string) (string, bool) {
	code, ok := d.byName[NormalizeName(name)]
	return code, ok
}
