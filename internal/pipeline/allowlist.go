package pipeline

import (
	"bufio"
	"errors"
	"os"
	"sort"
	"strings"

	"github.com/google/uuid"

	"tradeshare/internal/model"
)

// LoadAllowlist reads reporter codes separated by commas, semicolons, tabs
// or newlines. '#' starts a comment and an "ISO3" header is ignored.
func LoadAllowlist(path string) (map[string]struct{}, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	allowed := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "#"); idx >= 0 {
			line = line[:idx]
		}
		for _, token := range splitTokens(line) {
			iso3 := model.NormalizeCode(token)
			if iso3 == "ISO3" {
				continue
			}
			allowed[iso3] = struct{}{}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(allowed) == 0 {
		return nil, errors.New("allowlist is empty")
	}
	return allowed, nil
}

func splitTokens(line string) []string {
	line = strings.NewReplacer(";", ",", "\t", ",").Replace(line)
	parts := strings.Split(line, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// AllowlistKey names a reporter subset for cache prefixes. Equal sets give
// equal keys regardless of order.
func AllowlistKey(allowed map[string]struct{}) string {
	if len(allowed) == 0 {
		return ""
	}
	codes := make([]string, 0, len(allowed))
	for code := range allowed {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.Join(codes, ",")))
	return "allow" + id.String()[:8]
}

func filterReporters(reporters []model.Reporter, allowed map[string]struct{}) []model.Reporter {
	if len(allowed) == 0 {
		return reporters
	}
	filtered := make([]model.Reporter, 0, len(reporters))
	for _, reporter := range reporters {
		if _, ok := allowed[model.NormalizeCode(reporter.ISO3)]; ok {
			filtered = append(filtered, reporter)
		}
	}
	return filtered
}
