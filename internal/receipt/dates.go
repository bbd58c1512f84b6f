package receipt

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/domain"
)

const (
	minReceiptYear = 2000
	maxReceiptYear = 2030
)

// dateRule is one entry of the date table: a pattern whose submatches hold the
// date parts, and a normalizer that validates them and renders YYYY-MM-DD.
type dateRule struct {
	name      string
	pattern   *regexp.Regexp
	normalize func(m []string) (string, bool)
}

// dateRules are tried in order for every line; the first rule that yields a
// valid date wins. Labelled dates come first, then year-first dates so that
// "2024-03-15" is never read as day 24.
var dateRules = []dateRule{
	{
		name:      "labelled year-first",
		pattern:   regexp.MustCompile(`(?i)date[:\s]*(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})\b`),
		normalize: yearFirst,
	},
	{
		name:      "labelled day-first",
		pattern:   regexp.MustCompile(`(?i)date[:\s]*(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})\b`),
		normalize: dayOrMonthFirst,
	},
	{
		name:      "year-first",
		pattern:   regexp.MustCompile(`\b(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})\b`),
		normalize: yearFirst,
	},
	{
		name:      "day-first",
		pattern:   regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})\b`),
		normalize: dayOrMonthFirst,
	},
	{
		name:      "compact DDMMYYYY",
		pattern:   regexp.MustCompile(`\b(\d{2})(\d{2})(\d{4})\b`),
		normalize: compact,
	},
}

func findDate(lines []string) (string, bool) {
	for _, line := range lines {
		for _, rule := range dateRules {
			m := rule.pattern.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if date, ok := rule.normalize(m); ok {
				return date, true
			}
		}
	}
	return "", false
}

func hasDate(line string) bool {
	for _, rule := range dateRules {
		if m := rule.pattern.FindStringSubmatch(line); m != nil {
			if _, ok := rule.normalize(m); ok {
				return true
			}
		}
	}
	return false
}

func yearFirst(m []string) (string, bool) {
	return render(atoi(m[1]), atoi(m[2]), atoi(m[3]))
}

// dayOrMonthFirst reads D/M/Y and falls back to M/D/Y. Two-digit years are 20yy.
func dayOrMonthFirst(m []string) (string, bool) {
	a, b, year := atoi(m[1]), atoi(m[2]), atoi(m[3])
	if year < 100 {
		year += 2000
	}
	if date, ok := render(year, b, a); ok {
		return date, true
	}
	return render(year, a, b)
}

func compact(m []string) (string, bool) {
	return render(atoi(m[3]), atoi(m[2]), atoi(m[1]))
}

// render accepts day 1-31, month 1-12 and years 2000-2030, and rejects
// dates that do not exist in the calendar such as 31/02.
func render(year, month, day int) (string, bool) {
	if day < 1 || day > 31 || month < 1 || month > 12 {
		return "", false
	}
	if year < minReceiptYear || year > maxReceiptYear {
		return "", false
	}
	s := fmt.Sprintf("%04d-%02d-%02d", year, month, day)
	if _, err := time.Parse(domain.DateLayout, s); err != nil {
		return "", false
	}
	return s, true
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
