package hospitalization

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/vetora/vetora/pkg/storage"
)

// maxSequence is the largest sequence a four digit number can hold.
const maxSequence = 9999

// numberPrefix returns the prefix shared by all admission numbers of a year.
func numberPrefix(year int) string {
	return fmt.Sprintf("H-%d-", year)
}

// FormatNumber renders an admission number, e.g. H-2026-0007.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("%s%04d", numberPrefix(year), seq)
}

// ParseNumber splits an admission number into year and sequence.
func ParseNumber(number string) (year, seq int, err error) {
	rest, ok := strings.CutPrefix(number, "H-")
	if !ok {
		return 0, 0, fmt.Errorf("admission number %q: missing H- prefix", number)
	}
	y, s, ok := strings.Cut(rest, "-")
	if !ok || len(s) != 4 {
		return 0, 0, fmt.Errorf("admission number %q: want H-<year>-<4 digits>", number)
	}
	if year, err = strconv.Atoi(y); err != nil {
		return 0, 0, fmt.Errorf("admission number %q: bad year: %w", number, err)
	}
	if seq, err = strconv.Atoi(s); err != nil {
		return 0, 0, fmt.Errorf("admission number %q: bad sequence: %w", number, err)
	}
	return year, seq, nil
}

// nextNumber returns the number following the highest admission number of
// year in the scope's clinic. Zero padding makes the lexical order of a
// year's numbers match their numeric order.
func nextNumber(ctx context.Context, scope *storage.Scope, year int) (string, error) {
	recs, err := scope.Select(HospitalizationsCollection).
		HasPrefix("hospitalization_number", numberPrefix(year)).
		OrderBy("hospitalization_number", true).
		Limit(1).
		All(ctx)
	if err != nil {
		return "", fmt.Errorf("reading last admission number: %w", err)
	}

	seq := 0
	if len(recs) > 0 {
		_, seq, err = ParseNumber(recs[0].String("hospitalization_number"))
		if err != nil {
			return "", err
		}
	}
	if seq >= maxSequence {
		return "", fmt.Errorf("admission numbers for %d exhausted", year)
	}
	return FormatNumber(year, seq+1), nil
}
