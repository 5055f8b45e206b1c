package scoring

import (
	"errors"
	"fmt"
	"slices"

	"github.com/opensource-finance/heron/internal/domain"
)

// ValidateTables checks that every table covers its legal input range with no
// gaps or overlaps, that points move in the table's direction and that every
// industry is listed exactly once.
func ValidateTables(set *TableSet) error {
	if set == nil {
		return fmt.Errorf("%w: nil table set", domain.ErrTableCoverage)
	}

	var errs []error
	if set.Version == "" {
		errs = append(errs, fmt.Errorf("%w: table set has no version", domain.ErrTableCoverage))
	}
	for _, t := range set.Numeric() {
		if err := validateTable(t); err != nil {
			errs = append(errs, err)
		}
	}
	if err := validateIndustry(&set.Industry); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func validateTable(t *Table) error {
	if len(t.Bands) == 0 {
		return fmt.Errorf("%w: %s has no bands", domain.ErrTableCoverage, t.Factor)
	}

	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s: %s", domain.ErrTableCoverage, t.Factor, fmt.Sprintf(format, args...)))
	}

	for _, b := range t.Bands {
		if b.Rationale == "" {
			fail("band %s has no rationale", b.Range())
		}
		if b.Points < 0 {
			fail("band %s has negative points", b.Range())
		}
		if b.Lower != nil && b.Upper != nil {
			c := b.Lower.Value.Cmp(b.Upper.Value)
			if c > 0 || (c == 0 && !(b.Lower.Inclusive && b.Upper.Inclusive)) {
				fail("band %s is empty", b.Range())
			}
		}
	}

	sorted := slices.Clone(t.Bands)
	slices.SortStableFunc(sorted, compareLower)

	if !sorted[0].Contains(t.Floor) {
		fail("smallest legal value %s is not covered", t.Floor)
	}
	if sorted[len(sorted)-1].Upper != nil {
		fail("values above %s are not covered", sorted[len(sorted)-1].Upper.Value)
	}

	for i := 1; i < len(sorted); i++ {
		prev, next := sorted[i-1], sorted[i]
		if prev.Upper == nil || next.Lower == nil {
			fail("bands %s and %s overlap", prev.Range(), next.Range())
			continue
		}
		if !prev.Upper.Value.Equal(next.Lower.Value) {
			if prev.Upper.Value.LessThan(next.Lower.Value) {
				fail("gap between %s and %s", prev.Range(), next.Range())
			} else {
				fail("bands %s and %s overlap", prev.Range(), next.Range())
			}
			continue
		}
		switch {
		case prev.Upper.Inclusive && next.Lower.Inclusive:
			fail("bands %s and %s both include %s", prev.Range(), next.Range(), next.Lower.Value)
		case !prev.Upper.Inclusive && !next.Lower.Inclusive:
			fail("no band includes %s", next.Lower.Value)
		}

		switch t.Direction {
		case Descending:
			if next.Points > prev.Points {
				fail("points rise from %d to %d at %s", prev.Points, next.Points, next.Lower.Value)
			}
		case Ascending:
			if next.Points < prev.Points {
				fail("points fall from %d to %d at %s", prev.Points, next.Points, next.Lower.Value)
			}
		}
	}

	return errors.Join(errs...)
}

// compareLower orders bands by lower bound; an unbounded lower end sorts first.
func compareLower(a, b Band) int {
	switch {
	case a.Lower == nil && b.Lower == nil:
		return 0
	case a.Lower == nil:
		return -1
	case b.Lower == nil:
		return 1
	}
	if c := a.Lower.Value.Cmp(b.Lower.Value); c != 0 {
		return c
	}
	switch {
	case a.Lower.Inclusive == b.Lower.Inclusive:
		return 0
	case a.Lower.Inclusive:
		return -1
	default:
		return 1
	}
}

func validateIndustry(t *IndustryTable) error {
	var errs []error
	seen := make(map[domain.Industry]int)

	for _, b := range t.Bands {
		if b.Rationale == "" {
			errs = append(errs, fmt.Errorf("%w: industry band %v has no rationale", domain.ErrTableCoverage, b.Industries))
		}
		if b.Points < 0 {
			errs = append(errs, fmt.Errorf("%w: industry band %v has negative points", domain.ErrTableCoverage, b.Industries))
		}
		for _, ind := range b.Industries {
			if !ind.Valid() {
				errs = append(errs, fmt.Errorf("%w: unknown industry %q in table", domain.ErrTableCoverage, ind))
			}
			seen[ind]++
		}
	}

	for _, ind := range domain.Industries() {
		switch seen[ind] {
		case 1:
		case 0:
			errs = append(errs, fmt.Errorf("%w: industry %s is not covered", domain.ErrTableCoverage, ind))
		default:
			errs = append(errs, fmt.Errorf("%w: industry %s is listed %d times", domain.ErrTableCoverage, ind, seen[ind]))
		}
	}

	return errors.Join(errs...)
}
