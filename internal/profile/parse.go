package profile

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/tupyy/rigctl/internal/entity"
)

// rangeExpr matches "lower-upper" where both sides may carry a sign and a ',' or '.' decimal separator.
var rangeExpr = regexp.MustCompile(`^\s*(-?\d+(?:[.,]\d*)?|-?[.,]\d+)\s*-\s*(-?\d+(?:[.,]\d*)?|-?[.,]\d+)\s*$`)

// ParseFloat parses a number accepting both ',' and '.' as decimal separator.
func ParseFloat(s string) (float64, error) {
	v := strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if v == "" {
		return 0, fmt.Errorf("empty number")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("%q is not a finite number", s)
	}
	return f, nil
}

// ParseTarget turns a profile cell into a target.
// A cell which is neither a number nor a range is kept as a literal.
func ParseTarget(cell string) entity.Target {
	if m := rangeExpr.FindStringSubmatch(cell); m != nil {
		lower, errL := ParseFloat(m[1])
		upper, errU := ParseFloat(m[2])
		if errL == nil && errU == nil {
			return entity.Ramp(lower, upper)
		}
		return entity.LiteralCell(cell)
	}

	if v, err := ParseFloat(cell); err == nil {
		return entity.Fixed(v)
	}

	return entity.LiteralCell(cell)
}
