package excel

import (
	"context"
	"math"
	"regexp"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
	"github.com/wmo-raf/adl-collector-app-sub000/pkg/errors"
)

// timeLayout matches intake.LocalTimeLayout; rows carry station-local civil
// times.
const timeLayout = "2006-01-02 15:04"

type Validator struct {
	variableRegex *regexp.Regexp
}

func NewValidator() *Validator {
	return &Validator{
		variableRegex: regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_]{0,63}$`),
	}
}

// ValidateRow checks one parsed row's shape: station name length, local
// time format, variable identifiers and finite values. Failures are
// ValidationErrors scoped to that row, so the ingestion worker can skip
// the row instead of failing the import.
func (v *Validator) ValidateRow(ctx context.Context, row model.ImportRow) error {
	if len(row.StationName) == 0 || len(row.StationName) > 100 {
		return errors.ValidationError{
			Field:   "station",
			Value:   row.StationName,
			Message: "must be 1-100 characters",
		}
	}

	if _, err := time.Parse(timeLayout, row.LocalTime); err != nil {
		return errors.ValidationError{
			Field:   "observation_time",
			Value:   row.LocalTime,
			Message: "expected format " + timeLayout,
		}
	}

	for _, value := range row.Values {
		if !v.variableRegex.MatchString(value.Variable) {
			return errors.ValidationError{
				Field:   "variable",
				Value:   value.Variable,
				Message: "must be a short alphanumeric identifier",
			}
		}
		if math.IsNaN(value.Value) || math.IsInf(value.Value, 0) {
			return errors.ValidationError{
				Field:   value.Variable,
				Value:   value.Value,
				Message: "must be a finite number",
			}
		}
	}

	return nil
}
