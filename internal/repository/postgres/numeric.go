package postgres

import (
	"strconv"

	"github.com/jackc/pgx/v5/pgtype"
)

// NumericToFloat64 converts pgtype.Numeric to float64
func NumericToFloat64(n pgtype.Numeric) float64 {
	f, _ := n.Float64Value()
	return f.Float64
}

// Float64ToNumeric converts float64 to a pgtype.Numeric with two decimal
// places, matching the money columns.
func Float64ToNumeric(f float64) (pgtype.Numeric, error) {
	var n pgtype.Numeric
	str := strconv.FormatFloat(f, 'f', 2, 64)
	if err := n.Scan(str); err != nil {
		return pgtype.Numeric{}, err
	}
	return n, nil
}
