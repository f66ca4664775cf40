package report

import (
	"encoding/json"
	"math"

	"github.com/shopspring/decimal"
)

// Num is a metric value that always serializes: NaN (undefined) becomes
// null, the infinities become the strings "inf" and "-inf", and everything
// else is a standard JSON number. encoding/json rejects non-finite floats,
// so every metric crossing the JSON boundary goes through this type.
type Num float64

// MarshalJSON implements json.Marshaler.
func (n Num) MarshalJSON() ([]byte, error) {
	f := float64(n)
	switch {
	case math.IsNaN(f):
		return []byte("null"), nil
	case math.IsInf(f, 1):
		return json.Marshal("inf")
	case math.IsInf(f, -1):
		return json.Marshal("-inf")
	default:
		return json.Marshal(f)
	}
}

// UnmarshalJSON implements json.Unmarshaler, accepting the same encodings
// MarshalJSON produces.
func (n *Num) UnmarshalJSON(data []byte) error {
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*n = Num(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "inf":
		*n = Num(math.Inf(1))
	case "-inf":
		*n = Num(math.Inf(-1))
	default:
		*n = Num(math.NaN())
	}
	return nil
}

// Cents rounds a currency amount to two decimal places using decimal
// arithmetic, so 2.675 and friends round the way money is expected to.
func Cents(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// MarshalIndent renders the report as indented JSON.
func (r *Report) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
