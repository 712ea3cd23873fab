package jsonx

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type price struct {
	Amount Decimal `json:"amount"`
}

func TestDecimal_Unmarshal(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		valid bool
	}{
		{"number", `{"amount": 19.99}`, "19.99", true},
		{"string", `{"amount": "0.10"}`, "0.1", true},
		{"exponent", `{"amount": 1e3}`, "1000", true},
		{"negative string", `{"amount": "-42"}`, "-42", true},
		{"null", `{"amount": null}`, "0", false},
		{"empty string", `{"amount": ""}`, "0", false},
		{"missing", `{}`, "0", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var p price
			require.NoError(t, json.Unmarshal([]byte(tc.input), &p))
			assert.Equal(t, tc.valid, p.Amount.Valid)
			assert.Equal(t, tc.want, p.Amount.Decimal.String())
		})
	}
}

func TestDecimal_UnmarshalRejectsGarbage(t *testing.T) {
	for _, input := range []string{`{"amount": "abc"}`, `{"amount": true}`, `{"amount": "1.2.3"}`} {
		var p price
		assert.Error(t, json.Unmarshal([]byte(input), &p), input)
	}
}

func TestDecimal_KeepsPrecision(t *testing.T) {
	var p price
	require.NoError(t, json.Unmarshal([]byte(`{"amount": 0.1}`), &p))
	sum := p.Amount.Decimal.Add(decimal.RequireFromString("0.2"))
	assert.Equal(t, "0.3", sum.String())
}

func TestDecimal_Marshal(t *testing.T) {
	out, err := json.Marshal(price{Amount: NewDecimal(decimal.RequireFromString("12.50"))})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 12.5}`, string(out))

	out, err = json.Marshal(price{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": null}`, string(out))
	assert.Equal(t, "", Decimal{}.String())
}
