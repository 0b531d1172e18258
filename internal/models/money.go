// Merkato - Ethiopian Regional Marketplace
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/merkato

package models

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Money is an amount in the store currency (ETB) with two decimal places.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

// NewMoney converts a float amount, rounding to cents.
func NewMoney(amount float64) Money {
	return Money{d: decimal.NewFromFloat(amount).Round(2)}
}

// MoneyFromCents builds an amount from an integer number of santim.
func MoneyFromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -2)}
}

// ParseMoney parses a decimal string such as "1250.50".
func ParseMoney(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{d: d.Round(2)}, nil
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

// Times multiplies by an integer quantity.
func (m Money) Times(qty int) Money {
	return Money{d: m.d.Mul(decimal.NewFromInt(int64(qty)))}
}

// Rate applies a fractional rate (e.g. 0.15 VAT) rounded half-up to cents.
func (m Money) Rate(rate float64) Money {
	return Money{d: m.d.Mul(decimal.NewFromFloat(rate)).Round(2)}
}

// DivInt divides by n, rounded to cents. Dividing by zero returns zero.
func (m Money) DivInt(n int) Money {
	if n == 0 {
		return Money{}
	}
	return Money{d: m.d.DivRound(decimal.NewFromInt(int64(n)), 2)}
}

func (m Money) Cmp(o Money) int          { return m.d.Cmp(o.d) }
func (m Money) Equal(o Money) bool       { return m.d.Equal(o.d) }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool    { return m.d.LessThan(o.d) }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) IsNegative() bool         { return m.d.IsNegative() }
func (m Money) IsPositive() bool         { return m.d.IsPositive() }

// Float64 is for analytics and metrics only; never compute prices with it.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// Cents returns the amount in santim.
func (m Money) Cents() int64 {
	return m.d.Shift(2).Round(0).IntPart()
}

// Decimal exposes the underlying value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// String renders the amount with exactly two decimals.
func (m Money) String() string { return m.d.StringFixed(2) }

// MarshalJSON renders the amount as a JSON string to keep precision.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts both "12.50" and 12.5.
func (m *Money) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*m = Money{}
		return nil
	}
	s := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	}
	return m.setString(s)
}

// MarshalBSONValue stores the amount as Decimal128.
func (m Money) MarshalBSONValue() (bsontype.Type, []byte, error) {
	d128, err := primitive.ParseDecimal128(m.String())
	if err != nil {
		return 0, nil, fmt.Errorf("encode money %s: %w", m.String(), err)
	}
	return bson.MarshalValue(d128)
}

// UnmarshalBSONValue reads Decimal128, double, int and string values so
// documents written by other tools (mongosh scripts, imports) still load.
func (m *Money) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	raw := bson.RawValue{Type: t, Value: data}
	switch t {
	case bson.TypeDecimal128:
		d128, ok := raw.Decimal128OK()
		if !ok {
			return fmt.Errorf("decode money: malformed decimal128")
		}
		return m.setString(d128.String())
	case bson.TypeDouble:
		*m = NewMoney(raw.Double())
		return nil
	case bson.TypeInt32:
		*m = Money{d: decimal.NewFromInt32(raw.Int32())}
		return nil
	case bson.TypeInt64:
		*m = Money{d: decimal.NewFromInt(raw.Int64())}
		return nil
	case bson.TypeString:
		return m.setString(raw.StringValue())
	case bson.TypeNull:
		*m = Money{}
		return nil
	default:
		return fmt.Errorf("decode money: unsupported bson type %s", t)
	}
}

func (m *Money) setString(s string) error {
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// SumMoney adds a list of amounts.
func SumMoney(amounts ...Money) Money {
	total := Money{}
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
