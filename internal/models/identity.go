package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// RecordKind names the origin of a [Record].
type RecordKind string

const (
	KindTransaction RecordKind = "transaction"
	KindRefund      RecordKind = "refund"
	KindAccount     RecordKind = "account"
	KindProvider    RecordKind = "provider"
)

// Identity is the (account, provider, team) triple that keys one report row.
//
// Two identities are the same entity iff all three fields are byte-equal.
type Identity struct {
	AccountUID   string `json:"account_uid"`
	ProviderUUID string `json:"provider_uuid"`
	TeamName     string `json:"team_name"`
}

func (i Identity) String() string {
	return fmt.Sprintf("%s/%s/%s", i.TeamName, i.ProviderUUID, i.AccountUID)
}

// Record is a single column-named row produced by a record source. Downstream stages treat it as read-only.
type Record map[string]any

// String returns the value at key as a string and whether it was present and non-empty.
func (r Record) String(key string) (string, bool) {
	v, ok := r[key]
	if !ok || v == nil {
		return "", false
	}

	var s string
	switch t := v.(type) {
	case string:
		s = t
	case []byte:
		s = string(t)
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	return s, s != ""
}

// FirstString returns the first non-empty string among keys.
func (r Record) FirstString(keys ...string) (string, bool) {
	for _, k := range keys {
		if s, ok := r.String(k); ok {
			return s, true
		}
	}
	return "", false
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Time returns the value at key as a time. Strings are parsed with the usual SQL timestamp layouts.
func (r Record) Time(key string) (*time.Time, bool) {
	switch v := r[key].(type) {
	case time.Time:
		if v.IsZero() {
			return nil, false
		}
		return &v, true
	case *time.Time:
		return v, v != nil
	case string, []byte:
		s, _ := r.String(key)
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return &t, true
			}
		}
	}
	return nil, false
}

// Decimal returns the value at key as a nullable decimal.
//
// A missing key, a SQL NULL and an unparseable value all yield an invalid [decimal.NullDecimal].
func (r Record) Decimal(key string) decimal.NullDecimal {
	switch v := r[key].(type) {
	case decimal.Decimal:
		return decimal.NewNullDecimal(v)
	case decimal.NullDecimal:
		return v
	case float64:
		return decimal.NewNullDecimal(decimal.NewFromFloat(v))
	case float32:
		return decimal.NewNullDecimal(decimal.NewFromFloat32(v))
	case int64:
		return decimal.NewNullDecimal(decimal.NewFromInt(v))
	case int:
		return decimal.NewNullDecimal(decimal.NewFromInt(int64(v)))
	case string, []byte:
		s, _ := r.String(key)
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}

// Int returns the value at key as an int64.
func (r Record) Int(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case float64:
		return int64(v), true
	case string, []byte:
		s, _ := r.String(key)
		n, err := strconv.ParseInt(s, 10, 64)
		return n, err == nil
	}
	return 0, false
}
