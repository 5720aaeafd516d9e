package models

import (
	"fmt"
	"strings"
)

// Period is a candle resolution. The string value is the key persisted in the store.
type Period string

const (
	Period1m   Period = "1m"
	Period5m   Period = "5m"
	Period15m  Period = "15m"
	Period30m  Period = "30m"
	Period1h   Period = "1h"
	Period4h   Period = "4h"
	Period1d   Period = "1d"
	Period1w   Period = "1w"
	Period1mon Period = "1mon"
	Period1y   Period = "1y"
)

// AllPeriods lists every supported period, shortest first.
var AllPeriods = []Period{
	Period1m, Period5m, Period15m, Period30m, Period1h,
	Period4h, Period1d, Period1w, Period1mon, Period1y,
}

// Seconds returns the nominal period length. A month counts as 30 days and a
// year as 365 days. Unknown periods return 0.
func (p Period) Seconds() int64 {
	switch p {
	case Period1m:
		return 60
	case Period5m:
		return 5 * 60
	case Period15m:
		return 15 * 60
	case Period30m:
		return 30 * 60
	case Period1h:
		return 60 * 60
	case Period4h:
		return 4 * 60 * 60
	case Period1d:
		return 24 * 60 * 60
	case Period1w:
		return 7 * 24 * 60 * 60
	case Period1mon:
		return 30 * 24 * 60 * 60
	case Period1y:
		return 365 * 24 * 60 * 60
	default:
		return 0
	}
}

// Key returns the storage key of the period.
func (p Period) Key() string { return string(p) }

// IsValid reports whether p is a supported period.
func (p Period) IsValid() bool { return p.Seconds() > 0 }

func (p Period) String() string { return string(p) }

// ParsePeriod converts a storage key such as "4h" or "1MON" into a Period.
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unsupported period %q", s)
	}
	return p, nil
}

// ParsePeriods parses a list of period keys, failing on the first invalid one.
func ParsePeriods(keys []string) ([]Period, error) {
	out := make([]Period, 0, len(keys))
	for _, k := range keys {
		p, err := ParsePeriod(k)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
