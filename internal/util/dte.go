package util

import (
	"fmt"
	"time"
)

// Expiration date layouts accepted from the gateway. Option contracts use
// the compact YYYYMMDD form; some portfolio endpoints return ISO dates.
var expirationLayouts = []string{"20060102", "2006-01-02"}

// OptionDTE returns the days to expiration for an option expiration date
// string, measured in whole days from today (UTC). An already-expired date
// yields a negative value; a date that cannot be parsed is a data bug and
// returns an error rather than a default.
func OptionDTE(expiration string) (int, error) {
	return optionDTEAt(expiration, time.Now())
}

func optionDTEAt(expiration string, now time.Time) (int, error) {
	var exp time.Time
	var err error
	for _, layout := range expirationLayouts {
		exp, err = time.Parse(layout, expiration)
		if err == nil {
			break
		}
	}
	if err != nil {
		return 0, fmt.Errorf("unparseable expiration date %q: %w", expiration, err)
	}

	today := now.UTC().Truncate(24 * time.Hour)
	expDay := exp.UTC().Truncate(24 * time.Hour)
	return int(expDay.Sub(today).Hours() / 24), nil
}
