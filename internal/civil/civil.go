// Package civil provides calendar helpers pinned to the booking system's
// civil time zone (IST). Quota keys, birthday checks and holiday lookups all
// agree on what "today" means regardless of the host's local zone.
package civil

import "time"

// Zone is the fixed civil time zone for all date-scoped behavior.
var Zone = time.FixedZone("IST", 5*3600+30*60)

const dateLayout = "2006-01-02"

// Date formats t as a YYYY-MM-DD string in the civil zone.
func Date(t time.Time) string {
	return t.In(Zone).Format(dateLayout)
}

// ParseDate parses a YYYY-MM-DD string in the civil zone.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, Zone)
}

// IsBirthday reports whether the month and day of the given date of birth
// (YYYY-MM-DD) match now's month and day in the civil zone. An unparseable
// date of birth is never a birthday.
func IsBirthday(dateOfBirth string, now time.Time) bool {
	dob, err := ParseDate(dateOfBirth)
	if err != nil {
		return false
	}
	today := now.In(Zone)
	return dob.Month() == today.Month() && dob.Day() == today.Day()
}
