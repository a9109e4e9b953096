package timeparse

import (
	"math"
	"time"
)

// Spreadsheet serial numbers count days since 1899-12-30; the fractional
// part is the time of day.
var serialEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// DateFromSerial converts a spreadsheet serial number into its calendar day.
// Values below 1 are pure times and carry no date.
func DateFromSerial(serial float64) (CalendarDate, bool) {
	if math.IsNaN(serial) || math.IsInf(serial, 0) || serial < 1 {
		return CalendarDate{}, false
	}
	days := int(math.Floor(serial))
	return DateOf(serialEpoch.AddDate(0, 0, days)), true
}

// Serial returns the spreadsheet serial number of midnight on d.
func (d CalendarDate) Serial() float64 {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	return math.Round(t.Sub(serialEpoch).Hours() / 24)
}

// DayFraction returns c as a fraction of a day.
func (c TimeOfDay) DayFraction() float64 {
	return float64(c.Hour*60+c.Minute) / (24 * 60)
}
