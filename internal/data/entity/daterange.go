package entity

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// DateRange is a half-open stay interval [CheckIn, CheckOut).
// The check-out date itself is never occupied.
type DateRange struct {
	CheckIn  time.Time
	CheckOut time.Time
}

func NewDateRange(checkIn, checkOut time.Time) (DateRange, error) {
	in := Midnight(checkIn)
	out := Midnight(checkOut)
	if !in.Before(out) {
		return DateRange{}, fmt.Errorf("check-in %s must be before check-out %s",
			in.Format(DateLayout), out.Format(DateLayout))
	}
	return DateRange{CheckIn: in, CheckOut: out}, nil
}

// Midnight truncates to the calendar date in UTC.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (r DateRange) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// Dates returns every occupied date, check-out excluded.
func (r DateRange) Dates() []time.Time {
	dates := make([]time.Time, 0, r.Nights())
	for d := r.CheckIn; d.Before(r.CheckOut); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates
}

func (r DateRange) Contains(date time.Time) bool {
	d := Midnight(date)
	return !d.Before(r.CheckIn) && d.Before(r.CheckOut)
}

func (r DateRange) Overlaps(other DateRange) bool {
	return r.CheckIn.Before(other.CheckOut) && other.CheckIn.Before(r.CheckOut)
}

func (r DateRange) Shift(days int) DateRange {
	return DateRange{
		CheckIn:  r.CheckIn.AddDate(0, 0, days),
		CheckOut: r.CheckOut.AddDate(0, 0, days),
	}
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s)", r.CheckIn.Format(DateLayout), r.CheckOut.Format(DateLayout))
}
