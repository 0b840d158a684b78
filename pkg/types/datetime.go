package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DatePrecision is the finest calendar field a date/time literal
// specified. Comparisons between values of different precision that
// agree on their common fields are undefined and yield empty.
type DatePrecision int

const (
	PrecYear DatePrecision = iota
	PrecMonth
	PrecDay
	PrecHour
	PrecMinute
	PrecSecond
	PrecMillisecond
)

// Date is a partial calendar date.
type Date struct {
	Year, Month, Day int
	Precision        DatePrecision
}

// DateTime is a partial date and time with an optional UTC offset in
// minutes. Offset nil means no timezone was specified.
type DateTime struct {
	Year, Month, Day   int
	Hour, Minute, Sec  int
	Millisecond        int
	Offset             *int
	Precision          DatePrecision
}

// Time is a partial time of day.
type Time struct {
	Hour, Minute, Sec int
	Millisecond       int
	Precision         DatePrecision
}

func (d Date) String() string {
	switch d.Precision {
	case PrecYear:
		return fmt.Sprintf("%04d", d.Year)
	case PrecMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

func (t Time) String() string {
	switch t.Precision {
	case PrecHour:
		return fmt.Sprintf("T%02d", t.Hour)
	case PrecMinute:
		return fmt.Sprintf("T%02d:%02d", t.Hour, t.Minute)
	case PrecSecond:
		return fmt.Sprintf("T%02d:%02d:%02d", t.Hour, t.Minute, t.Sec)
	default:
		return fmt.Sprintf("T%02d:%02d:%02d.%03d", t.Hour, t.Minute, t.Sec, t.Millisecond)
	}
}

func (d DateTime) String() string {
	date := Date{d.Year, d.Month, d.Day, minPrecision(d.Precision, PrecDay)}.String()
	if d.Precision <= PrecDay {
		return date
	}
	var b strings.Builder
	b.WriteString(date)
	b.WriteString(Time{d.Hour, d.Minute, d.Sec, d.Millisecond, d.Precision}.String())
	if d.Offset != nil {
		off := *d.Offset
		if off == 0 {
			b.WriteString("Z")
		} else {
			sign := "+"
			if off < 0 {
				sign = "-"
				off = -off
			}
			b.WriteString(fmt.Sprintf("%s%02d:%02d", sign, off/60, off%60))
		}
	}
	return b.String()
}

func minPrecision(a, b DatePrecision) DatePrecision {
	if a < b {
		return a
	}
	return b
}

// ToDateTime widens a date to a datetime of the same precision.
func (d Date) ToDateTime() DateTime {
	return DateTime{Year: d.Year, Month: d.Month, Day: d.Day, Precision: d.Precision}
}

// ToTime converts the datetime's UTC-normalized instant using the
// offset when present; fields without a specified offset are taken as
// local wall-clock values.
func (d DateTime) ToTime() time.Time {
	loc := time.UTC
	if d.Offset != nil {
		loc = time.FixedZone("", *d.Offset*60)
	}
	month := d.Month
	if month == 0 {
		month = 1
	}
	day := d.Day
	if day == 0 {
		day = 1
	}
	return time.Date(d.Year, time.Month(month), day, d.Hour, d.Minute, d.Sec,
		d.Millisecond*int(time.Millisecond), loc)
}

// ParseDate parses the body of an @YYYY[-MM[-DD]] literal.
func ParseDate(s string) (Date, error) {
	parts := strings.Split(s, "-")
	if len(parts) == 0 || len(parts) > 3 {
		return Date{}, fmt.Errorf("malformed date %q", s)
	}
	var d Date
	year, err := atoiExact(parts[0], 4)
	if err != nil {
		return Date{}, fmt.Errorf("malformed date %q", s)
	}
	d.Year = year
	d.Precision = PrecYear
	if len(parts) > 1 {
		m, err := atoiExact(parts[1], 2)
		if err != nil || m < 1 || m > 12 {
			return Date{}, fmt.Errorf("malformed date %q", s)
		}
		d.Month = m
		d.Precision = PrecMonth
	}
	if len(parts) > 2 {
		day, err := atoiExact(parts[2], 2)
		if err != nil || day < 1 || day > 31 {
			return Date{}, fmt.Errorf("malformed date %q", s)
		}
		d.Day = day
		d.Precision = PrecDay
	}
	return d, nil
}

// ParseTime parses the body of an @Thh[:mm[:ss[.fff]]] literal with or
// without the leading T.
func ParseTime(s string) (Time, error) {
	s = strings.TrimPrefix(s, "T")
	var t Time
	milli := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		milli = s[i+1:]
		s = s[:i]
	}
	parts := strings.Split(s, ":")
	if len(parts) == 0 || len(parts) > 3 {
		return Time{}, fmt.Errorf("malformed time %q", s)
	}
	h, err := atoiExact(parts[0], 2)
	if err != nil || h > 23 {
		return Time{}, fmt.Errorf("malformed time %q", s)
	}
	t.Hour = h
	t.Precision = PrecHour
	if len(parts) > 1 {
		m, err := atoiExact(parts[1], 2)
		if err != nil || m > 59 {
			return Time{}, fmt.Errorf("malformed time %q", s)
		}
		t.Minute = m
		t.Precision = PrecMinute
	}
	if len(parts) > 2 {
		sec, err := atoiExact(parts[2], 2)
		if err != nil || sec > 59 {
			return Time{}, fmt.Errorf("malformed time %q", s)
		}
		t.Sec = sec
		t.Precision = PrecSecond
	}
	if milli != "" {
		if len(parts) < 3 {
			return Time{}, fmt.Errorf("malformed time %q", s)
		}
		for len(milli) < 3 {
			milli += "0"
		}
		ms, err := strconv.Atoi(milli[:3])
		if err != nil {
			return Time{}, fmt.Errorf("malformed time %q", s)
		}
		t.Millisecond = ms
		t.Precision = PrecMillisecond
	}
	return t, nil
}

// ParseDateTime parses the body of a datetime literal:
// YYYY[-MM[-DD[Thh[:mm[:ss[.fff]]][Z|±hh:mm]]]].
func ParseDateTime(s string) (DateTime, error) {
	datePart := s
	timePart := ""
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		datePart = s[:i]
		timePart = s[i+1:]
	}
	d, err := ParseDate(datePart)
	if err != nil {
		return DateTime{}, err
	}
	dt := d.ToDateTime()
	if timePart == "" {
		return dt, nil
	}
	if d.Precision != PrecDay {
		return DateTime{}, fmt.Errorf("malformed datetime %q", s)
	}

	var offset *int
	if strings.HasSuffix(timePart, "Z") {
		zero := 0
		offset = &zero
		timePart = timePart[:len(timePart)-1]
	} else if i := strings.LastIndexAny(timePart, "+-"); i > 0 {
		offStr := timePart[i:]
		timePart = timePart[:i]
		off, err := parseOffset(offStr)
		if err != nil {
			return DateTime{}, err
		}
		offset = &off
	}
	t, err := ParseTime(timePart)
	if err != nil {
		return DateTime{}, err
	}
	dt.Hour, dt.Minute, dt.Sec = t.Hour, t.Minute, t.Sec
	dt.Millisecond = t.Millisecond
	dt.Precision = t.Precision
	dt.Offset = offset
	return dt, nil
}

func parseOffset(s string) (int, error) {
	sign := 1
	switch s[0] {
	case '+':
	case '-':
		sign = -1
	default:
		return 0, fmt.Errorf("malformed timezone offset %q", s)
	}
	parts := strings.Split(s[1:], ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("malformed timezone offset %q", s)
	}
	h, err1 := atoiExact(parts[0], 2)
	m, err2 := atoiExact(parts[1], 2)
	if err1 != nil || err2 != nil || h > 14 || m > 59 {
		return 0, fmt.Errorf("malformed timezone offset %q", s)
	}
	return sign * (h*60 + m), nil
}

func atoiExact(s string, width int) (int, error) {
	if len(s) != width {
		return 0, fmt.Errorf("expected %d digits", width)
	}
	return strconv.Atoi(s)
}

// CompareDates orders two dates. defined is false when the values
// agree on their common fields but differ in precision, which FHIRPath
// treats as an undefined comparison.
func CompareDates(a, b Date) (cmp int, defined bool) {
	return comparePartial(
		[]int{a.Year, a.Month, a.Day}, int(a.Precision),
		[]int{b.Year, b.Month, b.Day}, int(b.Precision),
	)
}

// CompareTimes orders two times with the same undefined-precision rule
// as dates.
func CompareTimes(a, b Time) (cmp int, defined bool) {
	return comparePartial(
		[]int{a.Hour, a.Minute, a.Sec, a.Millisecond}, int(a.Precision) - int(PrecHour),
		[]int{b.Hour, b.Minute, b.Sec, b.Millisecond}, int(b.Precision) - int(PrecHour),
	)
}

// CompareDateTimes orders two datetimes. When both values carry an
// offset and both have at least second precision, they compare as UTC
// instants. All other pairs, including offset values of hour or minute
// precision, compare on their written fields without offset adjustment.
func CompareDateTimes(a, b DateTime) (cmp int, defined bool) {
	if a.Offset != nil && b.Offset != nil && a.Precision >= PrecSecond && b.Precision >= PrecSecond {
		ta, tb := a.ToTime(), b.ToTime()
		switch {
		case ta.Before(tb):
			return -1, true
		case ta.After(tb):
			return 1, true
		default:
			return 0, true
		}
	}
	return comparePartial(
		[]int{a.Year, a.Month, a.Day, a.Hour, a.Minute, a.Sec, a.Millisecond}, int(a.Precision),
		[]int{b.Year, b.Month, b.Day, b.Hour, b.Minute, b.Sec, b.Millisecond}, int(b.Precision),
	)
}

// comparePartial compares field lists up to the shorter precision.
// When all common fields agree but precisions differ, the comparison
// is undefined.
func comparePartial(a []int, precA int, b []int, precB int) (int, bool) {
	n := precA
	if precB < n {
		n = precB
	}
	for i := 0; i <= n && i < len(a); i++ {
		if a[i] < b[i] {
			return -1, true
		}
		if a[i] > b[i] {
			return 1, true
		}
	}
	if precA == precB {
		return 0, true
	}
	return 0, false
}

// SubtractDateTimes returns the elapsed span between two datetimes as
// a quantity in seconds. Both operands are taken at their specified
// fields; missing fields default to the earliest instant.
func SubtractDateTimes(a, b DateTime) Quantity {
	secs := a.ToTime().Sub(b.ToTime()).Seconds()
	return Quantity{Value: secs, Precision: -1, Unit: "s"}
}
