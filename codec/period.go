package codec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// YearMonth is a month of a year without day or time.
type YearMonth struct {
	Year  int
	Month time.Month
}

// YearMonthOf returns the year and month of t in t's location.
func YearMonthOf(t time.Time) YearMonth {
	return YearMonth{Year: t.Year(), Month: t.Month()}
}

func (ym YearMonth) IsValid() bool {
	return ym.Month >= time.January && ym.Month <= time.December
}

func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// EncodeYearMonth packs a year and month as yyyymm.
func EncodeYearMonth(ym YearMonth) int64 {
	return yearMonthPadder.pad(int64(ym.Year), int64(ym.Month))
}

// DecodeYearMonth accepts a packed number, a "2006-01" string or a datetime.
func DecodeYearMonth(v any) (YearMonth, error) {
	var ym YearMonth
	switch {
	case isNumber(v):
		n, ok := toInt64(v)
		if !ok {
			return YearMonth{}, invalid("year month", v)
		}
		c := yearMonthPadder.extract(n)
		ym = YearMonth{Year: int(c[0]), Month: time.Month(c[1])}
	case isString(v):
		t, err := time.Parse("2006-01", v.(string))
		if err != nil {
			return YearMonth{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		ym = YearMonthOf(t)
	default:
		t, ok := toTime(v)
		if !ok {
			return YearMonth{}, invalid("year month", v)
		}
		ym = YearMonthOf(t)
	}
	if !ym.IsValid() {
		return YearMonth{}, invalid("year month", v)
	}
	return ym, nil
}

// Period is a date based amount of time such as "2 years, 3 months and 4 days".
type Period struct {
	Years  int
	Months int
	Days   int
}

// String renders the ISO-8601 form, P1Y2M3D, or P0D for the zero period.
func (p Period) String() string {
	if p == (Period{}) {
		return "P0D"
	}
	var b strings.Builder
	b.WriteByte('P')
	if p.Years != 0 {
		b.WriteString(strconv.Itoa(p.Years))
		b.WriteByte('Y')
	}
	if p.Months != 0 {
		b.WriteString(strconv.Itoa(p.Months))
		b.WriteByte('M')
	}
	if p.Days != 0 {
		b.WriteString(strconv.Itoa(p.Days))
		b.WriteByte('D')
	}
	return b.String()
}

var periodRe = regexp.MustCompile(`^([-+]?)P(?:([-+]?[0-9]+)Y)?(?:([-+]?[0-9]+)M)?(?:([-+]?[0-9]+)W)?(?:([-+]?[0-9]+)D)?$`)

// ParsePeriod parses PnYnMnWnD. Weeks are folded into days.
func ParsePeriod(s string) (Period, error) {
	m := periodRe.FindStringSubmatch(strings.ToUpper(s))
	if m == nil || m[2]+m[3]+m[4]+m[5] == "" {
		return Period{}, fmt.Errorf("%w: %q is not a period", ErrInvalidArgument, s)
	}

	var n [4]int
	for i, g := range m[2:] {
		if g == "" {
			continue
		}
		v, err := strconv.Atoi(g)
		if err != nil {
			return Period{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		n[i] = v
	}

	p := Period{Years: n[0], Months: n[1], Days: n[2]*7 + n[3]}
	if m[1] == "-" {
		p = Period{Years: -p.Years, Months: -p.Months, Days: -p.Days}
	}
	return p, nil
}

// EncodePeriod stores a period as its ISO-8601 string.
func EncodePeriod(p Period) string {
	return p.String()
}

// DecodePeriod accepts an ISO-8601 period string.
func DecodePeriod(v any) (Period, error) {
	s, ok := v.(string)
	if !ok {
		return Period{}, invalid("period", v)
	}
	return ParsePeriod(s)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int32, int64, float64:
		return true
	}
	return false
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}
