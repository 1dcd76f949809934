// Package codec converts temporal values to and from flat wire values.
// Numeric encodings pack the components as fixed width decimal digit
// groups so that the stored number reads like the value and sorts like it:
// 2014-03-27 is stored as 20140327.
package codec

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/golang-sql/civil"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// ErrInvalidArgument is returned when a wire value cannot be decoded into
// the requested type.
var ErrInvalidArgument = errors.New("invalid argument")

const (
	nanosPerMilli  = int64(time.Millisecond)
	nanosPerSecond = int64(time.Second)
)

// padder packs numbers into decimal digit groups. widths[i] is the number of
// digits given to the (i+1)th component; the first component takes the rest.
type padder []int64

func newPadder(widths ...int) padder {
	p := make(padder, len(widths))
	for i, w := range widths {
		p[i] = int64(math.Pow10(w))
	}
	return p
}

func (p padder) pad(first int64, rest ...int64) int64 {
	v := first
	for i, r := range rest {
		v = v*p[i] + r
	}
	return v
}

func (p padder) extract(v int64) []int64 {
	out := make([]int64, len(p)+1)
	for i := len(out) - 1; i > 0; i-- {
		out[i] = v % p[i-1]
		v /= p[i-1]
	}
	out[0] = v
	return out
}

var (
	datePadder      = newPadder(2, 2)
	timePadder      = newPadder(2, 2, 3)
	dateTimePadder  = newPadder(2, 2, 2, 2, 2, 3)
	yearMonthPadder = newPadder(2)
)

// EncodeDate packs a date as yyyymmdd.
func EncodeDate(d civil.Date) int64 {
	return datePadder.pad(int64(d.Year), int64(d.Month), int64(d.Day))
}

// DecodeDate accepts a packed number, an ISO date string or a datetime.
func DecodeDate(v any) (civil.Date, error) {
	if n, ok := toInt64(v); ok {
		c := datePadder.extract(n)
		d := civil.Date{Year: int(c[0]), Month: time.Month(c[1]), Day: int(c[2])}
		if !d.IsValid() {
			return civil.Date{}, invalid("date", v)
		}
		return d, nil
	}
	if s, ok := v.(string); ok {
		d, err := civil.ParseDate(s)
		if err != nil {
			return civil.Date{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return d, nil
	}
	if t, ok := toTime(v); ok {
		return civil.DateOf(t), nil
	}
	return civil.Date{}, invalid("date", v)
}

// EncodeTimeOfDay packs a time of day as hhmmssSSS, keeping milliseconds.
func EncodeTimeOfDay(t civil.Time) int64 {
	return timePadder.pad(int64(t.Hour), int64(t.Minute), int64(t.Second),
		int64(t.Nanosecond)/nanosPerMilli)
}

// DecodeTimeOfDay accepts a packed number.
func DecodeTimeOfDay(v any) (civil.Time, error) {
	n, ok := toInt64(v)
	if !ok {
		return civil.Time{}, invalid("time of day", v)
	}
	c := timePadder.extract(n)
	t := civil.Time{
		Hour:       int(c[0]),
		Minute:     int(c[1]),
		Second:     int(c[2]),
		Nanosecond: int(c[3] * nanosPerMilli),
	}
	if !t.IsValid() {
		return civil.Time{}, invalid("time of day", v)
	}
	return t, nil
}

// EncodeDateTime packs a date and time as yyyymmddhhmmss followed by three
// digits of milliseconds.
func EncodeDateTime(dt civil.DateTime) int64 {
	return dateTimePadder.pad(int64(dt.Date.Year), int64(dt.Date.Month), int64(dt.Date.Day),
		int64(dt.Time.Hour), int64(dt.Time.Minute), int64(dt.Time.Second),
		int64(dt.Time.Nanosecond)/nanosPerMilli)
}

// DecodeDateTime accepts a packed number, an ISO string or a datetime.
func DecodeDateTime(v any) (civil.DateTime, error) {
	if n, ok := toInt64(v); ok {
		c := dateTimePadder.extract(n)
		dt := civil.DateTime{
			Date: civil.Date{Year: int(c[0]), Month: time.Month(c[1]), Day: int(c[2])},
			Time: civil.Time{Hour: int(c[3]), Minute: int(c[4]), Second: int(c[5]), Nanosecond: int(c[6] * nanosPerMilli)},
		}
		if !dt.IsValid() {
			return civil.DateTime{}, invalid("date time", v)
		}
		return dt, nil
	}
	if s, ok := v.(string); ok {
		return DecodeDateTimeString(s)
	}
	if t, ok := toTime(v); ok {
		return civil.DateTimeOf(t), nil
	}
	return civil.DateTime{}, invalid("date time", v)
}

// EncodeDateTimeString renders an ISO-8601 local date time with full
// nanosecond precision.
func EncodeDateTimeString(dt civil.DateTime) string {
	return dt.String()
}

// DecodeDateTimeString parses the output of EncodeDateTimeString.
func DecodeDateTimeString(s string) (civil.DateTime, error) {
	dt, err := civil.ParseDateTime(s)
	if err != nil {
		return civil.DateTime{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return dt, nil
}

// EncodeInstant stores an instant as nanoseconds since the Unix epoch.
func EncodeInstant(t time.Time) int64 {
	return t.Unix()*nanosPerSecond + int64(t.Nanosecond())
}

// DecodeInstant accepts epoch nanoseconds or a datetime. Decoded instants
// are in UTC.
func DecodeInstant(v any) (time.Time, error) {
	if n, ok := toInt64(v); ok {
		return time.Unix(n/nanosPerSecond, n%nanosPerSecond).UTC(), nil
	}
	if t, ok := toTime(v); ok {
		return t.UTC(), nil
	}
	return time.Time{}, invalid("instant", v)
}

// EncodeDuration stores a duration as nanoseconds.
func EncodeDuration(d time.Duration) int64 {
	return int64(d)
}

// DecodeDuration accepts nanoseconds or a Go duration string such as "1h30m".
func DecodeDuration(v any) (time.Duration, error) {
	if n, ok := toInt64(v); ok {
		return time.Duration(n), nil
	}
	if s, ok := v.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		return d, nil
	}
	return 0, invalid("duration", v)
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case float64:
		if n != math.Trunc(n) {
			return 0, false
		}
		return int64(n), true
	}
	return 0, false
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case bson.DateTime:
		return t.Time().UTC(), true
	}
	return time.Time{}, false
}

func invalid(what string, v any) error {
	return fmt.Errorf("%w: cannot convert %T(%v) to %s", ErrInvalidArgument, v, v, what)
}
