package codec

import (
	"fmt"
	"reflect"
	"time"

	"github.com/golang-sql/civil"
	"go.mongodb.org/mongo-driver/v2/bson"
)

// Options selects between the alternative encodings.
type Options struct {
	// DateTimeAsString stores civil.DateTime as an ISO-8601 string instead of
	// the packed number, trading compactness for nanosecond precision.
	DateTimeAsString bool

	// InstantAsNanos stores time.Time as epoch nanoseconds instead of a
	// native datetime, which only keeps milliseconds.
	InstantAsNanos bool
}

var (
	tDate      = reflect.TypeOf(civil.Date{})
	tTime      = reflect.TypeOf(civil.Time{})
	tDateTime  = reflect.TypeOf(civil.DateTime{})
	tYearMonth = reflect.TypeOf(YearMonth{})
	tPeriod    = reflect.TypeOf(Period{})
	tDuration  = reflect.TypeOf(time.Duration(0))
	tInstant   = reflect.TypeOf(time.Time{})
)

// Register installs the temporal encoders and decoders into reg.
func Register(reg *bson.Registry, opts Options) {
	reg.RegisterTypeEncoder(tDate, int64Encoder(func(v reflect.Value) int64 {
		return EncodeDate(v.Interface().(civil.Date))
	}))
	reg.RegisterTypeDecoder(tDate, decoder(func(v any) (any, error) { return DecodeDate(v) }))

	reg.RegisterTypeEncoder(tTime, int64Encoder(func(v reflect.Value) int64 {
		return EncodeTimeOfDay(v.Interface().(civil.Time))
	}))
	reg.RegisterTypeDecoder(tTime, decoder(func(v any) (any, error) { return DecodeTimeOfDay(v) }))

	if opts.DateTimeAsString {
		reg.RegisterTypeEncoder(tDateTime, stringEncoder(func(v reflect.Value) string {
			return EncodeDateTimeString(v.Interface().(civil.DateTime))
		}))
	} else {
		reg.RegisterTypeEncoder(tDateTime, int64Encoder(func(v reflect.Value) int64 {
			return EncodeDateTime(v.Interface().(civil.DateTime))
		}))
	}
	reg.RegisterTypeDecoder(tDateTime, decoder(func(v any) (any, error) { return DecodeDateTime(v) }))

	reg.RegisterTypeEncoder(tYearMonth, int64Encoder(func(v reflect.Value) int64 {
		return EncodeYearMonth(v.Interface().(YearMonth))
	}))
	reg.RegisterTypeDecoder(tYearMonth, decoder(func(v any) (any, error) { return DecodeYearMonth(v) }))

	reg.RegisterTypeEncoder(tPeriod, stringEncoder(func(v reflect.Value) string {
		return EncodePeriod(v.Interface().(Period))
	}))
	reg.RegisterTypeDecoder(tPeriod, decoder(func(v any) (any, error) { return DecodePeriod(v) }))

	reg.RegisterTypeEncoder(tDuration, int64Encoder(func(v reflect.Value) int64 {
		return EncodeDuration(time.Duration(v.Int()))
	}))
	reg.RegisterTypeDecoder(tDuration, decoder(func(v any) (any, error) { return DecodeDuration(v) }))

	if opts.InstantAsNanos {
		reg.RegisterTypeEncoder(tInstant, int64Encoder(func(v reflect.Value) int64 {
			return EncodeInstant(v.Interface().(time.Time))
		}))
		reg.RegisterTypeDecoder(tInstant, decoder(func(v any) (any, error) { return DecodeInstant(v) }))
	}
}

func int64Encoder(enc func(reflect.Value) int64) bson.ValueEncoder {
	return bson.ValueEncoderFunc(func(_ bson.EncodeContext, vw bson.ValueWriter, v reflect.Value) error {
		return vw.WriteInt64(enc(v))
	})
}

func stringEncoder(enc func(reflect.Value) string) bson.ValueEncoder {
	return bson.ValueEncoderFunc(func(_ bson.EncodeContext, vw bson.ValueWriter, v reflect.Value) error {
		return vw.WriteString(enc(v))
	})
}

func decoder(dec func(any) (any, error)) bson.ValueDecoder {
	return bson.ValueDecoderFunc(func(_ bson.DecodeContext, vr bson.ValueReader, v reflect.Value) error {
		if !v.CanSet() {
			return fmt.Errorf("codec: cannot set %s", v.Type())
		}

		raw, err := readValue(vr)
		if err != nil {
			return err
		}
		if raw == nil {
			v.Set(reflect.Zero(v.Type()))
			return nil
		}

		out, err := dec(raw)
		if err != nil {
			return fmt.Errorf("codec: %s: %w", v.Type(), err)
		}
		v.Set(reflect.ValueOf(out).Convert(v.Type()))
		return nil
	})
}

func readValue(vr bson.ValueReader) (any, error) {
	switch t := vr.Type(); t {
	case bson.TypeInt32:
		return vr.ReadInt32()
	case bson.TypeInt64:
		return vr.ReadInt64()
	case bson.TypeDouble:
		return vr.ReadDouble()
	case bson.TypeString:
		return vr.ReadString()
	case bson.TypeDateTime:
		ms, err := vr.ReadDateTime()
		return bson.DateTime(ms), err
	case bson.TypeNull:
		return nil, vr.ReadNull()
	case bson.TypeUndefined:
		return nil, vr.ReadUndefined()
	default:
		return nil, fmt.Errorf("%w: unsupported wire type %s", ErrInvalidArgument, t)
	}
}
