package packet

import (
	"fmt"
	"time"

	"github.com/frcnet/robotcom/wire"
)

// TimeData holds an optional UTC datetime and an optional IANA time zone
// name. Update semantics replace only the present fields:
// a packet that carries only tag 0x10 leaves a previously observed
// datetime untouched, and vice versa.
type TimeData struct {
	When    time.Time
	HasWhen bool
	Zone    string
	HasZone bool
}

// UpdateTime replaces the datetime field.
func (t *TimeData) UpdateTime(when time.Time) {
	t.When = when
	t.HasWhen = true
}

// UpdateZone replaces the IANA zone name field.
func (t *TimeData) UpdateZone(zone string) {
	t.Zone = zone
	t.HasZone = true
}

// WriteTimeBody writes tag 0x0F's payload: µs, sec, min, hour, day,
// month-1, year-1900.
func WriteTimeBody(w *wire.Writer, when time.Time) error {
	u := when.UTC()
	if err := w.WriteU32(uint32(u.Nanosecond() / 1000)); err != nil {
		return err
	}
	fields := []int{u.Second(), u.Minute(), u.Hour(), u.Day(), int(u.Month()) - 1, u.Year() - 1900}
	for _, f := range fields {
		if err := w.WriteU8(uint8(f)); err != nil {
			return err
		}
	}
	return nil
}

// ReadTimeBody decodes tag 0x0F's payload into a UTC time.Time.
func ReadTimeBody(r *wire.Reader) (time.Time, error) {
	us, err := r.ReadU32()
	if err != nil {
		return time.Time{}, err
	}
	sec, err := r.ReadU8()
	if err != nil {
		return time.Time{}, err
	}
	min, err := r.ReadU8()
	if err != nil {
		return time.Time{}, err
	}
	hour, err := r.ReadU8()
	if err != nil {
		return time.Time{}, err
	}
	day, err := r.ReadU8()
	if err != nil {
		return time.Time{}, err
	}
	monthMinusOne, err := r.ReadU8()
	if err != nil {
		return time.Time{}, err
	}
	yearMinus1900, err := r.ReadU8()
	if err != nil {
		return time.Time{}, err
	}
	month := time.Month(int(monthMinusOne) + 1)
	if month < time.January || month > time.December || day < 1 || day > 31 || hour > 23 || min > 59 || sec > 59 {
		return time.Time{}, fmt.Errorf("%w: %02d-%02d %02d:%02d:%02d", ErrInvalidTimeData, month, day, hour, min, sec)
	}
	return time.Date(int(yearMinus1900)+1900, month, int(day), int(hour), int(min), int(sec), int(us)*1000, time.UTC), nil
}

// WriteTimezoneBody writes tag 0x10's payload: a UTF-8 IANA name.
func WriteTimezoneBody(w *wire.Writer, zone string) error {
	return w.WriteAll([]byte(zone))
}

// ReadTimezoneBody decodes tag 0x10's payload, which is the remainder of
// the bounded sub-reader rather than a length-prefixed string.
func ReadTimezoneBody(r *wire.Reader) (string, error) {
	name, err := r.ReadStr(r.Remaining())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidTimeZoneData, err)
	}
	return name, nil
}
