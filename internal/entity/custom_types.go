package entity

import (
	"database/sql/driver"
	"fmt"
	"time"
)

type CustomTime struct {
	time.Time
}

const DateTimeLayout = "2006-01-02 15:04:05"

func NewCustomTime(t time.Time) CustomTime {
	return CustomTime{Time: t.Truncate(time.Second)}
}

func ParseCustomTime(s string) (CustomTime, error) {
	t, err := time.ParseInLocation(DateTimeLayout, s, time.Local)
	if err != nil {
		return CustomTime{}, fmt.Errorf("invalid date %q, expected format %s", s, DateTimeLayout)
	}
	return CustomTime{Time: t}, nil
}

func (ct *CustomTime) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s, expected a quoted string", s)
	}
	t, err := ParseCustomTime(s[1 : len(s)-1]) // Remove quotes
	if err != nil {
		return err
	}
	*ct = t
	return nil
}

func (ct CustomTime) MarshalJSON() ([]byte, error) {
	return []byte(`"` + ct.Format(DateTimeLayout) + `"`), nil
}

func (ct CustomTime) Value() (driver.Value, error) {
	return ct.Time, nil
}

func (ct *CustomTime) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case time.Time:
		ct.Time = v
	case []byte:
		t, err := time.ParseInLocation(DateTimeLayout, string(v), time.Local)
		if err != nil {
			return err
		}
		ct.Time = t
	case string:
		t, err := time.ParseInLocation(DateTimeLayout, v, time.Local)
		if err != nil {
			return err
		}
		ct.Time = t
	default:
		return fmt.Errorf("cannot scan type %T into CustomTime", value)
	}
	return nil
}
