package rpctypes

import (
	"encoding/json"
	"time"
)

// Time is a wrapper around time.Time. Serialized as seconds since the Unix epoch.
type Time struct {
	time.Time
}

var (
	_ json.Marshaler   = (*Time)(nil)
	_ json.Unmarshaler = (*Time)(nil)
)

// MarshalJSON converts the time into a Unix timestamp.
func (t Time) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Unix())
}

// UnmarshalJSON sets the time from a Unix timestamp.
func (t *Time) UnmarshalJSON(b []byte) error {
	var sec int64
	err := json.Unmarshal(b, &sec)
	if err != nil {
		return err
	}
	t.Time = time.Unix(sec, 0).UTC()
	return nil
}
