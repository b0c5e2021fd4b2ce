// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package datatypes

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
)

// Timestamp is a creation time as sent by the backend.
//
// # Description
//
// Decodes RFC 3339 date-times and bare YYYY-MM-DD dates. Encodes as an
// RFC 3339 date-time with millisecond precision.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t}
}

// TimestampPtr wraps t and returns a pointer, for optional fields.
func TimestampPtr(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

// ParseTimestamp parses a date-time or a date.
func ParseTimestamp(s string) (Timestamp, error) {
	if dt, err := strfmt.ParseDateTime(s); err == nil {
		return Timestamp{Time: time.Time(dt)}, nil
	}
	var d strfmt.Date
	if err := d.UnmarshalText([]byte(s)); err == nil {
		return Timestamp{Time: time.Time(d)}, nil
	}
	return Timestamp{}, fmt.Errorf("invalid timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (ts Timestamp) MarshalJSON() ([]byte, error) {
	return strfmt.DateTime(ts.Time).MarshalJSON()
}

// UnmarshalJSON implements json.Unmarshaler. A JSON null leaves the zero value.
func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	parsed, err := ParseTimestamp(s)
	if err != nil {
		return err
	}
	*ts = parsed
	return nil
}
