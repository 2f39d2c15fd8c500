package types

import (
	"time"

	"cloud.google.com/go/civil"
)

// ParseDate parses a YYYY-MM-DD civil date
func ParseDate(s string) (civil.Date, error) {
	return civil.ParseDate(s)
}

// Clock tells the current time. Services read time only through it.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
