package types

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	require.NoError(t, err)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.February, Day: 29}, d)

	_, err = ParseDate("2023-02-29")
	assert.Error(t, err)
}

func TestSystemClock(t *testing.T) {
	now := SystemClock{}.Now()
	assert.Equal(t, time.UTC, now.Location())
	assert.WithinDuration(t, time.Now(), now, time.Second)
}
