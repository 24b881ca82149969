// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPubDateString(t *testing.T) {
	tests := []struct {
		name string
		date PubDate
		want string
	}{
		{"timestamp", DateFromTimestamp(time.Date(2023, 5, 17, 13, 0, 0, 0, time.UTC)), "2023-05-17"},
		{"year", DateFromYear(2019), "2019"},
		{"fallback", FallbackDate, "1970-01-01"},
		{"zero", PubDate{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.date.String())
		})
	}
}

func TestPubDateUnmarshalText(t *testing.T) {
	var d PubDate
	require.NoError(t, d.UnmarshalText([]byte("2021-03-04")))
	assert.Equal(t, "2021-03-04", d.String())
	assert.False(t, d.Fallback)

	require.NoError(t, d.UnmarshalText([]byte("1970-01-01")))
	assert.True(t, d.Fallback)

	require.NoError(t, d.UnmarshalText([]byte("2018")))
	assert.Equal(t, 2018, d.Year)
	assert.True(t, d.Timestamp.IsZero())

	require.NoError(t, d.UnmarshalText(nil))
	assert.True(t, d.IsZero())

	assert.Error(t, d.UnmarshalText([]byte("spring 2020")))
}

func TestHasRequiredFields(t *testing.T) {
	assert.True(t, PublicationStub{Title: "t", Abstract: "a"}.HasRequiredFields())
	assert.False(t, PublicationStub{Title: "t"}.HasRequiredFields())
	assert.False(t, PublicationStub{Abstract: "a"}.HasRequiredFields())
}
