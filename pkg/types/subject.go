// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the faculty-papers harvest.
package types

import (
	"strconv"
	"time"
)

// SubjectRecord is a resolved identity returned by a record source.
// Publications are ordered by the source's recency criterion and bounded by
// the configured per-subject publication limit once filled.
type SubjectRecord struct {
	// ID is the source-specific author identifier.
	ID string `json:"id" yaml:"id"`

	// Name is the display name used in output rows.
	Name string `json:"name" yaml:"name"`

	// Affiliation is the institution reported by the source, if any.
	Affiliation string `json:"affiliation,omitempty" yaml:"affiliation,omitempty"`

	// Publications holds the subject's publication stubs in source order.
	Publications []PublicationStub `json:"publications,omitempty" yaml:"publications,omitempty"`
}

// PublicationStub is a partially known publication reference. It carries
// whatever bibliographic fields the source already returned.
type PublicationStub struct {
	// ID is the source-specific publication identifier used for enrichment.
	ID string `json:"id" yaml:"id"`

	Title    string `json:"title,omitempty" yaml:"title,omitempty"`
	Abstract string `json:"abstract,omitempty" yaml:"abstract,omitempty"`

	// Year is the coarse publication year, zero when unknown.
	Year int `json:"year,omitempty" yaml:"year,omitempty"`

	// Timestamp is the precise publication date, nil when unknown.
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// HasRequiredFields reports whether the stub already carries a title and an
// abstract, so no enrichment call is needed.
func (p PublicationStub) HasRequiredFields() bool {
	return p.Title != "" && p.Abstract != ""
}

// PublicationBib holds the fields needed for export.
type PublicationBib struct {
	Title    string `json:"title" yaml:"title"`
	Abstract string `json:"abstract" yaml:"abstract"`

	// Year and Timestamp are the raw date fields reported by the source.
	Year      int        `json:"year,omitempty" yaml:"year,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`

	// Date is the resolved export date.
	Date PubDate `json:"date" yaml:"date"`
}

// FallbackDate is the date exported when a publication carries neither a
// timestamp nor a year.
var FallbackDate = PubDate{
	Timestamp: time.Unix(0, 0).UTC(),
	Fallback:  true,
}

// PubDate is a publication date with either day or year precision.
type PubDate struct {
	Timestamp time.Time `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	Year      int       `json:"year,omitempty" yaml:"year,omitempty"`

	// Fallback marks a date that came from FallbackDate.
	Fallback bool `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// DateFromTimestamp returns a day-precision date.
func DateFromTimestamp(t time.Time) PubDate {
	return PubDate{Timestamp: t.UTC()}
}

// DateFromYear returns a year-precision date.
func DateFromYear(year int) PubDate {
	return PubDate{Year: year}
}

// IsZero reports whether no date information is present.
func (d PubDate) IsZero() bool {
	return d.Timestamp.IsZero() && d.Year == 0
}

// String renders the date as YYYY-MM-DD for timestamps and YYYY for years.
func (d PubDate) String() string {
	switch {
	case !d.Timestamp.IsZero():
		return d.Timestamp.Format("2006-01-02")
	case d.Year != 0:
		return strconv.Itoa(d.Year)
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler so exports carry the
// rendered form.
func (d PubDate) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText accepts the forms produced by MarshalText.
func (d *PubDate) UnmarshalText(b []byte) error {
	s := string(b)
	if s == "" {
		*d = PubDate{}
		return nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		*d = DateFromTimestamp(t)
		d.Fallback = d.Timestamp.Equal(FallbackDate.Timestamp)
		return nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*d = DateFromYear(year)
	return nil
}

// SortKey selects the recency criterion passed to the record source when
// filling a subject's publications.
type SortKey string

const (
	SortByYear      SortKey = "year"
	SortByCitations SortKey = "citations"
)
