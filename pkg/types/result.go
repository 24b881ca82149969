// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"sort"
)

// OutputRow is the atomic exportable unit: one publication of one subject.
type OutputRow struct {
	Subject  string  `json:"subject" yaml:"subject"`
	Abstract string  `json:"abstract" yaml:"abstract"`
	Title    string  `json:"title" yaml:"title"`
	Date     PubDate `json:"date" yaml:"date"`

	// Position is the publication's index within the subject's filled record.
	// It keeps the source order recoverable after rows from concurrent groups
	// are merged.
	Position int `json:"-" yaml:"-"`
}

// RunResult aggregates one processing pass. Failed subjects and failed
// publication titles are kept as sorted sets.
type RunResult struct {
	Rows               []OutputRow `json:"rows" yaml:"rows"`
	FailedSubjects     []string    `json:"failed_subjects" yaml:"failed_subjects"`
	FailedPublications []string    `json:"failed_publications" yaml:"failed_publications"`
}

// AddRows appends rows in order.
func (r *RunResult) AddRows(rows ...OutputRow) {
	r.Rows = append(r.Rows, rows...)
}

// AddFailedSubject records a subject that could not be processed.
func (r *RunResult) AddFailedSubject(name string) {
	r.FailedSubjects = insertSorted(r.FailedSubjects, name)
}

// AddFailedPublication records a publication title whose required fields
// could not be resolved.
func (r *RunResult) AddFailedPublication(title string) {
	r.FailedPublications = insertSorted(r.FailedPublications, title)
}

// Merge appends other's rows after r's and unions the failure sets.
func (r *RunResult) Merge(other RunResult) {
	r.Rows = append(r.Rows, other.Rows...)
	for _, s := range other.FailedSubjects {
		r.AddFailedSubject(s)
	}
	for _, t := range other.FailedPublications {
		r.AddFailedPublication(t)
	}
}

// HasFailures reports whether any subject or publication failed.
func (r RunResult) HasFailures() bool {
	return len(r.FailedSubjects) > 0 || len(r.FailedPublications) > 0
}

// SortRows orders rows by subject, then by publication position. The sort is
// stable so rows that tie keep their merge order.
func (r *RunResult) SortRows() {
	sort.SliceStable(r.Rows, func(i, j int) bool {
		if r.Rows[i].Subject != r.Rows[j].Subject {
			return r.Rows[i].Subject < r.Rows[j].Subject
		}
		return r.Rows[i].Position < r.Rows[j].Position
	})
}

// insertSorted adds v to the sorted set s if absent.
func insertSorted(s []string, v string) []string {
	i := sort.SearchStrings(s, v)
	if i < len(s) && s[i] == v {
		return s
	}
	s = append(s, "")
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}
