// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package source

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/pdiddy/faculty-papers/internal/egress"
	"github.com/pdiddy/faculty-papers/pkg/types"
)

// openAlexAPIBase is the OpenAlex API root. Declared as a var so tests can
// substitute an httptest server.
var openAlexAPIBase = "https://api.openalex.org"

// OpenAlex queries the OpenAlex authors and works endpoints.
type OpenAlex struct {
	*client
	base string
}

// NewOpenAlex returns an OpenAlex backend.
func NewOpenAlex(cfg types.SourceConfig) *OpenAlex {
	base := cfg.BaseURL
	if base == "" {
		base = openAlexAPIBase
	}
	return &OpenAlex{client: newClient(cfg), base: strings.TrimRight(base, "/")}
}

// Name returns the backend identifier.
func (o *OpenAlex) Name() string { return "openalex" }

func (o *OpenAlex) params(v url.Values) string {
	// Email is sent as mailto parameter for polite pool access.
	if o.cfg.Email != "" {
		v.Set("mailto", o.cfg.Email)
	}
	if o.cfg.APIKey != "" {
		v.Set("api_key", o.cfg.APIKey)
	}
	return v.Encode()
}

// SearchSubject queries the authors search endpoint.
func (o *OpenAlex) SearchSubject(ctx context.Context, route egress.Route, name string) ([]types.SubjectRecord, error) {
	reqURL := o.base + "/authors?" + o.params(url.Values{
		"search":   {name},
		"per_page": {"10"},
	})
	var ar openAlexAuthorList
	ok, err := o.getJSON(ctx, route, reqURL, nil, &ar)
	if err != nil || !ok {
		return nil, err
	}

	var records []types.SubjectRecord
	for _, a := range ar.Results {
		rec := types.SubjectRecord{ID: shortID(a.ID), Name: a.DisplayName}
		if len(a.LastKnownInstitutions) > 0 {
			rec.Affiliation = a.LastKnownInstitutions[0].DisplayName
		}
		records = append(records, rec)
	}
	return records, nil
}

// FillSubject lists the author's works sorted server-side, one page of limit.
func (o *OpenAlex) FillSubject(ctx context.Context, route egress.Route, rec types.SubjectRecord, sortBy types.SortKey, limit int) (*types.SubjectRecord, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("subject %q has no author ID", rec.Name)
	}
	order := "publication_date:desc"
	if sortBy == types.SortByCitations {
		order = "cited_by_count:desc"
	}
	perPage := limit
	if perPage <= 0 || perPage > 200 {
		perPage = 200
	}
	reqURL := o.base + "/works?" + o.params(url.Values{
		"filter":   {"author.id:" + rec.ID},
		"sort":     {order},
		"per_page": {fmt.Sprintf("%d", perPage)},
	})

	var wr openAlexWorkList
	ok, err := o.getJSON(ctx, route, reqURL, nil, &wr)
	if err != nil || !ok {
		return nil, err
	}

	stubs := make([]types.PublicationStub, 0, len(wr.Results))
	for _, w := range wr.Results {
		stubs = append(stubs, w.stub())
	}

	filled := rec
	filled.Publications = truncate(stubs, limit)
	return &filled, nil
}

// FillPublication fetches a single work.
func (o *OpenAlex) FillPublication(ctx context.Context, route egress.Route, stub types.PublicationStub) (*types.PublicationBib, error) {
	if stub.ID == "" {
		return nil, fmt.Errorf("publication %q has no work ID", stub.Title)
	}
	reqURL := fmt.Sprintf("%s/works/%s?%s", o.base, url.PathEscape(stub.ID), o.params(url.Values{}))

	var w openAlexWork
	ok, err := o.getJSON(ctx, route, reqURL, nil, &w)
	if err != nil || !ok {
		return nil, err
	}
	st := w.stub()
	return &types.PublicationBib{
		Title:     st.Title,
		Abstract:  st.Abstract,
		Year:      st.Year,
		Timestamp: st.Timestamp,
	}, nil
}

// shortID strips the https://openalex.org/ prefix from an entity ID.
func shortID(id string) string {
	return strings.TrimPrefix(id, "https://openalex.org/")
}

// reconstructAbstract converts OpenAlex's abstract_inverted_index back to
// plain text. The inverted index maps each word to a list of positions
// where that word appears.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}
	var pairs []posWord
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}

	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	words := make([]string, len(pairs))
	for i, p := range pairs {
		words[i] = p.word
	}
	return strings.Join(words, " ")
}

// OpenAlex API JSON structures.
type openAlexAuthorList struct {
	Results []openAlexAuthor `json:"results"`
}

type openAlexAuthor struct {
	ID                    string                `json:"id"`
	DisplayName           string                `json:"display_name"`
	LastKnownInstitutions []openAlexInstitution `json:"last_known_institutions"`
}

type openAlexInstitution struct {
	DisplayName string `json:"display_name"`
}

type openAlexWorkList struct {
	Results []openAlexWork `json:"results"`
}

type openAlexWork struct {
	ID                    string           `json:"id"`
	Title                 string           `json:"title"`
	PublicationDate       string           `json:"publication_date"`
	PublicationYear       int              `json:"publication_year"`
	AbstractInvertedIndex map[string][]int `json:"abstract_inverted_index"`
}

func (w openAlexWork) stub() types.PublicationStub {
	st := types.PublicationStub{
		ID:       shortID(w.ID),
		Title:    strings.TrimSpace(w.Title),
		Abstract: reconstructAbstract(w.AbstractInvertedIndex),
		Year:     w.PublicationYear,
	}
	if w.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", w.PublicationDate); err == nil {
			st.Timestamp = &t
		}
	}
	return st
}
