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

// semanticAPIBase is the Semantic Scholar Graph API root. Declared as a var
// so tests can substitute an httptest server.
var semanticAPIBase = "https://api.semanticscholar.org/graph/v1"

const (
	semanticAuthorFields = "name,affiliations"
	semanticPaperFields  = "title,abstract,year,publicationDate,citationCount"

	// semanticPapersPage is the page size used when listing an author's
	// papers. The API cannot sort by date, so we fetch a page and sort locally.
	semanticPapersPage = 100
)

// SemanticScholar queries the Semantic Scholar Graph API.
type SemanticScholar struct {
	*client
	base string
}

// NewSemanticScholar returns a Semantic Scholar backend.
func NewSemanticScholar(cfg types.SourceConfig) *SemanticScholar {
	base := cfg.BaseURL
	if base == "" {
		base = semanticAPIBase
	}
	return &SemanticScholar{client: newClient(cfg), base: strings.TrimRight(base, "/")}
}

// Name returns the backend identifier.
func (s *SemanticScholar) Name() string { return "semantic_scholar" }

func (s *SemanticScholar) headers() map[string]string {
	if s.cfg.APIKey == "" {
		return nil
	}
	return map[string]string{"x-api-key": s.cfg.APIKey}
}

// SearchSubject queries the author search endpoint.
func (s *SemanticScholar) SearchSubject(ctx context.Context, route egress.Route, name string) ([]types.SubjectRecord, error) {
	params := url.Values{
		"query":  {name},
		"fields": {semanticAuthorFields},
		"limit":  {"10"},
	}
	var sr semanticAuthorSearch
	ok, err := s.getJSON(ctx, route, s.base+"/author/search?"+params.Encode(), s.headers(), &sr)
	if err != nil || !ok {
		return nil, err
	}

	var records []types.SubjectRecord
	for _, a := range sr.Data {
		rec := types.SubjectRecord{ID: a.AuthorID, Name: a.Name}
		if len(a.Affiliations) > 0 {
			rec.Affiliation = a.Affiliations[0]
		}
		records = append(records, rec)
	}
	return records, nil
}

// FillSubject lists the author's papers, orders them by sortBy, and keeps
// the first limit.
func (s *SemanticScholar) FillSubject(ctx context.Context, route egress.Route, rec types.SubjectRecord, sortBy types.SortKey, limit int) (*types.SubjectRecord, error) {
	if rec.ID == "" {
		return nil, fmt.Errorf("subject %q has no author ID", rec.Name)
	}
	params := url.Values{
		"fields": {semanticPaperFields},
		"limit":  {fmt.Sprintf("%d", semanticPapersPage)},
	}
	reqURL := fmt.Sprintf("%s/author/%s/papers?%s", s.base, url.PathEscape(rec.ID), params.Encode())

	var pr semanticPaperList
	ok, err := s.getJSON(ctx, route, reqURL, s.headers(), &pr)
	if err != nil || !ok {
		return nil, err
	}

	papers := pr.Data
	if sortBy == types.SortByCitations {
		sort.SliceStable(papers, func(i, j int) bool {
			return papers[i].CitationCount > papers[j].CitationCount
		})
	}
	stubs := make([]types.PublicationStub, 0, len(papers))
	for _, p := range papers {
		stubs = append(stubs, p.stub())
	}
	if sortBy == types.SortByCitations {
		stubs = truncate(stubs, limit)
	} else {
		stubs = sortStubs(stubs, limit)
	}

	filled := rec
	filled.Publications = stubs
	return &filled, nil
}

// FillPublication fetches the paper details endpoint.
func (s *SemanticScholar) FillPublication(ctx context.Context, route egress.Route, stub types.PublicationStub) (*types.PublicationBib, error) {
	if stub.ID == "" {
		return nil, fmt.Errorf("publication %q has no paper ID", stub.Title)
	}
	params := url.Values{"fields": {semanticPaperFields}}
	reqURL := fmt.Sprintf("%s/paper/%s?%s", s.base, url.PathEscape(stub.ID), params.Encode())

	var p semanticPaper
	ok, err := s.getJSON(ctx, route, reqURL, s.headers(), &p)
	if err != nil || !ok {
		return nil, err
	}
	st := p.stub()
	return &types.PublicationBib{
		Title:     st.Title,
		Abstract:  st.Abstract,
		Year:      st.Year,
		Timestamp: st.Timestamp,
	}, nil
}

// Semantic Scholar API JSON structures.
type semanticAuthorSearch struct {
	Total int              `json:"total"`
	Data  []semanticAuthor `json:"data"`
}

type semanticAuthor struct {
	AuthorID     string   `json:"authorId"`
	Name         string   `json:"name"`
	Affiliations []string `json:"affiliations"`
}

type semanticPaperList struct {
	Data []semanticPaper `json:"data"`
}

type semanticPaper struct {
	PaperID         string `json:"paperId"`
	Title           string `json:"title"`
	Abstract        string `json:"abstract"`
	Year            int    `json:"year"`
	PublicationDate string `json:"publicationDate"`
	CitationCount   int    `json:"citationCount"`
}

func (p semanticPaper) stub() types.PublicationStub {
	st := types.PublicationStub{
		ID:       p.PaperID,
		Title:    strings.TrimSpace(p.Title),
		Abstract: strings.TrimSpace(p.Abstract),
		Year:     p.Year,
	}
	if p.PublicationDate != "" {
		if t, err := time.Parse("2006-01-02", p.PublicationDate); err == nil {
			st.Timestamp = &t
		}
	}
	return st
}
