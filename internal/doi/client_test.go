package doi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"

	"github.com/matsen/shelf/internal/failure"
)

const workJSON = `{
	"status": "ok",
	"message": {
		"DOI": "10.1234/abc",
		"type": "journal-article",
		"title": ["Ocean Currents"],
		"container-title": ["Journal of Seas"],
		"volume": "12",
		"issue": "3",
		"page": "100-110",
		"publisher": "Wet Press",
		"abstract": "<jats:p>Currents  move\n water.</jats:p>",
		"ISSN": ["1234-5678"],
		"URL": "https://doi.org/10.1234/abc",
		"subject": ["Oceanography"],
		"author": [
			{"given": "Jane", "family": "Doe"},
			{"name": "Ocean Consortium"}
		],
		"published": {"date-parts": [[2020, 5]]},
		"issued": {"date-parts": [[2019]]}
	}
}`

func TestClient_Lookup(t *testing.T) {
	tests := []struct {
		name       string
		doi        string
		serverResp func(w http.ResponseWriter, r *http.Request)
		check      func(t *testing.T, err error)
	}{
		{
			name: "found",
			doi:  "https://doi.org/10.1234/abc",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/works/10.1234/abc" {
					t.Errorf("path = %s", r.URL.Path)
				}
				if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "mailto:me@example.org") {
					t.Errorf("User-Agent = %q", ua)
				}
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(workJSON))
			},
			check: func(t *testing.T, err error) {
				if err != nil {
					t.Fatalf("Lookup() error = %v", err)
				}
			},
		},
		{
			name: "not found",
			doi:  "10.1234/none",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				http.NotFound(w, r)
			},
			check: func(t *testing.T, err error) {
				if !IsNotFound(err) || !errors.Is(err, failure.ErrNotFound) {
					t.Errorf("error = %v, want not found", err)
				}
			},
		},
		{
			name: "rate limited",
			doi:  "10.1234/abc",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			check: func(t *testing.T, err error) {
				if !IsRateLimited(err) {
					t.Errorf("error = %v, want rate limited", err)
				}
			},
		},
		{
			name: "server error",
			doi:  "10.1234/abc",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
			},
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
					t.Errorf("error = %v, want APIError 502", err)
				}
			},
		},
		{
			name: "malformed body",
			doi:  "10.1234/abc",
			serverResp: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("{not json"))
			},
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrInvalidResponse) || failure.KindOf(err) != failure.KindDecode {
					t.Errorf("error = %v, want invalid response", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(tt.serverResp))
			defer server.Close()

			c := NewClient(WithBaseURL(server.URL), WithMailto("me@example.org"))
			_, err := c.Lookup(context.Background(), tt.doi)
			tt.check(t, err)
		})
	}
}

func TestClient_LookupMapsWork(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(workJSON))
	}))
	defer server.Close()

	doc, err := NewClient(WithBaseURL(server.URL)).Lookup(context.Background(), "doi:10.1234/abc")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}

	checks := []struct {
		field, got, want string
	}{
		{"type", doc.Type, "article"},
		{"title", doc.Title, "Ocean Currents"},
		{"publication", doc.Publication, "Journal of Seas"},
		{"pages", doc.Pages, "100-110"},
		{"issn", doc.ISSN, "1234-5678"},
		{"abstract", doc.Abstract, "Currents move water."},
		{"doi", doc.DOI, "10.1234/abc"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
	if doc.Year != 2020 || doc.Month != 5 || doc.Day != 0 {
		t.Errorf("date = %d-%d-%d, want published date", doc.Year, doc.Month, doc.Day)
	}
	if !reflect.DeepEqual(doc.Authors(), []string{"Doe, Jane", "Ocean Consortium, "}) {
		t.Errorf("Authors() = %q", doc.Authors())
	}
	if !reflect.DeepEqual(doc.Keywords, []string{"Oceanography"}) {
		t.Errorf("Keywords = %v", doc.Keywords)
	}
}

func TestClient_LookupRejectsInvalidDOI(t *testing.T) {
	c := NewClient(WithBaseURL("http://127.0.0.1:0"))
	for _, in := range []string{"", "not a doi", "11.1/x", "10.1234"} {
		if _, err := c.Lookup(context.Background(), in); !errors.Is(err, ErrInvalidDOI) {
			t.Errorf("Lookup(%q) error = %v, want ErrInvalidDOI", in, err)
		}
	}
}

func TestClient_LookupCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(WithBaseURL("http://127.0.0.1:0"))
	_, err := c.Lookup(ctx, "10.1234/abc")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Lookup() error = %v, want context.Canceled", err)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{" 10.1/x ", "10.1/x"},
		{"https://doi.org/10.1/x", "10.1/x"},
		{"http://dx.doi.org/10.1/x", "10.1/x"},
		{"DOI:10.1/x", "10.1/x"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
