package domain

import (
	"slices"
	"testing"
	"time"
)

func TestPopularAuthorsTieKeepsFirstSeen(t *testing.T) {
	c := NewCollection()
	c.AddPage(
		[]Post{
			{ID: "1", AuthorID: "A"},
			{ID: "2", AuthorID: "B"},
			{ID: "3", AuthorID: "C"},
			{ID: "4", AuthorID: "A"},
			{ID: "5", AuthorID: "C"},
		},
		[]Author{
			{ID: "A", Username: "A"},
			{ID: "B", Username: "B"},
			{ID: "C", Username: "C"},
		},
		nil,
	)

	want := []string{"A", "C", "B"}
	if got := PopularAuthors(c); !slices.Equal(got, want) {
		t.Errorf("PopularAuthors() = %v, want %v", got, want)
	}
}

func TestPopularAuthorsSkipsUnresolved(t *testing.T) {
	want := []string{"alice", "bob", "carol"}
	if got := PopularAuthors(fixture()); !slices.Equal(got, want) {
		t.Errorf("PopularAuthors() = %v, want %v", got, want)
	}
}

func TestYearsAndMonthsFirstSeenOrder(t *testing.T) {
	c := fixture()

	wantYears := []int{2023, 2022, 2021}
	if got := Years(c); !slices.Equal(got, wantYears) {
		t.Errorf("Years() = %v, want %v", got, wantYears)
	}

	wantMonths := []string{"March", "May", "December", "January"}
	if got := Months(c); !slices.Equal(got, wantMonths) {
		t.Errorf("Months() = %v, want %v", got, wantMonths)
	}
}

func TestDeriveFacets(t *testing.T) {
	f := DeriveFacets(fixture(), 2)

	if f.Total != 5 {
		t.Errorf("Total = %d, want 5", f.Total)
	}
	if want := []string{"alice", "bob"}; !slices.Equal(f.PopularAuthors, want) {
		t.Errorf("PopularAuthors = %v, want %v", f.PopularAuthors, want)
	}
	if len(f.Years) != 3 || len(f.Months) != 4 {
		t.Errorf("got %d years and %d months, want 3 and 4", len(f.Years), len(f.Months))
	}
}

func TestDeriveFacetsEmpty(t *testing.T) {
	for name, c := range map[string]*Collection{"nil": nil, "empty": NewCollection()} {
		t.Run(name, func(t *testing.T) {
			f := DeriveFacets(c, DefaultPopularAuthors)
			if f.Total != 0 {
				t.Errorf("Total = %d, want 0", f.Total)
			}
			// Empty facets serialize as [] rather than null.
			if f.PopularAuthors == nil || f.Years == nil || f.Months == nil {
				t.Fatalf("facet lists must be non-nil: %+v", f)
			}
			if len(f.PopularAuthors)+len(f.Years)+len(f.Months) != 0 {
				t.Errorf("facets = %+v, want all empty", f)
			}
		})
	}
}

func TestGroupByMonthYear(t *testing.T) {
	posts := []Post{
		{ID: "1", CreatedAt: date(2022, time.May, 20)},
		{ID: "2", CreatedAt: date(2022, time.May, 1)},
		{ID: "3", CreatedAt: date(2021, time.May, 30)},
		{ID: "4", CreatedAt: date(2022, time.May, 2)},
	}

	sections := GroupByMonthYear(posts)

	labels := make([]string, 0, len(sections))
	for _, s := range sections {
		labels = append(labels, s.Label)
	}
	if want := []string{"May 2022", "May 2021", "May 2022"}; !slices.Equal(labels, want) {
		t.Fatalf("section labels = %v, want %v", labels, want)
	}
	if n := len(sections[0].Posts); n != 2 {
		t.Errorf("first section has %d posts, want 2", n)
	}
}

func TestResolveDropsUnknownAuthors(t *testing.T) {
	c := fixture()
	c.MediaByKey["m1"] = Media{MediaKey: "m1", Type: MediaPhoto, URL: "https://pbs.example/m1.jpg"}
	c.Posts[0].Attachments = &Attachments{MediaKeys: []string{"m1"}}

	entries := c.Resolve(c.Posts)

	if len(entries) != 4 {
		t.Fatalf("Resolve() returned %d entries, want 4", len(entries))
	}
	if want := "https://twitter.com/alice/status/5"; entries[0].URL != want {
		t.Errorf("URL = %q, want %q", entries[0].URL, want)
	}
	if entries[0].Media == nil || entries[0].Media.MediaKey != "m1" {
		t.Errorf("first entry media = %+v, want m1", entries[0].Media)
	}
	if entries[1].Media != nil {
		t.Errorf("second entry media = %+v, want nil", entries[1].Media)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		session *Session
		want    bool
	}{
		{"nil session", nil, true},
		{"no access token", &Session{ExpiresAt: now.Add(time.Hour)}, true},
		{"expires now", &Session{AccessToken: "t", ExpiresAt: now}, true},
		{"still valid", &Session{AccessToken: "t", ExpiresAt: now.Add(time.Second)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.session.Expired(now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
