package models

import (
	"errors"
	"path/filepath"
	"testing"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name      string
		query     *SearchQuery
		wantErr   bool
		wantLimit int
	}{
		{"empty query", &SearchQuery{Query: ""}, true, 0},
		{"valid query", &SearchQuery{Query: "hello", Limit: 5}, false, 5},
		{"sets default limit", &SearchQuery{Query: "x", Limit: 0}, false, 10},
		{"caps limit at 100", &SearchQuery{Query: "x", Limit: 200}, false, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidQuery) {
				t.Errorf("Validate() error = %v, want ErrInvalidQuery", err)
			}
			if !tt.wantErr && tt.query.Limit != tt.wantLimit {
				t.Errorf("Limit = %d, want %d", tt.query.Limit, tt.wantLimit)
			}
		})
	}
}

func TestLotID(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"https://www.tektorg.ru/procedures/1234567", "1234567"},
		{"https://www.tektorg.ru/procedures/1234567/", "1234567"},
		{"L1", "L1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := LotID(tt.url); got != tt.want {
			t.Errorf("LotID(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestLot_Dirs(t *testing.T) {
	lot := NewLot("https://example.com/procedures/42")
	dirs := lot.Dirs("/work")
	if dirs.Archive != filepath.Join("/work", "zip", "42") {
		t.Errorf("Archive = %q", dirs.Archive)
	}
	if dirs.Expanded != filepath.Join("/work", "unzipped", "42") {
		t.Errorf("Expanded = %q", dirs.Expanded)
	}
	if dirs.Text != filepath.Join("/work", "txt", "42") {
		t.Errorf("Text = %q", dirs.Text)
	}
	if len(dirs.All()) != 3 || dirs.All()[0] != dirs.Archive {
		t.Errorf("All() = %v", dirs.All())
	}
}

func TestQuery_Lots(t *testing.T) {
	q := &Query{URL: "Q", LotURLs: []string{"http://x/a/1", "http://x/a/2"}}
	lots := q.Lots()
	if len(lots) != 2 || lots[0].ID != "1" || lots[1].ID != "2" {
		t.Errorf("Lots() = %+v", lots)
	}
}

func TestConversionResult_Total(t *testing.T) {
	r := &ConversionResult{Converted: []string{"a"}, Ignored: []string{"b", "c"}, Problem: []string{"d"}}
	if r.Total() != 4 {
		t.Errorf("Total() = %d, want 4", r.Total())
	}
}
