package sqlstore

import (
	"testing"

	"github.com/Abraxas-365/visionocr/storex"
)

func TestListQuery(t *testing.T) {
	tests := []struct {
		name  string
		opts  storex.PaginationOptions
		query string
		args  []any
	}{
		{
			name:  "unfiltered",
			opts:  storex.PaginationOptions{Page: 2, PageSize: 10},
			query: "SELECT * FROM ocr_runs ORDER BY started_at DESC LIMIT $1 OFFSET $2",
			args:  []any{10, 10},
		},
		{
			name:  "by backend",
			opts:  storex.PaginationOptions{Page: 1, PageSize: 5, Backend: "local"},
			query: "SELECT * FROM ocr_runs WHERE backend = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3",
			args:  []any{"local", 5, 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := listQuery(tt.opts)
			if q != tt.query {
				t.Fatalf("query = %q, want %q", q, tt.query)
			}
			if len(args) != len(tt.args) {
				t.Fatalf("args = %v, want %v", args, tt.args)
			}
			for i := range args {
				if args[i] != tt.args[i] {
					t.Fatalf("args = %v, want %v", args, tt.args)
				}
			}
		})
	}
}
