package mongostore

import (
	"testing"

	"github.com/Abraxas-365/visionocr/storex"
)

func TestListFilter(t *testing.T) {
	if f := listFilter(storex.PaginationOptions{}); len(f) != 0 {
		t.Fatalf("expected empty filter, got %v", f)
	}
	f := listFilter(storex.PaginationOptions{Backend: "local"})
	if f["backend"] != "local" {
		t.Fatalf("expected backend filter, got %v", f)
	}
}
