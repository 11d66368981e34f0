package validatex

import (
	"errors"
	"testing"

	"github.com/Abraxas-365/visionocr/errx"
)

type request struct {
	Name    string   `json:"name" validatex:"required,max=8"`
	Mode    string   `json:"mode" validatex:"oneof=fast slow"`
	Retries int      `json:"retries" validatex:"min=1,max=5"`
	Paths   []string `json:"paths" validatex:"required,location"`
	Nested  inner    `json:"nested"`
	ignored string
}

type inner struct {
	ID string `json:"id" validatex:"uuid"`
}

type checked struct {
	A int `json:"a" validatex:"required"`
	B int `json:"b"`
}

func (c checked) Validate() error {
	if c.B > c.A {
		return errors.New("b exceeds a")
	}
	return nil
}

func TestValidate(t *testing.T) {
	valid := request{Name: "job", Mode: "fast", Retries: 2, Paths: []string{"a.png", "s3://b/k.png"}}

	tests := []struct {
		name    string
		mutate  func(r *request)
		invalid []string
	}{
		{"valid", func(r *request) {}, nil},
		{"optional fields may be empty", func(r *request) { r.Mode = ""; r.Retries = 0 }, nil},
		{"missing name", func(r *request) { r.Name = "" }, []string{"name"}},
		{"long name", func(r *request) { r.Name = "much-too-long" }, []string{"name"}},
		{"bad mode and retries", func(r *request) { r.Mode = "warp"; r.Retries = 9 }, []string{"mode", "retries"}},
		{"empty path", func(r *request) { r.Paths = []string{"a.png", " "} }, []string{"paths"}},
		{"nested uuid", func(r *request) { r.Nested.ID = "nope" }, []string{"nested.id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			err := Validate(&r)
			if len(tt.invalid) == 0 {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			e, ok := errx.As(err)
			if !ok || e.Code != ErrInvalid {
				t.Fatalf("expected INVALID, got %v", err)
			}
			if len(e.Details) != len(tt.invalid) {
				t.Fatalf("details %v, want fields %v", e.Details, tt.invalid)
			}
			for _, f := range tt.invalid {
				if _, ok := e.Details[f]; !ok {
					t.Fatalf("field %s not reported in %v", f, e.Details)
				}
			}
		})
	}
}

func TestValidatableRunsAfterTags(t *testing.T) {
	if err := Validate(checked{A: 2, B: 1}); err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if err := Validate(checked{A: 1, B: 2}); err == nil || err.Error() != "b exceeds a" {
		t.Fatalf("expected Validate hook error, got %v", err)
	}
	if err := Validate(checked{B: 2}); !errx.IsCode(err, ErrInvalid) {
		t.Fatalf("tag rules should fail first, got %v", err)
	}
}

func TestValidateRejectsNonStructs(t *testing.T) {
	if err := Validate(42); !errx.IsCode(err, ErrInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}
}

func TestCustomRule(t *testing.T) {
	RegisterValidationFunc("even", func(v any, _ string) bool {
		n, ok := v.(int)
		return ok && n%2 == 0
	})
	type evens struct {
		N int `json:"n" validatex:"even"`
	}
	if err := Validate(evens{N: 4}); err != nil {
		t.Fatal(err)
	}
	if err := Validate(evens{N: 3}); !errx.IsCode(err, ErrInvalid) {
		t.Fatalf("expected INVALID, got %v", err)
	}

	type unknown struct {
		N int `json:"n" validatex:"prime"`
	}
	if err := Validate(unknown{N: 3}); !errx.IsCode(err, ErrUnknownRule) {
		t.Fatalf("expected UNKNOWN_RULE, got %v", err)
	}
}
