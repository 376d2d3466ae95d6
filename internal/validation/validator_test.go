package validation

import (
	"strings"
	"testing"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	type form struct {
		Name  string `validate:"required,min=3,max=10"`
		Email string `validate:"required,email"`
		Token string `validate:"len=8"`
	}

	v := NewValidator()

	valid := form{Name: "Acme", Email: "ops@acme.example", Token: "abcd1234"}
	if err := v.Validate(valid); err != nil {
		t.Fatalf("valid struct rejected: %v", err)
	}

	tests := []struct {
		name string
		in   form
		want string
	}{
		{"missing required", form{Email: "a@b.c", Token: "abcd1234"}, "required"},
		{"too short", form{Name: "ab", Email: "a@b.c", Token: "abcd1234"}, "minimum length is 3"},
		{"too long", form{Name: "abcdefghijk", Email: "a@b.c", Token: "abcd1234"}, "maximum length is 10"},
		{"bad email", form{Name: "Acme", Email: "nope", Token: "abcd1234"}, "email"},
		{"wrong length", form{Name: "Acme", Email: "a@b.c", Token: "abc"}, "length must be 8"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := v.Validate(tt.in)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestValidate_NonStruct(t *testing.T) {
	t.Parallel()

	if err := NewValidator().Validate("not a struct"); err == nil {
		t.Fatal("expected error for non-struct input")
	}
}

func TestValidate_PointerToStruct(t *testing.T) {
	t.Parallel()

	type form struct {
		Name string `validate:"required"`
	}

	if err := NewValidator().Validate(&form{Name: "x"}); err != nil {
		t.Fatalf("pointer to valid struct rejected: %v", err)
	}
}
