package xpath

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func intPtr(i int) *int {
	return &i
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Path
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "slash", input: "/", want: nil},
		{name: "many slashes", input: "///", want: nil},
		{name: "single", input: "/a", want: Path{{Name: "a"}}},
		{name: "relative", input: "a/b", want: Path{{Name: "a"}, {Name: "b"}}},
		{name: "empty segments dropped", input: "/a//b/", want: Path{{Name: "a"}, {Name: "b"}}},
		{name: "index", input: "/a/list[3]", want: Path{{Name: "a"}, {Name: "list", Index: intPtr(3)}}},
		{name: "bare index", input: "[0]/id", want: Path{{Index: intPtr(0)}, {Name: "id"}}},
		{name: "non digit index", input: "/a[x]", wantErr: true},
		{name: "unclosed bracket", input: "/a[1", wantErr: true},
		{name: "unmatched close", input: "/a]", wantErr: true},
		{name: "empty index", input: "/a[]", wantErr: true},
		{name: "negative index", input: "/a[-1]", wantErr: true},
		{name: "double index", input: "/a[1][2]", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPath) {
					t.Fatalf("Parse(%q) error = %v, want ErrInvalidPath", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.input, err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.input, diff)
			}
		})
	}
}

func TestStringRoundTrip(t *testing.T) {
	inputs := []string{
		"", "/", "a", "/a/b", "a//b///c/", "/x[0]/y[12]", "[4]", "/a/b[0]/c",
	}
	for _, in := range inputs {
		once, err := Canonical(in)
		if err != nil {
			t.Fatalf("Canonical(%q): %v", in, err)
		}
		twice, err := Canonical(once)
		if err != nil {
			t.Fatalf("Canonical(%q): %v", once, err)
		}
		if once != twice {
			t.Errorf("not idempotent: %q → %q → %q", in, once, twice)
		}
	}
	if got := MustParse("a/b[2]").String(); got != "/a/b[2]" {
		t.Errorf("String() = %q", got)
	}
	if got := Root.String(); got != "/" {
		t.Errorf("root String() = %q", got)
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		base, rel string
		want      string
	}{
		{"/a/b", "", "/a/b"},
		{"a/b/", "", "/a/b"},
		{"/a/b", "c", "/a/b/c"},
		{"/a/b", "c[2]/d", "/a/b/c[2]/d"},
		{"/a/b", "/x/y", "/x/y"},
		{"/a/b", "..", "/a"},
		{"/a/b", "../c", "/a/c"},
		{"/a/b", "../../c", "/c"},
		{"/a", "../../../c", "/c"},
		{"/", "..", "/"},
		{"/a/b", "./c", "/a/b/c"},
		{"/a/b", ".", "/a/b"},
		{"", "x", "/x"},
	}
	for _, tt := range tests {
		got, err := Combine(tt.base, tt.rel)
		if err != nil {
			t.Fatalf("Combine(%q, %q): %v", tt.base, tt.rel, err)
		}
		if got != tt.want {
			t.Errorf("Combine(%q, %q) = %q, want %q", tt.base, tt.rel, got, tt.want)
		}
	}
}

func TestCombineClampsAtRoot(t *testing.T) {
	base := "/a/b/c"
	cur := base
	for i := 0; i < 6; i++ {
		next, err := Combine(cur, "..")
		if err != nil {
			t.Fatal(err)
		}
		cur = next
	}
	if cur != "/" {
		t.Errorf("got %q after repeated .., want /", cur)
	}
}

func TestCombineInvalid(t *testing.T) {
	if _, err := Combine("/a", "b[x"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("got %v, want ErrInvalidPath", err)
	}
	if _, err := Combine("/a[", "b"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("got %v, want ErrInvalidPath", err)
	}
}

func TestPathHelpers(t *testing.T) {
	p := MustParse("/a/b[1]/c")
	if got := p.Parent().String(); got != "/a/b[1]" {
		t.Errorf("Parent() = %q", got)
	}
	if !p.HasPrefix(MustParse("/a/b[1]")) {
		t.Error("expected prefix /a/b[1]")
	}
	if p.HasPrefix(MustParse("/a/b")) {
		t.Error("/a/b is not a segment prefix of /a/b[1]/c")
	}
	if !p.HasPrefix(Root) {
		t.Error("root is a prefix of everything")
	}
	var got []string
	for _, a := range p.Ancestors() {
		got = append(got, a.String())
	}
	want := []string{"/a/b[1]", "/a", "/"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Ancestors mismatch (-want +got):\n%s", diff)
	}
	q := p.Append(Elem("d", 0))
	if q.String() != "/a/b[1]/c/d[0]" || p.String() != "/a/b[1]/c" {
		t.Errorf("Append changed receiver or produced %q", q)
	}
	// appending to a parent must not clobber the original
	_ = p.Parent().Append(Field("z"))
	if p.String() != "/a/b[1]/c" {
		t.Errorf("Parent().Append clobbered receiver: %q", p)
	}
}
