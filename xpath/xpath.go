package xpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidPath is returned for path strings with malformed segments.
var ErrInvalidPath = errors.New("invalid path")

// Segment is a single path step: a property name with an optional array
// index. An empty Name with a non-nil Index addresses an element of the
// current container directly.
type Segment struct {
	Name  string
	Index *int
}

// Field returns a property segment.
func Field(name string) Segment {
	return Segment{Name: name}
}

// Elem returns a property segment followed by an array index. An empty name
// gives a bare index segment.
func Elem(name string, i int) Segment {
	return Segment{Name: name, Index: &i}
}

// HasIndex reports whether the segment carries an array index.
func (s Segment) HasIndex() bool {
	return s.Index != nil
}

func (s Segment) Equal(o Segment) bool {
	if s.Name != o.Name {
		return false
	}
	if (s.Index == nil) != (o.Index == nil) {
		return false
	}
	return s.Index == nil || *s.Index == *o.Index
}

// String returns the canonical text of the segment, "name" or "name[i]".
func (s Segment) String() string {
	if s.Index == nil {
		return s.Name
	}
	return s.Name + "[" + strconv.Itoa(*s.Index) + "]"
}

// Path is an ordered list of segments. The nil (or empty) Path is the root.
type Path []Segment

// Root is the empty path.
var Root = Path(nil)

// Parse parses a path string. Both absolute and relative strings parse to the
// same segment list; the distinction only matters to Combine.
//
// Examples:
//   - "" → root
//   - "/" → root
//   - "/a/b[3]" → [a, b[3]]
//   - "a//b/" → [a, b]
//   - "/a[x]" → ErrInvalidPath
func Parse(s string) (Path, error) {
	if s == "" || s == "/" {
		return nil, nil
	}
	parts := strings.Split(s, "/")
	res := make(Path, 0, len(parts))
	for _, part := range parts {
		if part == "" {
			continue
		}
		seg, err := parseSegment(part)
		if err != nil {
			return nil, fmt.Errorf("%w %q: %w", ErrInvalidPath, s, err)
		}
		res = append(res, seg)
	}
	if len(res) == 0 {
		return nil, nil
	}
	return res, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func parseSegment(part string) (Segment, error) {
	open := strings.IndexByte(part, '[')
	if open == -1 {
		if strings.IndexByte(part, ']') != -1 {
			return Segment{}, fmt.Errorf("unmatched ']' in segment %q", part)
		}
		return Segment{Name: part}, nil
	}
	if part[len(part)-1] != ']' {
		return Segment{}, fmt.Errorf("unclosed '[' in segment %q", part)
	}
	name := part[:open]
	digits := part[open+1 : len(part)-1]
	if strings.ContainsAny(name, "[]") {
		return Segment{}, fmt.Errorf("bracket in name of segment %q", part)
	}
	if digits == "" {
		return Segment{}, fmt.Errorf("empty index in segment %q", part)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return Segment{}, fmt.Errorf("non-numeric index %q in segment %q", digits, part)
		}
	}
	index, err := strconv.Atoi(digits)
	if err != nil {
		return Segment{}, fmt.Errorf("index %q in segment %q: %w", digits, part, err)
	}
	return Segment{Name: name, Index: &index}, nil
}

// String returns the canonical absolute form of the path: segments joined by
// '/' with a leading '/'. The root serializes to "/".
func (p Path) String() string {
	if len(p) == 0 {
		return "/"
	}
	var b strings.Builder
	for _, seg := range p {
		b.WriteByte('/')
		b.WriteString(seg.String())
	}
	return b.String()
}

func (p Path) IsRoot() bool {
	return len(p) == 0
}

// Parent returns the path without its last segment. The parent of the root
// is the root.
func (p Path) Parent() Path {
	if len(p) <= 1 {
		return nil
	}
	return p[:len(p)-1:len(p)-1]
}

// Last returns the last segment and false for the root.
func (p Path) Last() (Segment, bool) {
	if len(p) == 0 {
		return Segment{}, false
	}
	return p[len(p)-1], true
}

// Append returns a new path with segs added. p is not modified.
func (p Path) Append(segs ...Segment) Path {
	res := make(Path, 0, len(p)+len(segs))
	res = append(res, p...)
	return append(res, segs...)
}

func (p Path) Equal(o Path) bool {
	if len(p) != len(o) {
		return false
	}
	for i := range p {
		if !p[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// HasPrefix reports whether every segment of prefix matches the leading
// segments of p. Every path has the root as a prefix.
func (p Path) HasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	return p[:len(prefix)].Equal(prefix)
}

// Ancestors returns the successive truncations of p, nearest first, ending
// with the root. The root has no ancestors.
func (p Path) Ancestors() []Path {
	if len(p) == 0 {
		return nil
	}
	res := make([]Path, 0, len(p))
	for n := len(p) - 1; n >= 0; n-- {
		res = append(res, p[:n:n])
	}
	return res
}

// Canonical parses s and returns its canonical absolute form.
func Canonical(s string) (string, error) {
	p, err := Parse(s)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}
