package xpath

import "strings"

// Combine resolves rel against base and returns the canonical absolute
// result.
//
//   - an absolute rel ("/x") replaces base
//   - leading ".." tokens pop one base segment each, clamping at the root
//   - leading "." tokens are ignored
//   - anything else is appended to base
//
// Examples:
//   - Combine("/a/b", "c") → "/a/b/c"
//   - Combine("/a/b", "../c[1]") → "/a/c[1]"
//   - Combine("/a", "../../..") → "/"
//   - Combine("/a/b", "/x") → "/x"
//   - Combine("/a/b", "") → "/a/b"
func Combine(base, rel string) (string, error) {
	p, err := CombinePath(base, rel)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// CombinePath is Combine returning the parsed result.
func CombinePath(base, rel string) (Path, error) {
	if strings.HasPrefix(rel, "/") {
		return Parse(rel)
	}
	basePath, err := Parse(base)
	if err != nil {
		return nil, err
	}
	return basePath.Resolve(rel)
}

// Resolve applies the relative path rel to p as Combine does. An absolute rel
// ignores p.
func (p Path) Resolve(rel string) (Path, error) {
	if strings.HasPrefix(rel, "/") {
		return Parse(rel)
	}
	n := len(p)
	rest := rel
	for {
		switch {
		case rest == ".." || strings.HasPrefix(rest, "../"):
			if n > 0 {
				n--
			}
			rest = strings.TrimPrefix(rest[2:], "/")
			continue
		case rest == "." || strings.HasPrefix(rest, "./"):
			rest = strings.TrimPrefix(rest[1:], "/")
			continue
		}
		break
	}
	tail, err := Parse(rest)
	if err != nil {
		return nil, err
	}
	res := make(Path, 0, n+len(tail))
	res = append(res, p[:n]...)
	res = append(res, tail...)
	if len(res) == 0 {
		return nil, nil
	}
	return res, nil
}
