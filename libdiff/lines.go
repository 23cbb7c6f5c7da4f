package libdiff

import (
	"strings"

	"github.com/goccy/go-yaml"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

type LineOp int

const (
	Equal LineOp = iota
	Added
	Removed
)

// Line is one line of a rendered diff.
type Line struct {
	Op   LineOp
	Text string
}

func (l Line) String() string {
	switch l.Op {
	case Added:
		return "+ " + l.Text
	case Removed:
		return "- " + l.Text
	}
	return "  " + l.Text
}

// Lines renders from and to as YAML and diffs them line by line.
func Lines(from, to any) ([]Line, error) {
	a, err := yaml.Marshal(from)
	if err != nil {
		return nil, err
	}
	b, err := yaml.Marshal(to)
	if err != nil {
		return nil, err
	}
	return Text(string(a), string(b)), nil
}

// Text diffs two texts line by line.
func Text(a, b string) []Line {
	dmp := diffpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(a, b)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)
	var res []Line
	for _, d := range diffs {
		op := Equal
		switch d.Type {
		case diffpatch.DiffInsert:
			op = Added
		case diffpatch.DiffDelete:
			op = Removed
		}
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text == "" {
				continue
			}
			res = append(res, Line{Op: op, Text: strings.TrimSuffix(text, "\n")})
		}
	}
	return res
}

// Changed reports whether any line differs.
func Changed(lines []Line) bool {
	for _, l := range lines {
		if l.Op != Equal {
			return true
		}
	}
	return false
}
