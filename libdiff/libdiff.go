// Package libdiff computes differences between value trees: a structural
// list of changes by path, and a line diff of their YAML renderings.
package libdiff

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strconv"

	diffpatch "github.com/sergi/go-diff/diffmatchpatch"

	"github.com/signadot/pathstore/tree"
	"github.com/signadot/pathstore/xpath"
)

type Kind int

const (
	Insert Kind = iota
	Delete
	Replace
)

func (k Kind) String() string {
	switch k {
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Replace:
		return "replace"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Change is one difference at Path. From is nil for inserts and To is nil
// for deletes. Array indexes of deletes refer to the old array, the others
// to the new one.
type Change struct {
	Path xpath.Path
	Kind Kind
	From any
	To   any
}

func (c Change) String() string {
	switch c.Kind {
	case Insert:
		return fmt.Sprintf("+ %s: %v", c.Path, c.To)
	case Delete:
		return fmt.Sprintf("- %s: %v", c.Path, c.From)
	}
	return fmt.Sprintf("~ %s: %v -> %v", c.Path, c.From, c.To)
}

// Diff returns the changes turning from into to, in path order. Subtrees
// shared by reference are skipped without being walked.
func Diff(from, to any) []Change {
	var res []Change
	diff(xpath.Root, from, to, &res)
	return res
}

func diff(p xpath.Path, from, to any, res *[]Change) {
	if tree.Same(from, to) {
		return
	}
	switch f := from.(type) {
	case map[string]any:
		if t, ok := to.(map[string]any); ok {
			diffMap(p, f, t, res)
			return
		}
	case []any:
		if t, ok := to.([]any); ok {
			diffArray(p, f, t, res)
			return
		}
	}
	if reflect.DeepEqual(from, to) {
		return
	}
	*res = append(*res, Change{Path: p, Kind: Replace, From: from, To: to})
}

func diffMap(p xpath.Path, from, to map[string]any, res *[]Change) {
	keys := slices.Sorted(maps.Keys(from))
	for k := range to {
		if _, ok := from[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		kp := p.Append(xpath.Field(k))
		fv, inFrom := from[k]
		tv, inTo := to[k]
		switch {
		case !inTo:
			*res = append(*res, Change{Path: kp, Kind: Delete, From: fv})
		case !inFrom:
			*res = append(*res, Change{Path: kp, Kind: Insert, To: tv})
		default:
			diff(kp, fv, tv, res)
		}
	}
}

// diffArray aligns the arrays on a summary of each element, so that
// insertions and deletions do not show up as a replacement of every
// following element. Aligned containers are compared recursively.
func diffArray(p xpath.Path, from, to []any, res *[]Change) {
	m := map[string]rune{}
	fromRunes := summaries(m, from)
	toRunes := summaries(m, to)
	diffs := diffpatch.New().DiffMainRunes(fromRunes, toRunes, false)

	fi, ti := 0, 0
	// lastDelete is the index in res of a delete that an immediately
	// following insert turns into a replace.
	lastDelete := -1
	for i := range diffs {
		d := &diffs[i]
		n := len([]rune(d.Text))
		switch d.Type {
		case diffpatch.DiffDelete:
			for range n {
				*res = append(*res, Change{Path: elem(p, fi), Kind: Delete, From: from[fi]})
				lastDelete = len(*res) - 1
				fi++
			}
		case diffpatch.DiffInsert:
			for range n {
				if lastDelete >= 0 {
					c := &(*res)[lastDelete]
					c.Kind = Replace
					c.Path = elem(p, ti)
					c.To = to[ti]
					lastDelete = -1
				} else {
					*res = append(*res, Change{Path: elem(p, ti), Kind: Insert, To: to[ti]})
				}
				ti++
			}
			lastDelete = -1
		case diffpatch.DiffEqual:
			lastDelete = -1
			for range n {
				diff(elem(p, ti), from[fi], to[ti], res)
				fi++
				ti++
			}
		}
	}
}

// elem addresses element i of the array at p.
func elem(p xpath.Path, i int) xpath.Path {
	last, ok := p.Last()
	if !ok || last.HasIndex() {
		return p.Append(xpath.Elem("", i))
	}
	res := p.Parent().Append(xpath.Elem(last.Name, i))
	return res
}

func summaries(m map[string]rune, values []any) []rune {
	rs := make([]rune, len(values))
	for i, v := range values {
		sum := summary(v)
		r, ok := m[sum]
		if !ok {
			r = rune(len(m))
			m[sum] = r
		}
		rs[i] = r
	}
	return rs
}

// summary identifies scalars by type and value and containers by type
// only.
func summary(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case bool:
		return "bool-" + strconv.FormatBool(x)
	case string:
		return "string-" + x
	}
	return fmt.Sprintf("%T-%v", v, v)
}
