package tree

import (
	"maps"
	"reflect"

	"github.com/signadot/pathstore/debug"
	"github.com/signadot/pathstore/xpath"
)

// step is a single navigation: a property lookup or an array index.
type step struct {
	name  string
	index int
	isIdx bool
}

// steps flattens a path so that "a[2]" becomes the property step "a"
// followed by the index step 2.
func steps(p xpath.Path) []step {
	res := make([]step, 0, len(p)*2)
	for _, seg := range p {
		if seg.Name != "" || seg.Index == nil {
			res = append(res, step{name: seg.Name})
		}
		if seg.Index != nil {
			res = append(res, step{index: *seg.Index, isIdx: true})
		}
	}
	return res
}

// Get returns the value at p and whether it is present.
func Get(tree any, p xpath.Path) (any, bool) {
	cur := tree
	for _, st := range steps(p) {
		if st.isIdx {
			arr, ok := cur.([]any)
			if !ok || st.index >= len(arr) {
				return nil, false
			}
			cur = arr[st.index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[st.name]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// Has reports whether a value is present at p.
func Has(tree any, p xpath.Path) bool {
	_, ok := Get(tree, p)
	return ok
}

// Set returns a copy of tree with value written at p according to op.
//
// At the root, Replace substitutes the tree, Delete clears it to an empty
// map, Merge shallow-merges two maps and Append pushes onto a root array.
//
// Below the root, missing intermediates are created: an empty map for a
// property step, an array padded with empty maps for an index step. Delete
// of an absent location returns tree itself.
//
// Padding allocates one map per missing slot, so an index far past the end
// of an array costs memory in proportion to the index. Callers taking paths
// from untrusted input should bound indexes first.
func Set(tree any, p xpath.Path, value any, op Op) any {
	if debug.Tree() {
		debug.Logf("tree: %s %s <- %v\n", op, p, value)
	}
	sts := steps(p)
	if len(sts) == 0 {
		return setRoot(tree, value, op)
	}
	if op == Delete && !Has(tree, p) {
		return tree
	}
	return setIn(tree, sts, value, op)
}

func setRoot(tree, value any, op Op) any {
	switch op {
	case Delete:
		return map[string]any{}
	case Merge:
		return merge(tree, value)
	case Append:
		return push(tree, value)
	default:
		return value
	}
}

func setIn(node any, sts []step, value any, op Op) any {
	st := sts[0]
	last := len(sts) == 1
	if st.isIdx {
		if last {
			return setIndex(node, st.index, value, op)
		}
		arr := padded(node, st.index+1)
		arr[st.index] = setIn(arr[st.index], sts[1:], value, op)
		return arr
	}
	m := copyMap(node)
	if last {
		setField(m, st.name, value, op)
		return m
	}
	m[st.name] = setIn(m[st.name], sts[1:], value, op)
	return m
}

func setField(m map[string]any, name string, value any, op Op) {
	switch op {
	case Delete:
		delete(m, name)
	case Merge:
		m[name] = merge(m[name], value)
	case Append:
		m[name] = push(m[name], value)
	default:
		m[name] = value
	}
}

func setIndex(node any, i int, value any, op Op) any {
	switch op {
	case Append:
		return push(node, value)
	case Delete:
		arr, ok := node.([]any)
		if !ok || i >= len(arr) {
			return node
		}
		res := make([]any, 0, len(arr)-1)
		res = append(res, arr[:i]...)
		return append(res, arr[i+1:]...)
	case Merge:
		arr := padded(node, i+1)
		arr[i] = merge(arr[i], value)
		return arr
	default:
		arr := padded(node, i+1)
		arr[i] = value
		return arr
	}
}

// copyMap returns a shallow copy of node if it is a map, otherwise a new
// empty map.
func copyMap(node any) map[string]any {
	m, ok := node.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	res := maps.Clone(m)
	if res == nil {
		res = map[string]any{}
	}
	return res
}

// padded returns a copy of node as an array of at least n elements, filling
// new slots with empty maps. A non-array node yields a fresh array.
func padded(node any, n int) []any {
	arr, _ := node.([]any)
	size := max(len(arr), n)
	res := make([]any, size)
	copy(res, arr)
	for i := len(arr); i < size; i++ {
		res[i] = map[string]any{}
	}
	return res
}

func push(node any, value any) []any {
	arr, _ := node.([]any)
	res := make([]any, len(arr), len(arr)+1)
	copy(res, arr)
	return append(res, value)
}

// merge shallow-merges value into existing when both are maps and returns
// value otherwise.
func merge(existing, value any) any {
	dst, ok := existing.(map[string]any)
	if !ok {
		return value
	}
	src, ok := value.(map[string]any)
	if !ok {
		return value
	}
	res := make(map[string]any, len(dst)+len(src))
	maps.Copy(res, dst)
	maps.Copy(res, src)
	return res
}

// Same reports whether a and b are the same value by reference: maps and
// slices must share storage, everything else is compared with ==.
func Same(a, b any) bool {
	switch x := a.(type) {
	case map[string]any:
		y, ok := b.(map[string]any)
		if !ok {
			return false
		}
		return reflect.ValueOf(x).UnsafePointer() == reflect.ValueOf(y).UnsafePointer()
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		if len(x) == 0 {
			return cap(x) == cap(y) && reflect.ValueOf(x).UnsafePointer() == reflect.ValueOf(y).UnsafePointer()
		}
		return &x[0] == &y[0]
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
