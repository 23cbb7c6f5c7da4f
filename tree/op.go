package tree

import "fmt"

// Op selects how Set writes a value.
type Op int

const (
	Replace Op = iota
	Merge
	Append
	Delete
)

var opNames = [...]string{
	Replace: "replace",
	Merge:   "merge",
	Append:  "append",
	Delete:  "delete",
}

func (op Op) String() string {
	if op < 0 || int(op) >= len(opNames) {
		return fmt.Sprintf("Op(%d)", int(op))
	}
	return opNames[op]
}

// ParseOp parses the name of an Op.
func ParseOp(s string) (Op, error) {
	for i, name := range opNames {
		if name == s {
			return Op(i), nil
		}
	}
	return 0, fmt.Errorf("unknown op %q", s)
}
