// Package xpath provides parsing, combination and canonical serialization of
// store path expressions.
//
// A path is a '/' separated list of segments. Each segment is a property name
// optionally followed by an array index:
//
//	"/users/list[2]/name"   // property users → property list → element 2 → property name
//	"[0]/id"                // relative; element 0 of the current container
//	"/"                     // root
//
// # Usage
//
//	p, err := xpath.Parse("/users/list[2]")
//	last := p[len(p)-1]    // Segment{Name: "list", Index: &2}
//	parent := p.Parent()   // "/users"
//
//	s, err := xpath.Combine("/users/list[2]", "../../settings") // "/settings"
//
// Combining never fails on too many ".." tokens; it clamps at the root.
// Malformed brackets are reported as ErrInvalidPath.
package xpath
