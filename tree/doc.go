// Package tree reads and immutably edits Values addressed by xpath paths.
//
// A Value is any of map[string]any, []any or a scalar. Set never mutates its
// input: it copies the maps and slices on the way from the root to the edited
// location and keeps every other subtree as is, so callers may compare
// subtrees with Same to find out what changed.
package tree
