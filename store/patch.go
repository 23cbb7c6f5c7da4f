package store

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch"
)

// ApplyJSONPatch applies an RFC 6902 patch to the whole tree. The tree
// goes through JSON, so numbers come back as float64.
func (s *Store) ApplyJSONPatch(patch []byte) error {
	ops, err := jsonpatch.DecodePatch(patch)
	if err != nil {
		return fmt.Errorf("decoding json patch: %w", err)
	}
	var perr error
	err = s.do(func() {
		doc, err := json.Marshal(s.tree)
		if err != nil {
			perr = fmt.Errorf("encoding tree: %w", err)
			return
		}
		out, err := ops.Apply(doc)
		if err != nil {
			perr = fmt.Errorf("applying json patch: %w", err)
			return
		}
		var t any
		if err := json.Unmarshal(out, &t); err != nil {
			perr = fmt.Errorf("decoding patched tree: %w", err)
			return
		}
		s.setTree(t)
	})
	if err != nil {
		return err
	}
	return perr
}
