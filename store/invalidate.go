package store

import (
	"strings"

	"github.com/signadot/pathstore/tree"
	"github.com/signadot/pathstore/xpath"
)

type InvalidateOptions struct {
	// IncludeChildren also invalidates tracked paths below the path.
	IncludeChildren bool
	// IncludeParents also invalidates tracked ancestors of the path.
	IncludeParents bool
	// ClearData deletes the data at every invalidated path.
	ClearData bool
}

// Invalidate cancels the commands at path, batched ones included, returns its async state to idle
// and optionally clears its data. It returns the invalidated paths.
func (s *Store) Invalidate(path string, opts InvalidateOptions) ([]string, error) {
	p, err := xpath.Parse(path)
	if err != nil {
		return nil, err
	}
	var res []string
	err = s.do(func() {
		for _, target := range s.invalidationTargets(p, opts) {
			s.sched.CancelByPath(target)
			s.batches.CancelByPath(target)
			key := target.String()
			s.states.Reset(key)
			if opts.ClearData {
				s.setTree(tree.Set(s.tree, target, nil, tree.Delete))
			}
			res = append(res, key)
		}
	})
	if err != nil {
		return nil, err
	}
	s.log.Debug("invalidated", "path", p.String(), "paths", res)
	return res, nil
}

// invalidationTargets returns p, then its tracked descendants in sorted
// order, then its tracked ancestors nearest first. Loop only.
func (s *Store) invalidationTargets(p xpath.Path, opts InvalidateOptions) []xpath.Path {
	res := []xpath.Path{p}
	key := p.String()
	if opts.IncludeChildren {
		for _, tracked := range s.states.Paths() {
			if !isDescendant(tracked, key) {
				continue
			}
			if tp, err := xpath.Parse(tracked); err == nil {
				res = append(res, tp)
			}
		}
	}
	if opts.IncludeParents {
		for _, a := range p.Ancestors() {
			if _, ok := s.states.Get(a.String()); ok {
				res = append(res, a)
			}
		}
	}
	return res
}

func isDescendant(path, parent string) bool {
	if parent == "/" {
		return path != "/"
	}
	return strings.HasPrefix(path, parent+"/") || strings.HasPrefix(path, parent+"[")
}
