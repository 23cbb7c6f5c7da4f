package main

import (
	"fmt"

	"github.com/goccy/go-yaml"
	"github.com/scott-cotton/cli"
	"github.com/signadot/pathstore/tree"
)

func set(cfg *SetConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Set.Parse(cc, args)
	if err != nil {
		cfg.Set.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) < 2 || len(args) > 3 {
		return fmt.Errorf("%w: set requires a path, a value and an optional file", cli.ErrUsage)
	}
	op, err := tree.ParseOp(cfg.Op)
	if err != nil {
		return fmt.Errorf("%w: %w", cli.ErrUsage, err)
	}
	var v any
	if op != tree.Delete {
		if err := yaml.Unmarshal([]byte(args[1]), &v); err != nil {
			return fmt.Errorf("error decoding value %q: %w", args[1], err)
		}
	}
	s, err := openStore(cc, docArg(args, 2))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.SetAt(args[0], v, op); err != nil {
		return err
	}
	doc, err := s.Snapshot()
	if err != nil {
		return err
	}
	return writeDoc(cc.Out, doc)
}
