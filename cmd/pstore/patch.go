package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
)

func patch(cfg *PatchConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Patch.Parse(cc, args)
	if err != nil {
		cfg.Patch.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: patch requires a patch file and an optional document", cli.ErrUsage)
	}
	if args[0] == "-" && docArg(args, 1) == "-" {
		return fmt.Errorf("%w: patch and document cannot both be read from stdin", cli.ErrUsage)
	}
	p, err := readFile(cc, args[0])
	if err != nil {
		return err
	}
	s, err := openStore(cc, docArg(args, 1))
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.ApplyJSONPatch(p); err != nil {
		return fmt.Errorf("error patching with %s: %w", args[0], err)
	}
	doc, err := s.Snapshot()
	if err != nil {
		return err
	}
	return writeDoc(cc.Out, doc)
}
