package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
	"github.com/signadot/pathstore/xpath"
)

func combine(cfg *CombineConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Combine.Parse(cc, args)
	if err != nil {
		cfg.Combine.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: combine requires 2 args, got %v", cli.ErrUsage, args)
	}
	p, err := xpath.Combine(args[0], args[1])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cc.Out, p)
	return err
}
