package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/scott-cotton/cli"
	"github.com/signadot/pathstore/libdiff"
)

func diff(cfg *DiffConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Diff.Parse(cc, args)
	if err != nil {
		cfg.Diff.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) != 2 {
		return fmt.Errorf("%w: diff requires 2 args, got %v", cli.ErrUsage, args)
	}
	if args[0] == "-" && args[1] == "-" {
		return fmt.Errorf("%w: only one input may be stdin", cli.ErrUsage)
	}
	a, err := getDoc(cc, args[0])
	if err != nil {
		return err
	}
	b, err := getDoc(cc, args[1])
	if err != nil {
		return err
	}
	var differs bool
	if cfg.Structural {
		differs, err = diffChanges(cfg, cc.Out, a, b)
	} else {
		differs, err = diffLines(cfg, cc.Out, a, b)
	}
	if err != nil {
		return err
	}
	if differs {
		return cli.ExitCodeErr(1)
	}
	return nil
}

func diffLines(cfg *DiffConfig, w io.Writer, a, b any) (bool, error) {
	lines, err := libdiff.Lines(a, b)
	if err != nil {
		return false, err
	}
	if !libdiff.Changed(lines) {
		return false, nil
	}
	added := cfg.painter(w, color.FgGreen)
	removed := cfg.painter(w, color.FgRed)
	for _, l := range lines {
		s := l.String()
		switch l.Op {
		case libdiff.Added:
			s = added(s)
		case libdiff.Removed:
			s = removed(s)
		}
		if _, err := fmt.Fprintln(w, s); err != nil {
			return true, err
		}
	}
	return true, nil
}

func diffChanges(cfg *DiffConfig, w io.Writer, a, b any) (bool, error) {
	changes := libdiff.Diff(a, b)
	paint := map[libdiff.Kind]func(...any) string{
		libdiff.Insert:  cfg.painter(w, color.FgGreen),
		libdiff.Delete:  cfg.painter(w, color.FgRed),
		libdiff.Replace: cfg.painter(w, color.FgYellow),
	}
	for _, c := range changes {
		if _, err := fmt.Fprintln(w, paint[c.Kind](c.String())); err != nil {
			return true, err
		}
	}
	return len(changes) > 0, nil
}
