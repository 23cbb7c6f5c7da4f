package main

import (
	"fmt"

	"github.com/scott-cotton/cli"
	"github.com/signadot/pathstore/store"
)

func get(cfg *GetConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Get.Parse(cc, args)
	if err != nil {
		cfg.Get.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 || len(args) > 2 {
		return fmt.Errorf("%w: get requires a path and an optional file", cli.ErrUsage)
	}
	s, err := openStore(cc, docArg(args, 1))
	if err != nil {
		return err
	}
	defer s.Close()
	v, ok, err := s.GetAt(args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no value at %s", args[0])
	}
	return writeDoc(cc.Out, v)
}

// openStore returns a store whose tree is the document in path.
func openStore(cc *cli.Context, path string) (*store.Store, error) {
	doc, err := getDoc(cc, path)
	if err != nil {
		return nil, err
	}
	return store.New(&store.Spec{Name: "pstore", Initial: doc, Log: theLog})
}
