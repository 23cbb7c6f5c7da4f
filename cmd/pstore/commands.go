package main

import (
	"github.com/scott-cotton/cli"
)

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "pstore").
		WithSynopsis("pstore [opts] command [opts]").
		WithDescription("pstore edits documents by path and runs store scenarios.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return pstoreMain(cfg, cc, args)
		}).
		WithSubs(
			GetCommand(cfg),
			SetCommand(cfg),
			CombineCommand(cfg),
			PatchCommand(cfg),
			DiffCommand(cfg),
			RunCommand(cfg))
}

func GetCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &GetConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Get, "get").
		WithAliases("g").
		WithSynopsis("get <path> [file]").
		WithDescription("print the value at path in a yaml document").
		WithRun(func(cc *cli.Context, args []string) error {
			return get(cfg, cc, args)
		})
}

func SetCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &SetConfig{MainConfig: mainCfg, Op: "replace"}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Set, "set").
		WithAliases("s").
		WithSynopsis("set [-op op] <path> <yaml-value> [file]").
		WithDescription("write a value at path in a yaml document").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return set(cfg, cc, args)
		})
}

func CombineCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &CombineConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Combine, "combine").
		WithAliases("c").
		WithSynopsis("combine <base> <relative>").
		WithDescription("resolve a relative path against a base path").
		WithRun(func(cc *cli.Context, args []string) error {
			return combine(cfg, cc, args)
		})
}

func PatchCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &PatchConfig{MainConfig: mainCfg}
	return cli.NewCommandAt(&cfg.Patch, "patch").
		WithAliases("p").
		WithSynopsis("patch <patch.json> [file]").
		WithDescription("apply an RFC 6902 json patch to a yaml document").
		WithRun(func(cc *cli.Context, args []string) error {
			return patch(cfg, cc, args)
		})
}

func DiffCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &DiffConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Diff, "diff").
		WithAliases("d").
		WithSynopsis("diff [-s] <file> <file>").
		WithDescription("diff two yaml documents, exiting 1 when they differ").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return diff(cfg, cc, args)
		})
}

func RunCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &RunConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Run, "run").
		WithAliases("r").
		WithSynopsis("run [-config file] [-gops] <scenario.yaml>...").
		WithDescription("run store scenarios and check their assertions").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return run(cfg, cc, args)
		})
}
