package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/google/gops/agent"
	"github.com/scott-cotton/cli"
	"github.com/signadot/pathstore/scenario"
	"github.com/signadot/pathstore/store"
)

func run(cfg *RunConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Run.Parse(cc, args)
	if err != nil {
		cfg.Run.Usage(cc, err)
		return cli.ExitCodeErr(1)
	}
	if len(args) == 0 {
		return fmt.Errorf("%w: run requires at least one scenario file", cli.ErrUsage)
	}
	if cfg.Gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			fmt.Fprintf(cc.Out, "gops agent failed: %v\n", err)
		}
		defer agent.Close()
	}
	var storeCfg *store.Config
	if cfg.ConfigFile != "" {
		storeCfg, err = store.LoadConfig(cfg.ConfigFile)
		if err != nil {
			return err
		}
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	pass := cfg.painter(cc.Out, color.FgGreen)
	fail := cfg.painter(cc.Out, color.FgRed, color.Bold)
	failed := 0
	for _, arg := range args {
		sc, err := scenario.Load(arg)
		if err != nil {
			return err
		}
		err = scenario.Run(ctx, sc, &store.Spec{
			Config: storeCfg,
			Name:   arg,
			Log:    theLog.With("scenario", arg),
		})
		if err == nil {
			fmt.Fprintf(cc.Out, "%s %s\n", pass("ok  "), arg)
			continue
		}
		failed++
		var aerr *scenario.AssertionError
		if !errors.As(err, &aerr) {
			theLog.Debug("scenario error", "file", arg, "err", err)
		}
		fmt.Fprintf(cc.Out, "%s %s: %v\n", fail("FAIL"), arg, err)
	}
	if failed > 0 {
		return cli.ExitCodeErr(1)
	}
	return nil
}
