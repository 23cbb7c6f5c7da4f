package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
)

type MainConfig struct {
	Color   bool `cli:"name=color desc='color output even when not on a terminal'"`
	NoColor bool `cli:"name=nocolor desc='never color output'"`
	Verbose bool `cli:"name=v desc='log debug messages'"`

	Main *cli.Command
}

// colorize reports whether output to w should be colored.
func (cfg *MainConfig) colorize(w io.Writer) bool {
	switch {
	case cfg.NoColor:
		return false
	case cfg.Color:
		return true
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

// painter returns a sprint function for attrs, or a plain one when w is not
// colored.
func (cfg *MainConfig) painter(w io.Writer, attrs ...color.Attribute) func(a ...any) string {
	c := color.New(attrs...)
	if cfg.colorize(w) {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c.SprintFunc()
}

type GetConfig struct {
	*MainConfig

	Get *cli.Command
}

type SetConfig struct {
	*MainConfig
	Op string `cli:"name=op desc='replace, merge, append or delete'"`

	Set *cli.Command
}

type CombineConfig struct {
	*MainConfig

	Combine *cli.Command
}

type PatchConfig struct {
	*MainConfig

	Patch *cli.Command
}

type DiffConfig struct {
	*MainConfig
	Structural bool `cli:"name=s desc='list changes by path instead of a line diff'"`

	Diff *cli.Command
}

type RunConfig struct {
	*MainConfig
	ConfigFile string `cli:"name=config desc='store configuration file, overrides the scenario config'"`
	Gops       bool   `cli:"name=gops desc='start a gops diagnostics agent'"`

	Run *cli.Command
}
