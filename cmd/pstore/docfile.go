package main

import (
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/scott-cotton/cli"
)

// readFile reads path, or the command input for "-".
func readFile(cc *cli.Context, path string) ([]byte, error) {
	var r io.Reader
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	} else {
		r = cc.In
	}
	d, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %q: %w", path, err)
	}
	return d, nil
}

// getDoc decodes the yaml (or json) document in path.
func getDoc(cc *cli.Context, path string) (any, error) {
	d, err := readFile(cc, path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(d, &doc); err != nil {
		return nil, fmt.Errorf("error decoding %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	return doc, nil
}

func writeDoc(w io.Writer, v any) error {
	d, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(d)
	return err
}

// docArg returns the optional trailing file argument, stdin by default.
func docArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "-"
}
