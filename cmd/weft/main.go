package main

import (
	"fmt"
	"os"

	"github.com/alecthomas/kong"
	"github.com/goccy/go-yaml"
	"github.com/pkg/profile"

	"github.com/weftlabs/go-weft/pkg/weft"
)

type cli struct {
	Render renderCmd `cmd:"" default:"withargs" help:"Render a template to stdout"`
	Check  checkCmd  `cmd:"" help:"Parse a template and report errors without rendering"`

	Profile string `help:"Write a CPU profile to the given directory" placeholder:"DIR"`
}

type renderCmd struct {
	Template string   `arg:"" help:"Template name, resolved against the search path"`
	Data     string   `help:"YAML file providing the template data" short:"d" type:"existingfile"`
	Path     []string `help:"Template search directories" short:"p" type:"existingdir"`
	Reload   bool     `help:"Re-parse templates that change on disk"`
}

func (c *renderCmd) Run() error {
	data := map[string]any{}
	if c.Data != "" {
		raw, err := os.ReadFile(c.Data)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return fmt.Errorf("reading %s: %w", c.Data, err)
		}
	}

	engine := weft.New(
		weft.WithSearchPath(c.Path...),
		weft.WithAutoReload(c.Reload),
	)
	tmpl, err := engine.Load(c.Template)
	if err != nil {
		return err
	}
	return weft.Serialize(os.Stdout, tmpl.Generate(weft.NewContext(data)))
}

type checkCmd struct {
	Template string `arg:"" help:"Template file to check" type:"existingfile"`
}

func (c *checkCmd) Run() error {
	if _, err := weft.New().ParseFile(c.Template); err != nil {
		return err
	}
	fmt.Printf("%s: ok\n", c.Template)
	return nil
}

func main() {
	var args cli
	ktx := kong.Parse(&args,
		kong.Name("weft"),
		kong.Description("Streaming XML template engine."),
		kong.UsageOnError(),
	)

	if args.Profile != "" {
		defer profile.Start(
			profile.CPUProfile,
			profile.ProfilePath(args.Profile),
			profile.Quiet,
		).Stop()
	}

	if err := ktx.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "weft:", err)
		os.Exit(1)
	}
}
