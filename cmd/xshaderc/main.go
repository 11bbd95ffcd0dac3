// Command xshaderc translates GLSL shaders to Metal Shading Language.
//
// Usage:
//
//	xshaderc compile [flags] <file>...
//	xshaderc reflect <file>...
//	xshaderc caps
//	xshaderc version
//
// Examples:
//
//	xshaderc compile basic.frag                 # MSL to stdout
//	xshaderc compile -o out/ a.vert b.frag      # one .metal file per input
//	xshaderc compile -c xshader.toml            # batch from a run file
//	xshaderc compile -D USE_FOG=1 fog.frag      # predefined macro
package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
)

// Globals are shared by every command.
type Globals struct {
	Verbose bool `help:"Log pipeline progress to stderr." short:"v"`

	ctx    context.Context `kong:"-"`
	stdout io.Writer       `kong:"-"`
	stderr io.Writer       `kong:"-"`
}

type CLI struct {
	Globals

	Compile CompileCmd `cmd:"" help:"Translate GLSL shaders to MSL."`
	Reflect ReflectCmd `cmd:"" help:"Print entry points, globals and function signatures."`
	Caps    CapsCmd    `cmd:"" help:"List the capabilities a shader may be allowed to use."`
	Version VersionCmd `cmd:"" help:"Print version information."`
}

// logger returns the progress logger. Without --verbose only errors are
// logged; failures are reported on the console instead.
func (g *Globals) logger() *slog.Logger {
	level := slog.LevelError
	if g.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(g.stderr, &slog.HandlerOptions{Level: level}))
}

type VersionCmd struct{}

func (c *VersionCmd) Run(g *Globals) error {
	_, err := io.WriteString(g.stdout, Version()+"\n")
	return err
}

func newParser(cli *CLI) (*kong.Kong, error) {
	return kong.New(cli,
		kong.Name("xshaderc"),
		kong.Description("GLSL to Metal Shading Language translator."),
		kong.UsageOnError(),
	)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cli := &CLI{}
	cli.ctx = ctx
	cli.stdout = os.Stdout
	cli.stderr = os.Stderr

	parser, err := newParser(cli)
	if err != nil {
		panic(err)
	}
	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)
	err = kctx.Run(&cli.Globals)
	kctx.FatalIfErrorf(err)
}
