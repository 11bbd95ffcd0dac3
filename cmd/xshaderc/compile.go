package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gogpu/xshader/glsl"
	"github.com/gogpu/xshader/internal/config"
	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/pipeline"
)

// CompileCmd translates a batch of shaders.
type CompileCmd struct {
	Files []string `arg:"" optional:"" help:"GLSL sources. The stage comes from the extension unless --stage is set."`

	Config       string            `help:"Run file listing shaders and options." short:"c"`
	Out          string            `help:"Directory for the generated .metal files (default: stdout)." short:"o"`
	Stage        string            `help:"Stage of every file given on the command line."`
	Capabilities []string          `help:"Capabilities added to the default profile." name:"capability" sep:","`
	Define       map[string]string `help:"Predefined macro as NAME=VALUE." short:"D"`
	MSLVersion   string            `help:"Target MSL version, e.g. 2.1." name:"msl-version"`
	EntryPoint   string            `help:"Only emit the named entry point." name:"entry-point"`
	FailFast     bool              `help:"Stop starting new units after the first failure."`
	Jobs         int               `help:"Units processed at once." short:"j"`
	Reflect      bool              `help:"Print the reflection summary of every unit." short:"r"`
}

func (c *CompileCmd) Run(g *Globals) error {
	file, err := c.runFile()
	if err != nil {
		return err
	}
	d, err := file.Driver(g.logger())
	if err != nil {
		return err
	}
	inputs, err := file.Inputs()
	if err != nil {
		return err
	}
	if len(inputs) == 0 {
		return errors.New("no input files")
	}

	report := d.Run(g.ctx, inputs)
	if err := c.writeOutputs(g, report); err != nil {
		return err
	}

	con := newConsole(g.stderr)
	for _, res := range report.Results {
		con.unit(res)
		if c.Reflect && res.OK() {
			if err := con.summary(res.Summary); err != nil {
				return err
			}
		}
	}
	con.finished(report)

	if failed := len(report.Failed()); failed > 0 {
		return fmt.Errorf("%d of %d units failed", failed, len(report.Results))
	}
	return nil
}

// runFile merges the run file, if any, with the command line. Flags take
// precedence over the file.
func (c *CompileCmd) runFile() (*config.File, error) {
	file := &config.File{}
	path := c.Config
	if path == "" && len(c.Files) == 0 {
		if _, err := os.Stat(config.FileName); err == nil {
			path = config.FileName
		}
	}
	if path != "" {
		var err error
		if file, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	for _, f := range c.Files {
		// Run file entries are relative to the run file, flags to the
		// working directory.
		if file.Dir != "" && !filepath.IsAbs(f) {
			abs, err := filepath.Abs(f)
			if err != nil {
				return nil, err
			}
			f = abs
		}
		file.Shaders = append(file.Shaders, config.Shader{Path: f, Stage: c.Stage})
	}
	file.Capabilities = append(file.Capabilities, c.Capabilities...)
	if len(c.Define) > 0 {
		if file.Defines == nil {
			file.Defines = make(map[string]string, len(c.Define))
		}
		for k, v := range c.Define {
			file.Defines[k] = v
		}
	}
	if c.MSLVersion != "" {
		file.MSL.LangVersion = c.MSLVersion
	}
	if c.EntryPoint != "" {
		file.MSL.EntryPoint = c.EntryPoint
	}
	if c.FailFast {
		file.FailFast = true
	}
	if c.Jobs > 0 {
		file.Concurrency = c.Jobs
	}
	if err := file.Validate(); err != nil {
		return nil, err
	}
	return file, nil
}

// writeOutputs writes the MSL of every successful unit, either to the
// output directory or to stdout.
func (c *CompileCmd) writeOutputs(g *Globals, report *pipeline.Report) error {
	if c.Out != "" {
		if err := os.MkdirAll(c.Out, 0o755); err != nil {
			return err
		}
	}
	for _, res := range report.Results {
		if !res.OK() {
			continue
		}
		if c.Out == "" {
			if _, err := fmt.Fprintf(g.stdout, "// %s\n%s\n", res.Name, res.Output); err != nil {
				return err
			}
			continue
		}
		path := filepath.Join(c.Out, outputName(res.Name))
		if err := os.WriteFile(path, []byte(res.Output), 0o644); err != nil {
			return err
		}
	}
	return nil
}

// outputName maps "dir/basic.frag" to "basic.frag.metal" and
// "blur.comp.glsl" to "blur.comp.metal".
func outputName(name string) string {
	return strings.TrimSuffix(filepath.Base(name), ".glsl") + ".metal"
}

// ReflectCmd prints reflection summaries without emitting MSL.
type ReflectCmd struct {
	Files        []string `arg:"" help:"GLSL sources."`
	Stage        string   `help:"Stage of every file."`
	Capabilities []string `help:"Capabilities added to the default profile." name:"capability" sep:","`
}

func (c *ReflectCmd) Run(g *Globals) error {
	profile := config.File{Capabilities: c.Capabilities}
	caps, err := profile.CapabilitySet()
	if err != nil {
		return err
	}

	con := newConsole(g.stderr)
	var failed int
	for _, path := range c.Files {
		summary, err := c.reflect(path, caps)
		if err != nil {
			con.failure(path, pipeline.Classify(err), err)
			failed++
			continue
		}
		if _, err := fmt.Fprintf(g.stdout, "# %s\n%s\n", path, summary); err != nil {
			return err
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d units failed", failed, len(c.Files))
	}
	return nil
}

// reflect validates against the same profile compile uses, so both commands
// accept the same shaders.
func (c *ReflectCmd) reflect(path string, caps ir.Capabilities) (string, error) {
	shader := config.Shader{Path: path, Stage: c.Stage}
	stage, err := shader.ShaderStage()
	if err != nil {
		return "", err
	}
	source, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	u := pipeline.NewUnit(path, source)
	if err := u.Parse(glsl.Options{Stage: stage}); err != nil {
		return "", err
	}
	if err := u.Validate(caps); err != nil {
		return "", err
	}
	if err := u.Reflect(); err != nil {
		return "", err
	}
	return u.Summary().String(), nil
}

// CapsCmd lists capability names and marks the default profile.
type CapsCmd struct{}

func (c *CapsCmd) Run(g *Globals) error {
	return newConsole(g.stdout).capabilities(ir.CapabilitiesAll, pipeline.DefaultCapabilities())
}
