package main

import (
	"fmt"
	"io"
	"time"

	"github.com/pterm/pterm"

	"github.com/gogpu/xshader/ir"
	"github.com/gogpu/xshader/pipeline"
	"github.com/gogpu/xshader/reflection"
)

var (
	successColorFG = pterm.FgLightGreen
	successStyleBG = pterm.NewStyle(pterm.BgLightGreen, pterm.FgBlack)
	warnColorFG    = pterm.FgYellow
	warnStyleBG    = pterm.NewStyle(pterm.BgYellow, pterm.FgBlack)
	errorColorFG   = pterm.FgRed
	errorStyleBG   = pterm.NewStyle(pterm.BgRed, pterm.FgWhite)
)

// console renders user-facing status with pterm styles.
type console struct {
	w     io.Writer
	start time.Time
}

func newConsole(w io.Writer) *console {
	return &console{w: w, start: time.Now()}
}

// tag prints a colored banner followed by a message.
func (c *console) tag(style *pterm.Style, color pterm.Color, tag, msg string) {
	fmt.Fprintln(c.w, style.Sprint(" "+tag+" ")+" "+color.Sprint(msg))
}

func (c *console) unit(res pipeline.Result) {
	switch {
	case res.Skipped:
		c.tag(warnStyleBG, warnColorFG, "Skip", res.Name)
	case res.Err != nil:
		c.failure(res.Name, res.Kind, res.Err)
	default:
		c.tag(successStyleBG, successColorFG, "Done", fmt.Sprintf("%s (%s)", res.Name, res.Stage))
	}
}

func (c *console) failure(name string, kind pipeline.ErrorKind, err error) {
	c.tag(errorStyleBG, errorColorFG, "Fail", fmt.Sprintf("%s: %s error", name, kind))
	fmt.Fprintln(c.w, err.Error())
}

// summary renders a reflection summary as a table.
func (c *console) summary(s reflection.Summary) error {
	out, err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Kind", "Names"},
		{"entry_points", s.EntryPointList()},
		{"global_variables", s.GlobalVariableList()},
		{"functions", s.FunctionList()},
	}).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.w, out)
	return nil
}

func (c *console) finished(report *pipeline.Report) {
	failed := len(report.Failed())
	skipped := len(report.Skipped())
	ok := len(report.Succeeded())

	fmt.Fprintln(c.w)
	if failed == 0 {
		fmt.Fprint(c.w, successColorFG.Sprint("All done! "))
	} else {
		fmt.Fprint(c.w, errorColorFG.Sprint("Oh no! "))
	}
	fmt.Fprintf(c.w, "(%d succeeded, %d failed, %d skipped) in %.3fs\n",
		ok, failed, skipped, time.Since(c.start).Seconds())
}

// capabilities lists every capability and whether the default profile
// includes it.
func (c *console) capabilities(all, defaults ir.Capabilities) error {
	data := pterm.TableData{{"Capability", "Default"}}
	for _, name := range all.Names() {
		flag, err := ir.ParseCapabilities(name)
		if err != nil {
			return err
		}
		mark := ""
		if defaults.Contains(flag) {
			mark = "yes"
		}
		data = append(data, []string{name, mark})
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(c.w, out)
	return nil
}
