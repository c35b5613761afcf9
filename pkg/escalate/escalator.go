// Package escalate is the interactive surface for records no automated
// strategy could settle.
//
// An [Escalator] shows what is known about one record, reads a single
// [Command] from a line-based input and returns it. Applying the
// command is left to the caller.
package escalate

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/errors"
)

var (
	styleHeading = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	styleLabel   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(8)
	styleValue   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	styleLink    = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Underline(true)
	styleCommand = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Width(10)
	styleDim     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	styleWarning = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

// Escalator prompts on w and reads answers from r. It is used by one
// goroutine at a time.
type Escalator struct {
	in  *bufio.Scanner
	out io.Writer
}

// New returns an Escalator reading r and writing w.
func New(r io.Reader, w io.Writer) *Escalator {
	return &Escalator{in: bufio.NewScanner(r), out: w}
}

// Ask shows rec and returns the first valid command. Unrecognized lines
// and invalid arguments re-prompt. Closed input is an error.
func (e *Escalator) Ask(ctx context.Context, rec *dependency.Record) (Command, error) {
	e.render(rec)
	for {
		if err := ctx.Err(); err != nil {
			return Command{}, err
		}
		fmt.Fprint(e.out, styleHeading.Render("ENTER COMMAND")+" ")
		line, err := e.readLine()
		if err != nil {
			return Command{}, err
		}
		cmd, ok := ParseCommand(line)
		if !ok {
			fmt.Fprintln(e.out, styleWarning.Render("Invalid input."))
			continue
		}
		if cmd.Action.NeedsArgument() && cmd.Arg == "" {
			fmt.Fprint(e.out, styleDim.Render(cmd.Action.ArgumentPrompt()+": "))
			if cmd.Arg, err = e.readLine(); err != nil {
				return Command{}, err
			}
			cmd.Arg = strings.TrimSpace(cmd.Arg)
		}
		if err := ValidateArgument(cmd); err != nil {
			fmt.Fprintln(e.out, styleWarning.Render(errors.UserMessage(err)))
			continue
		}
		return cmd, nil
	}
}

// Notify prints a one-line message between prompts.
func (e *Escalator) Notify(format string, args ...any) {
	fmt.Fprintln(e.out, styleDim.Render(fmt.Sprintf(format, args...)))
}

func (e *Escalator) readLine() (string, error) {
	if e.in.Scan() {
		return e.in.Text(), nil
	}
	if err := e.in.Err(); err != nil {
		return "", errors.Wrap(errors.ErrCodeInvalidInput, err, "read command")
	}
	return "", errors.New(errors.ErrCodeInvalidInput, "input closed while waiting for a command")
}

func (e *Escalator) render(rec *dependency.Record) {
	var b strings.Builder
	b.WriteString("\n" + styleHeading.Render("DETAILS") + "\n")
	row := func(k, v string) {
		b.WriteString("  " + styleLabel.Render(k) + " " + styleValue.Render(v) + "\n")
	}
	row("name", rec.Name())
	row("class", rec.RepresentativePath)
	if !rec.Declared.IsZero() {
		row("declared", rec.Declared.String())
	}
	row("sha1", rec.Hash)

	b.WriteString(styleHeading.Render("CHECK") + "\n")
	for _, link := range Links(rec) {
		b.WriteString("  " + styleLink.Render(link) + "\n")
	}

	b.WriteString(styleHeading.Render("ACTIONS") + "\n")
	for _, a := range []struct {
		cmd, help string
	}{
		{"pub", "keep as public content under a local identity"},
		{"priv", "keep as private content (decompiled, cached as private)"},
		{"pub pre", "add a public class prefix, e.g. io/jmix/"},
		{"priv pre", "add a private class prefix, e.g. com/acme/"},
		{"add repo", "add a repository and retry escalated jars"},
	} {
		b.WriteString("  " + styleCommand.Render(a.cmd) + " " + styleDim.Render(a.help) + "\n")
	}
	fmt.Fprint(e.out, b.String())
}

// Links returns pages a human can use to identify rec.
func Links(rec *dependency.Record) []string {
	var links []string
	if rec.HasDeclared() {
		d := rec.Declared
		links = append(links, fmt.Sprintf("https://mvnrepository.com/artifact/%s/%s/%s", d.Group, d.Artifact, d.Version))
	}
	term := rec.Declared.Artifact
	if term == "" {
		term = strings.TrimSuffix(rec.Name(), ".jar")
	}
	q := url.QueryEscape(term)
	links = append(links,
		"https://mvnrepository.com/search?q="+q,
		"https://central.sonatype.com/search?q=1:"+rec.Hash,
	)
	return links
}
