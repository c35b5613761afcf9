// Package decompile drives an external Java decompiler.
//
// The tool is configured as a command line in which {archive} and {out}
// are replaced by the jar to decompile and the destination directory:
//
//	vineflower --verify-merges=1 {archive} {out}
//	java -jar /opt/vineflower.jar {archive} {out}
//
// A missing tool or a failed run is fatal for the run.
package decompile

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

// DefaultCommand is used when no decompiler is configured.
const DefaultCommand = "vineflower --verify-merges=1 {archive} {out}"

const (
	placeholderArchive = "{archive}"
	placeholderOut     = "{out}"
)

// Decompiler turns an archive into sources under outDir.
type Decompiler interface {
	Decompile(ctx context.Context, archive, outDir string) error
}

// Command runs an external decompiler.
type Command struct {
	argv []string
}

// ParseCommand splits line on whitespace. Both placeholders must be
// present.
func ParseCommand(line string) (*Command, error) {
	if strings.TrimSpace(line) == "" {
		line = DefaultCommand
	}
	argv := strings.Fields(line)
	if !strings.Contains(line, placeholderArchive) || !strings.Contains(line, placeholderOut) {
		return nil, errors.New(errors.ErrCodeInvalidConfig,
			"decompiler command %q must contain %s and %s", line, placeholderArchive, placeholderOut)
	}
	return &Command{argv: argv}, nil
}

// Args returns the expanded argument vector, program first.
func (c *Command) Args(archive, outDir string) []string {
	r := strings.NewReplacer(placeholderArchive, archive, placeholderOut, outDir)
	out := make([]string, len(c.argv))
	for i, a := range c.argv {
		out[i] = r.Replace(a)
	}
	return out
}

// Decompile runs the tool for archive, creating outDir first.
func (c *Command) Decompile(ctx context.Context, archive, outDir string) error {
	bin, err := exec.LookPath(c.argv[0])
	if err != nil {
		return errors.Wrap(errors.ErrCodeToolMissing, err, "decompiler %s not found", c.argv[0])
	}
	if _, err := os.Stat(archive); err != nil {
		return errors.Wrap(errors.ErrCodeArchiveUnreadable, err, "decompile %s", archive)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidPath, err, "create %s", outDir)
	}

	args := c.Args(archive, outDir)
	cmd := exec.CommandContext(ctx, bin, args[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if i := strings.LastIndexByte(msg, '\n'); i >= 0 {
			msg = msg[i+1:]
		}
		return errors.Wrap(errors.ErrCodeInternal, err, "decompile %s: %s", filepath.Base(archive), msg)
	}
	return nil
}

// Job is one archive to decompile.
type Job struct {
	Archive string
	OutDir  string
}

// JobFor places the sources of archive in a directory under root named
// after the archive without its .jar suffix.
func JobFor(root, archive string) Job {
	name := strings.TrimSuffix(filepath.Base(archive), ".jar")
	return Job{Archive: archive, OutDir: filepath.Join(root, name)}
}

// All decompiles jobs with at most limit running at once and stops at
// the first failure.
func All(ctx context.Context, d Decompiler, jobs []Job, limit int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for _, j := range jobs {
		g.Go(func() error { return d.Decompile(ctx, j.Archive, j.OutDir) })
	}
	return g.Wait()
}
