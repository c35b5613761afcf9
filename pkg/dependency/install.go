package dependency

import (
	"context"
	"os/exec"
	"sync"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

// RecordingInstaller remembers installed records for the hand-off
// manifest.
type RecordingInstaller struct {
	mu      sync.Mutex
	records []*Record
}

// NewRecordingInstaller returns an empty RecordingInstaller.
func NewRecordingInstaller() *RecordingInstaller {
	return &RecordingInstaller{}
}

// Install records r.
func (i *RecordingInstaller) Install(_ context.Context, r *Record) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.records = append(i.records, r)
	return nil
}

// Records returns the installed records in install order.
func (i *RecordingInstaller) Records() []*Record {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]*Record, len(i.records))
	copy(out, i.records)
	return out
}

// CommandInstaller installs records into the local Maven repository with
// "mvn install:install-file" and then forwards them to Next.
type CommandInstaller struct {
	// Binary defaults to "mvn".
	Binary string
	Next   Installer
}

// Install runs the install command for r.
func (i *CommandInstaller) Install(ctx context.Context, r *Record) error {
	bin := i.Binary
	if bin == "" {
		bin = "mvn"
	}
	path, err := exec.LookPath(bin)
	if err != nil {
		return errors.Wrap(errors.ErrCodeToolMissing, err, "%s not found", bin)
	}

	res, _ := r.Resolved()
	cmd := exec.CommandContext(ctx, path, InstallArgs(r.Path, res)...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "install %s: %s", r.Name(), lastLine(out))
	}
	if i.Next != nil {
		return i.Next.Install(ctx, r)
	}
	return nil
}

// InstallArgs returns the arguments for installing file under res.
func InstallArgs(file string, res Resolution) []string {
	return []string{
		"-q",
		"install:install-file",
		"-Dfile=" + file,
		"-DgroupId=" + res.Coordinate.Group,
		"-DartifactId=" + res.Coordinate.Artifact,
		"-Dversion=" + res.Coordinate.Version,
		"-Dpackaging=jar",
	}
}

func lastLine(out []byte) string {
	end := len(out)
	for end > 0 && (out[end-1] == '\n' || out[end-1] == '\r') {
		end--
	}
	start := end
	for start > 0 && out[start-1] != '\n' {
		start--
	}
	return string(out[start:end])
}
