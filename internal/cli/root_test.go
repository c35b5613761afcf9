package cli

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	var names []string
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.Subset(t, names, []string{"resolve", "cache", "probe", "completion"})

	for _, flag := range []string{"config", "proxy", "cache", "min-rate", "metrics-addr"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestCompletionWritesScript(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"completion", "bash", "--cache", "null:"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "jarprobe")
}

func TestResolveRejectsMissingArchive(t *testing.T) {
	err := execute(t, "resolve", "--cache", "null:", "/nonexistent/app.jar")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeFileNotFound))
}

func TestInvalidConfigStopsCommand(t *testing.T) {
	err := execute(t, "cache", "path", "--proxy", "nohost")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidProxy))
}
