package escalate

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want Command
		ok   bool
	}{
		{"pub", Command{Action: ActionPublic}, true},
		{"  PRIV ", Command{Action: ActionPrivate}, true},
		{"pub pre", Command{Action: ActionPublicPrefix}, true},
		{"Priv  Pre com/acme/", Command{Action: ActionPrivatePrefix, Arg: "com/acme/"}, true},
		{"add repo https://nexus.example/repo/", Command{Action: ActionAddRepository, Arg: "https://nexus.example/repo/"}, true},
		{"add repo", Command{Action: ActionAddRepository}, true},

		{"", Command{}, false},
		{"public", Command{}, false},
		{"pub now", Command{}, false},
		{"priv pre a b", Command{}, false},
		{"add", Command{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, ok := ParseCommand(tt.line)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAction(t *testing.T) {
	assert.Equal(t, "pub pre", ActionPublicPrefix.String())
	assert.Equal(t, "unknown", Action(0).String())
	assert.True(t, ActionAddRepository.NeedsArgument())
	assert.False(t, ActionPublic.NeedsArgument())
	assert.NotEmpty(t, ActionPrivatePrefix.ArgumentPrompt())
}

func TestValidateArgument(t *testing.T) {
	assert.NoError(t, ValidateArgument(Command{Action: ActionPublic}))
	assert.NoError(t, ValidateArgument(Command{Action: ActionPrivatePrefix, Arg: "com/acme/"}))
	assert.Error(t, ValidateArgument(Command{Action: ActionPrivatePrefix, Arg: "/abs"}))
	assert.Error(t, ValidateArgument(Command{Action: ActionAddRepository, Arg: "ftp://x"}))
}

func record() *dependency.Record {
	info := &archive.Info{
		Declared:           gav.New("org.example", "lib", "1.0"),
		RepresentativePath: "org/example/A.class",
	}
	return dependency.FromInfo("0123abcd", "/lib/lib-1.0.jar", info, dependency.Options{})
}

func TestEscalator_Ask(t *testing.T) {
	in := strings.NewReader("what\npriv pre\n/bad\npriv pre\ncom/acme/\n")
	var out bytes.Buffer
	e := New(in, &out)

	cmd, err := e.Ask(context.Background(), record())
	require.NoError(t, err)
	assert.Equal(t, Command{Action: ActionPrivatePrefix, Arg: "com/acme/"}, cmd)

	text := out.String()
	assert.Contains(t, text, "lib-1.0.jar")
	assert.Contains(t, text, "org/example/A.class")
	assert.Contains(t, text, "Invalid input.")
	assert.Contains(t, text, "https://mvnrepository.com/artifact/org.example/lib/1.0")
}

func TestEscalator_SuccessiveAsksShareInput(t *testing.T) {
	e := New(strings.NewReader("pub\nadd repo https://nexus.example/\n"), &bytes.Buffer{})

	first, err := e.Ask(context.Background(), record())
	require.NoError(t, err)
	assert.Equal(t, ActionPublic, first.Action)

	second, err := e.Ask(context.Background(), record())
	require.NoError(t, err)
	assert.Equal(t, Command{Action: ActionAddRepository, Arg: "https://nexus.example/"}, second)
}

func TestEscalator_ClosedInput(t *testing.T) {
	e := New(strings.NewReader("nonsense\n"), &bytes.Buffer{})
	_, err := e.Ask(context.Background(), record())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidInput))
}

func TestEscalator_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(strings.NewReader("pub\n"), &bytes.Buffer{}).Ask(ctx, record())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinks_WithoutDeclared(t *testing.T) {
	rec := dependency.FromInfo("ff", "/lib/mystery.jar", &archive.Info{}, dependency.Options{})
	links := Links(rec)
	require.Len(t, links, 2)
	assert.Equal(t, "https://mvnrepository.com/search?q=mystery", links[0])
	assert.Contains(t, links[1], "1:ff")
}
