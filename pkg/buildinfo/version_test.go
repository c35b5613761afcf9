package buildinfo

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTemplate(t *testing.T) {
	tmpl := Template()
	assert.True(t, strings.HasPrefix(tmpl, "{{.Name}} version "+Version))
	assert.Contains(t, tmpl, "commit: "+Commit)
}

func TestUserAgent(t *testing.T) {
	assert.Equal(t, "jarprobe/"+Version, UserAgent())
}

func TestString(t *testing.T) {
	assert.Contains(t, String(), "built: "+Date)
}
