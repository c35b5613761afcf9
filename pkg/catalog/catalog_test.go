package catalog

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRepositories_NormalizeAndDedupe(t *testing.T) {
	r := NewRepositories("https://repo1.maven.org/maven2", "https://repo1.maven.org/maven2/", " ")

	assert.Equal(t, []string{"https://repo1.maven.org/maven2/"}, r.Snapshot())
	assert.True(t, r.Contains("https://repo1.maven.org/maven2//"))
	assert.True(t, r.Add("https://nexus.acme.com/repo"))
	assert.False(t, r.Add("https://nexus.acme.com/repo/"))
	assert.Equal(t, 2, r.Len())
}

func TestList_SnapshotIsStable(t *testing.T) {
	l := NewList(nil, "a", "b")
	snap := l.Snapshot()
	l.Add("c")
	assert.Equal(t, []string{"a", "b"}, snap)
	assert.Equal(t, []string{"a", "b", "c"}, l.Snapshot())
}

func TestList_ConcurrentAdd(t *testing.T) {
	l := NewList(nil)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				l.Add(fmt.Sprintf("item-%d", i))
				_ = l.Snapshot()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, l.Len())
}

func TestPrefixes_Match(t *testing.T) {
	p := NewPrefixes("com/acme/", "org/internal/")

	got, ok := p.Match("com/acme/util/Strings.class")
	assert.True(t, ok)
	assert.Equal(t, "com/acme/", got)

	_, ok = p.Match("com/acmex/Foo.class")
	assert.False(t, ok)
	_, ok = p.Match("")
	assert.False(t, ok)

	p.Add("com/acmex/")
	_, ok = p.Match("com/acmex/Foo.class")
	assert.True(t, ok)
}
