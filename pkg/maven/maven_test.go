package maven

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

type httpGetter struct{ hc *http.Client }

func (g httpGetter) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return g.hc.Do(req)
}

func newRepo(t *testing.T, files map[string]string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		body, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func newClient(t *testing.T, srv *httptest.Server, memo int) *Client {
	t.Helper()
	c, err := NewClient(httpGetter{srv.Client()}, memo)
	require.NoError(t, err)
	return c
}

func pom(g, a, v string, inner string) string {
	return fmt.Sprintf(`<?xml version="1.0"?>
<project>
  <groupId>%s</groupId>
  <artifactId>%s</artifactId>
  <version>%s</version>
  %s
</project>`, g, a, v, inner)
}

func TestClient_Sidecar(t *testing.T) {
	co := gav.New("org.example", "lib", "1.0")
	srv, _ := newRepo(t, map[string]string{
		"/repo/org/example/lib/1.0/lib-1.0.jar.sha1": "ABCDEF0123  lib-1.0.jar\n",
	})
	c := newClient(t, srv, 0)

	sum, ok, err := c.Sidecar(context.Background(), srv.URL+"/repo/", co)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abcdef0123", sum)

	_, ok, err = c.Sidecar(context.Background(), srv.URL+"/other/", co)
	require.NoError(t, err)
	assert.False(t, ok, "404 is a soft miss")
}

func TestClient_Entries(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range []string{"META-INF/MANIFEST.MF", "a/B.class", "a/c.txt"} {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, _ = w.Write([]byte("x"))
	}
	require.NoError(t, zw.Close())

	srv, _ := newRepo(t, map[string]string{"/lib.jar": buf.String(), "/junk.jar": "not a zip"})
	c := newClient(t, srv, 0)

	set, ok, err := c.Entries(context.Background(), srv.URL+"/lib.jar")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, set, 2)

	_, ok, err = c.Entries(context.Background(), srv.URL+"/junk.jar")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_POMMemo(t *testing.T) {
	co := gav.New("org.example", "lib", "1.0")
	srv, hits := newRepo(t, map[string]string{
		"/org/example/lib/1.0/lib-1.0.pom": pom("org.example", "lib", "1.0", ""),
	})
	c := newClient(t, srv, 16)

	for range 3 {
		p, ok, err := c.POM(context.Background(), srv.URL, co)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, co, p.Coordinate())
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestClient_Cancelled(t *testing.T) {
	srv, _ := newRepo(t, nil)
	c := newClient(t, srv, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := c.Sidecar(ctx, srv.URL, gav.New("g", "a", "1"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_ByHash(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		assert.Equal(t, "20", r.URL.Query().Get("rows"))
		_, _ = w.Write([]byte(`{"response":{"numFound":2,"docs":[
			{"g":"org.example","a":"lib","v":"1.0"},
			{"g":"","a":"broken","v":"1.0"}]}}`))
	}))
	defer srv.Close()

	s := NewSearch(httpGetter{srv.Client()}, srv.URL+"/solrsearch/select")
	got, err := s.ByHash(context.Background(), "deadbeef")
	require.NoError(t, err)
	assert.Equal(t, "1:deadbeef", gotQuery)
	assert.Equal(t, []gav.Coordinate{gav.New("org.example", "lib", "1.0")}, got)
}

func TestSearch_ByArtifactVersion(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		_, _ = w.Write([]byte(`{"response":{"numFound":0,"docs":[]}}`))
	}))
	defer srv.Close()

	got, err := NewSearch(httpGetter{srv.Client()}, srv.URL).ByArtifactVersion(context.Background(), "lib", "1.0")
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, "a:lib AND v:1.0", gotQuery)
}

func TestSearch_UnavailableIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewSearch(httpGetter{srv.Client()}, srv.URL).ByHash(context.Background(), "x")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSearchUnavailable))
	assert.True(t, errors.IsFatal(err))
}

func TestCollector_Resolvable(t *testing.T) {
	files := map[string]string{
		"/org/example/lib/1.0/lib-1.0.pom": pom("org.example", "lib", "1.0", `
  <parent><groupId>org.example</groupId><artifactId>parent</artifactId><version>3</version></parent>
  <properties><dep.version>2.1</dep.version></properties>
  <dependencies>
    <dependency><groupId>org.dep</groupId><artifactId>dep</artifactId><version>${dep.version}</version></dependency>
    <dependency><groupId>org.managed</groupId><artifactId>managed</artifactId></dependency>
    <dependency><groupId>junit</groupId><artifactId>junit</artifactId><version>4.13</version><scope>test</scope></dependency>
  </dependencies>`),
		"/org/example/parent/3/parent-3.pom": pom("org.example", "parent", "3", ""),
		"/org/dep/dep/2.1/dep-2.1.pom":       pom("org.dep", "dep", "2.1", ""),
	}
	srv, _ := newRepo(t, files)
	col := NewCollector(newClient(t, srv, 0), nil)

	ok, err := col.Resolvable(context.Background(), gav.New("org.example", "lib", "1.0"), srv.URL+"/")
	require.NoError(t, err)
	assert.True(t, ok)

	delete(files, "/org/dep/dep/2.1/dep-2.1.pom")
	ok, err = col.Resolvable(context.Background(), gav.New("org.example", "lib", "1.0"), srv.URL+"/")
	require.NoError(t, err)
	assert.False(t, ok, "missing dependency pom")

	ok, err = col.Resolvable(context.Background(), gav.New("org.example", "absent", "1.0"), srv.URL+"/")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProject_RuntimeDependencies(t *testing.T) {
	var p Project
	require.NoError(t, xml.Unmarshal([]byte(pom("g", "a", "1.5", `
  <dependencies>
    <dependency><groupId>${project.groupId}</groupId><artifactId>sibling</artifactId><version>${project.version}</version></dependency>
    <dependency><groupId>x</groupId><artifactId>rt</artifactId><version>1</version><scope>runtime</scope></dependency>
    <dependency><groupId>x</groupId><artifactId>prov</artifactId><version>1</version><scope>provided</scope></dependency>
    <dependency><groupId>x</groupId><artifactId>opt</artifactId><version>1</version><optional>true</optional></dependency>
    <dependency><groupId>x</groupId><artifactId>bom</artifactId><version>1</version><type>pom</type></dependency>
    <dependency><groupId>x</groupId><artifactId>range</artifactId><version>[1,2)</version></dependency>
    <dependency><groupId>x</groupId><artifactId>unknown</artifactId><version>${nope}</version></dependency>
  </dependencies>`)), &p))

	assert.Equal(t, []gav.Coordinate{
		gav.New("g", "sibling", "1.5"),
		gav.New("x", "rt", "1"),
	}, p.RuntimeDependencies())
}

func TestProject_InheritsFromParent(t *testing.T) {
	var p Project
	require.NoError(t, xml.Unmarshal([]byte(`<project>
  <parent><groupId>org.p</groupId><artifactId>p</artifactId><version>9</version></parent>
  <artifactId>child</artifactId>
</project>`), &p))
	assert.Equal(t, gav.New("org.p", "child", "9"), p.Coordinate())
	assert.Equal(t, gav.New("org.p", "p", "9"), p.ParentCoordinate())
}
