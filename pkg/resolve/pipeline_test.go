package resolve

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/cache"
	"github.com/matzehuels/jarprobe/pkg/catalog"
	"github.com/matzehuels/jarprobe/pkg/dependency"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
	"github.com/matzehuels/jarprobe/pkg/maven"
)

type httpGetter struct{ hc *http.Client }

func (g httpGetter) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	return g.hc.Do(req)
}

type liveness bool

func (l liveness) IsLive(context.Context, string) bool { return bool(l) }

type yes struct{}

func (yes) Resolvable(context.Context, gav.Coordinate, string) (bool, error) { return true, nil }

func jarBytes(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, n := range names {
		w, err := zw.Create(n)
		require.NoError(t, err)
		_, _ = w.Write([]byte(n))
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// fixture is a fake repository plus search index on one server.
type fixture struct {
	srv      *httptest.Server
	files    map[string][]byte
	hashHits []string
	avHits   []string
	requests atomic.Int32
	searches atomic.Int32
	failing  bool
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{files: make(map[string][]byte)}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.requests.Add(1)
		if r.URL.Path == "/search" {
			f.searches.Add(1)
			if f.failing {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			docs := f.avHits
			if strings.HasPrefix(r.URL.Query().Get("q"), "1:") {
				docs = f.hashHits
			}
			_, _ = w.Write([]byte(`{"response":{"docs":[` + strings.Join(docs, ",") + `]}}`))
			return
		}
		body, ok := f.files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fixture) repo(name string) string { return f.srv.URL + "/" + name + "/" }

func (f *fixture) pipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	get := httpGetter{f.srv.Client()}
	client, err := maven.NewClient(get, 0)
	require.NoError(t, err)
	cfg.Repository = client
	cfg.Index = maven.NewSearch(get, f.srv.URL+"/search")
	if cfg.Liveness == nil {
		cfg.Liveness = liveness(true)
	}
	if cfg.DefaultRepository == "" {
		cfg.DefaultRepository = f.repo("central")
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func record(t *testing.T, data []byte, declared gav.Coordinate, rep string, opts dependency.Options) *dependency.Record {
	t.Helper()
	set, err := archive.Entries(data)
	require.NoError(t, err)
	if opts.Checker == nil {
		opts.Checker = yes{}
	}
	info := &archive.Info{Declared: declared, RepresentativePath: rep, Entries: set}
	return dependency.FromInfo(archive.IdentifyBytes(data), "/lib/"+declared.Artifact+".jar", info, opts)
}

var lib = gav.New("org.example", "lib", "1.0")

func TestCheck_PrivatePrefixSkipsNetwork(t *testing.T) {
	f := newFixture(t)
	p := f.pipeline(t, Config{PrivatePrefixes: catalog.NewPrefixes("com/acme/")})
	rec := record(t, jarBytes(t, "com/acme/A.class"), lib, "com/acme/A.class", dependency.Options{})

	out, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForcedPrivate, out)
	assert.False(t, rec.Verified())
	assert.Zero(t, f.requests.Load())
}

func TestCheck_CacheHitMakesNoRequest(t *testing.T) {
	f := newFixture(t)
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	data := jarBytes(t, "org/example/A.class")
	_, err = store.Put(context.Background(), archive.IdentifyBytes(data), cache.Entry{Coordinate: lib, Repository: "https://nexus.example/repo/"})
	require.NoError(t, err)

	repos := catalog.NewRepositories(f.repo("r1"))
	p := f.pipeline(t, Config{Cache: store, Repositories: repos})
	rec := record(t, data, lib, "org/example/A.class", dependency.Options{Cache: store})

	out, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, out)
	assert.Zero(t, f.requests.Load())

	res, ok := rec.Resolved()
	require.True(t, ok)
	assert.Equal(t, "https://nexus.example/repo/", res.Repository)
	assert.True(t, repos.Contains("https://nexus.example/repo/"), "live cached repository is appended")
}

func TestCheck_CachedDeadRepositoryNotAdded(t *testing.T) {
	f := newFixture(t)
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	data := jarBytes(t, "org/example/A.class")
	_, err = store.Put(context.Background(), archive.IdentifyBytes(data), cache.Entry{Coordinate: lib, Repository: "https://dead.example/"})
	require.NoError(t, err)

	repos := catalog.NewRepositories()
	p := f.pipeline(t, Config{Cache: store, Repositories: repos, Liveness: liveness(false)})
	out, err := p.Check(context.Background(), record(t, data, lib, "org/example/A.class", dependency.Options{}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, out)
	assert.Zero(t, repos.Len())
}

func TestCheck_CachedPrivateMarker(t *testing.T) {
	f := newFixture(t)
	store, err := cache.NewFileStore(t.TempDir())
	require.NoError(t, err)
	data := jarBytes(t, "org/example/A.class")
	_, err = store.Put(context.Background(), archive.IdentifyBytes(data), cache.PrivateEntry(lib))
	require.NoError(t, err)

	p := f.pipeline(t, Config{Cache: store})
	out, err := p.Check(context.Background(), record(t, data, lib, "org/example/A.class", dependency.Options{}))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCachedPrivate, out)
}

func TestCheck_SidecarMatch(t *testing.T) {
	f := newFixture(t)
	data := jarBytes(t, "org/example/A.class")
	f.files["/r2/"+lib.SHA1Path()] = []byte(archive.IdentifyBytes(data) + "  lib-1.0.jar\n")

	p := f.pipeline(t, Config{Repositories: catalog.NewRepositories(f.repo("r1"), f.repo("r2"))})
	rec := record(t, data, lib, "org/example/A.class", dependency.Options{})

	out, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, out)
	res, _ := rec.Resolved()
	assert.Equal(t, f.repo("r2"), res.Repository)
	assert.Equal(t, lib, res.Coordinate)
}

func TestCheck_MissingSidecarFallsThroughToDownload(t *testing.T) {
	f := newFixture(t)
	local := jarBytes(t, "META-INF/MANIFEST.MF", "org/example/A.class", "org/example/B.class")
	// rebuilt upstream: same entries, different bytes and manifest
	remote := jarBytes(t, "org/example/B.class", "org/example/A.class", "META-INF/maven/x/pom.properties")
	f.files["/r1/"+lib.JarPath()] = remote

	p := f.pipeline(t, Config{Repositories: catalog.NewRepositories(f.repo("r1"))})
	rec := record(t, local, lib, "org/example/A.class", dependency.Options{})

	out, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, out)
	res, _ := rec.Resolved()
	assert.Equal(t, f.repo("r1"), res.Repository)
}

func TestCheck_PartialOverlapIsNoMatch(t *testing.T) {
	f := newFixture(t)
	f.files["/r1/"+lib.JarPath()] = jarBytes(t, "org/example/A.class")
	p := f.pipeline(t, Config{Repositories: catalog.NewRepositories(f.repo("r1"))})
	rec := record(t, jarBytes(t, "org/example/A.class", "org/example/Extra.class"), lib, "org/example/A.class", dependency.Options{})

	out, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnsettled, out)
	assert.False(t, rec.Verified())
}

func TestCheck_HashSearch(t *testing.T) {
	f := newFixture(t)
	data := jarBytes(t, "org/example/A.class")
	want := gav.New("org.want", "lib", "1.0")
	f.hashHits = []string{`{"g":"org.decoy","a":"lib","v":"1.0"}`, `{"g":"org.want","a":"lib","v":"1.0"}`}
	f.files["/central/"+want.SHA1Path()] = []byte(archive.IdentifyBytes(data))

	p := f.pipeline(t, Config{})
	rec := record(t, data, gav.Coordinate{Artifact: "lib", Version: "1.0"}, "org/example/A.class", dependency.Options{})

	out, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, out)
	res, _ := rec.Resolved()
	assert.Equal(t, want, res.Coordinate)
	assert.Equal(t, f.repo("central"), res.Repository)
}

func TestCheck_ArtifactVersionSearch(t *testing.T) {
	f := newFixture(t)
	data := jarBytes(t, "org/example/A.class")
	want := gav.New("org.want", "lib", "1.0")
	f.avHits = []string{`{"g":"org.want","a":"lib","v":"1.0"}`}
	f.files["/central/"+want.JarPath()] = jarBytes(t, "org/example/A.class", "META-INF/LICENSE")

	p := f.pipeline(t, Config{})
	rec := record(t, data, gav.Coordinate{Artifact: "lib", Version: "1.0"}, "org/example/A.class", dependency.Options{})

	out, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeVerified, out)
	res, _ := rec.Resolved()
	assert.Equal(t, want, res.Coordinate)
}

func TestCheck_CandidateDownloadedOnce(t *testing.T) {
	f := newFixture(t)
	f.avHits = []string{`{"g":"org.want","a":"lib","v":"1.0"}`}
	f.files["/central/"+gav.New("org.want", "lib", "1.0").JarPath()] = jarBytes(t, "other/X.class")
	p := f.pipeline(t, Config{})

	for range 2 {
		rec := record(t, jarBytes(t, "org/example/A.class"), gav.Coordinate{Artifact: "lib", Version: "1.0"}, "org/example/A.class", dependency.Options{})
		out, err := p.Check(context.Background(), rec)
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnsettled, out)
	}
	// two rounds of two searches plus a single download
	assert.Equal(t, int32(5), f.requests.Load())
}

func TestCheck_PublicPrefixSynthesizes(t *testing.T) {
	f := newFixture(t)
	inst := dependency.NewRecordingInstaller()
	p := f.pipeline(t, Config{PublicPrefixes: catalog.NewPrefixes("org/example/")})
	rec := record(t, jarBytes(t, "org/example/A.class"), lib, "org/example/A.class", dependency.Options{Installer: inst})

	out, err := p.Check(context.Background(), rec)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSynthetic, out)
	res, _ := rec.Resolved()
	assert.Equal(t, gav.New(dependency.SyntheticGroup, "lib", "1.0"), res.Coordinate)
	assert.True(t, res.Synthetic())
	assert.Len(t, inst.Records(), 1)
}

func TestCheck_SearchUnavailableIsFatal(t *testing.T) {
	f := newFixture(t)
	f.failing = true
	p := f.pipeline(t, Config{})
	rec := record(t, jarBytes(t, "org/example/A.class"), lib, "org/example/A.class", dependency.Options{})

	_, err := p.Check(context.Background(), rec)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeSearchUnavailable))
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidConfig))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "forced-private", OutcomeForcedPrivate.String())
	assert.Equal(t, "unknown", Outcome(99).String())
}
