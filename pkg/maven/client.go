package maven

import (
	"context"
	"encoding/xml"
	"io"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/matzehuels/jarprobe/pkg/archive"
	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

// DefaultRepository is the central repository base URL.
const DefaultRepository = "https://repo1.maven.org/maven2/"

// maxArtifactBytes bounds a single jar download held in memory.
const maxArtifactBytes = 256 << 20

// Getter issues a GET and returns the response whatever its status. An
// error means the request could not be completed at all.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Client fetches artifacts from repositories laid out in the standard
// repository layout.
//
// All methods are safe for concurrent use by multiple goroutines.
type Client struct {
	get  Getter
	poms *lru.Cache[string, *Project]
}

// NewClient returns a Client that issues requests through get and keeps
// up to pomCache parsed POMs in memory (0 disables the memo).
func NewClient(get Getter, pomCache int) (*Client, error) {
	c := &Client{get: get}
	if pomCache > 0 {
		poms, err := lru.New[string, *Project](pomCache)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidConfig, err, "pom cache")
		}
		c.poms = poms
	}
	return c, nil
}

// Sidecar returns the published SHA-1 of c in repo. ok is false when the
// repository does not answer with 200. Only the first whitespace
// separated field is returned, lowercased, since some repositories
// append the file name.
func (c *Client) Sidecar(ctx context.Context, repo string, co gav.Coordinate) (sum string, ok bool, err error) {
	body, ok, err := c.fetch(ctx, gav.URL(repo, co.SHA1Path()), 4096)
	if err != nil || !ok {
		return "", false, err
	}
	fields := strings.Fields(string(body))
	if len(fields) == 0 {
		return "", false, nil
	}
	return strings.ToLower(fields[0]), true, nil
}

// Entries downloads the jar at url and returns its entry set. ok is false
// on a non-200 answer or an unreadable archive.
func (c *Client) Entries(ctx context.Context, url string) (archive.EntrySet, bool, error) {
	body, ok, err := c.fetch(ctx, url, maxArtifactBytes)
	if err != nil || !ok {
		return nil, false, err
	}
	set, err := archive.Entries(body)
	if err != nil {
		return nil, false, nil
	}
	return set, true, nil
}

// POM fetches and parses the POM of co from repo. ok is false when the
// POM is missing or malformed.
func (c *Client) POM(ctx context.Context, repo string, co gav.Coordinate) (*Project, bool, error) {
	url := gav.URL(repo, co.POMPath())
	if c.poms != nil {
		if p, hit := c.poms.Get(url); hit {
			return p, true, nil
		}
	}

	body, ok, err := c.fetch(ctx, url, 8<<20)
	if err != nil || !ok {
		return nil, false, err
	}
	var p Project
	if err := xml.Unmarshal(body, &p); err != nil {
		return nil, false, nil
	}
	if c.poms != nil {
		c.poms.Add(url, &p)
	}
	return &p, true, nil
}

// fetch returns the body of a 200 answer. Non-200 answers, exhausted
// retries and body read failures mean "could not check this" and are
// reported as ok=false. Only cancellation is returned as an error.
func (c *Client) fetch(ctx context.Context, url string, limit int64) ([]byte, bool, error) {
	resp, err := c.get.Get(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, false, nil
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit))
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, false, nil
	}
	return data, true, nil
}
