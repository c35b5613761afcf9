package maven

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/matzehuels/jarprobe/pkg/errors"
	"github.com/matzehuels/jarprobe/pkg/gav"
)

// DefaultSearchURL is the central search index endpoint.
const DefaultSearchURL = "https://central.sonatype.com/solrsearch/select"

// searchRows caps the candidates returned per query.
const searchRows = 20

// Search queries the central search index.
type Search struct {
	get     Getter
	baseURL string
}

// NewSearch returns a Search against baseURL (DefaultSearchURL if empty).
func NewSearch(get Getter, baseURL string) *Search {
	if baseURL == "" {
		baseURL = DefaultSearchURL
	}
	return &Search{get: get, baseURL: baseURL}
}

// ByHash returns the coordinates whose published artifact has the given
// SHA-1.
func (s *Search) ByHash(ctx context.Context, sha1 string) ([]gav.Coordinate, error) {
	return s.query(ctx, "1:"+sha1)
}

// ByArtifactVersion returns the coordinates published under artifact
// and version in any group.
func (s *Search) ByArtifactVersion(ctx context.Context, artifact, version string) ([]gav.Coordinate, error) {
	return s.query(ctx, fmt.Sprintf("a:%s AND v:%s", artifact, version))
}

func (s *Search) query(ctx context.Context, q string) ([]gav.Coordinate, error) {
	u := fmt.Sprintf("%s?q=%s&rows=%d&wt=json", s.baseURL, url.QueryEscape(q), searchRows)

	resp, err := s.get.Get(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeSearchUnavailable, err, "search %q", q)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, errors.New(errors.ErrCodeSearchUnavailable, "search %q returned %d", q, resp.StatusCode)
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(errors.ErrCodeSearchUnavailable, err, "decode search %q", q)
	}

	out := make([]gav.Coordinate, 0, len(sr.Response.Docs))
	for _, d := range sr.Response.Docs {
		c := gav.New(strings.TrimSpace(d.GroupID), strings.TrimSpace(d.ArtifactID), strings.TrimSpace(d.Version))
		if c.Complete() {
			out = append(out, c)
		}
	}
	return out, nil
}

type searchResponse struct {
	Response struct {
		NumFound int         `json:"numFound"`
		Docs     []searchDoc `json:"docs"`
	} `json:"response"`
}

type searchDoc struct {
	GroupID    string `json:"g"`
	ArtifactID string `json:"a"`
	Version    string `json:"v"`
}
