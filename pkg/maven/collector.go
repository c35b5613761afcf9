package maven

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/jarprobe/pkg/gav"
)

// DefaultParentDepth bounds how many parent POMs are followed.
const DefaultParentDepth = 8

// Collector checks that a coordinate's dependency graph can be collected
// from a repository: its POM, its parent chain and the POMs of its
// explicit-version runtime dependencies must all be served.
//
// Collector satisfies dependency.Checker.
type Collector struct {
	client      *Client
	parentDepth int
	logger      *log.Logger
}

// NewCollector returns a Collector fetching through client.
func NewCollector(client *Client, logger *log.Logger) *Collector {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Collector{client: client, parentDepth: DefaultParentDepth, logger: logger}
}

// Resolvable reports whether co can be collected from repo. Every
// failure to collect is reported as false; the error is reserved for
// cancellation.
func (c *Collector) Resolvable(ctx context.Context, co gav.Coordinate, repo string) (bool, error) {
	if !co.Complete() || repo == "" {
		return false, nil
	}

	pom, ok, err := c.client.POM(ctx, repo, co)
	if err != nil || !ok {
		c.miss(co, repo, "pom", co)
		return false, err
	}

	parent := pom
	for depth := 0; depth < c.parentDepth; depth++ {
		pc := parent.ParentCoordinate()
		if pc.IsZero() {
			break
		}
		if !pc.Complete() {
			c.miss(co, repo, "parent", pc)
			return false, nil
		}
		parent, ok, err = c.client.POM(ctx, repo, pc)
		if err != nil || !ok {
			c.miss(co, repo, "parent", pc)
			return false, err
		}
	}

	for _, dep := range pom.RuntimeDependencies() {
		if _, ok, err := c.client.POM(ctx, repo, dep); err != nil || !ok {
			c.miss(co, repo, "dependency", dep)
			return false, err
		}
	}
	return true, nil
}

func (c *Collector) miss(co gav.Coordinate, repo, what string, at gav.Coordinate) {
	c.logger.Debug("not resolvable", "coordinate", co, "repo", repo, "missing", what, "at", at)
}
