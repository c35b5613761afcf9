package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/jarprobe/pkg/errors"
)

// probeCommand creates the probe command.
func (c *CLI) probeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe [url...]",
		Short: "Test the configured egress endpoints",
		Long: `Probe builds the egress pool the way resolve does, prints the endpoints
that passed the liveness and throughput tests, and then reports whether
each given URL is reachable through any of them.`,
		Example: `  jarprobe probe --proxy 10.0.0.1-8:3128,
  jarprobe probe https://nexus.example.com/repository/public/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runProbe(cmd.Context(), args)
		},
	}
	cmd.Flags().String("throughput-url", "", "reference file for the throughput test")
	bindFlags(c.v, cmd.Flags(), map[string]string{"throughput-url": keyThroughputURL})
	return cmd
}

func (c *CLI) runProbe(ctx context.Context, urls []string) error {
	for _, u := range urls {
		if err := errors.ValidateURL(u); err != nil {
			return err
		}
	}

	cfg, err := c.config()
	if err != nil {
		return err
	}
	pool, err := c.newPool(ctx, cfg)
	if err != nil {
		return err
	}
	printSuccess("%d endpoint(s) available", pool.Size())
	renderEndpoints(os.Stdout, pool.Endpoints())

	unreachable := 0
	for _, u := range urls {
		if pool.IsLive(ctx, u) {
			printSuccess("%s", u)
		} else {
			printError("%s", u)
			unreachable++
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if unreachable > 0 {
		return errors.New(errors.ErrCodeNetwork, "%d of %d URL(s) unreachable", unreachable, len(urls))
	}
	return nil
}
