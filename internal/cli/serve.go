package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/restoretrace/pkg/stubserver"
)

// serveCommand creates the serve command.
func (c *CLI) serveCommand() *cobra.Command {
	var (
		addr      string
		latency   time.Duration
		synthetic bool
		apiKey    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory feed to replay against",
		Long: `Serve a minimal NuGet v3 feed from memory.

The feed answers service index, flat container and push requests. With
--synthetic (the default) every well-formed package URL succeeds, so any
captured graph can be replayed against it. --latency delays every response.`,
		Example: `  restoretrace serve --addr :8080 --latency 20ms
  restoretrace replay-request-graph restore.json --target http://localhost:8080/v3-flatcontainer`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if !flags.Changed("addr") {
				addr = cfg.Stub.Addr
			}
			if !flags.Changed("latency") {
				latency = cfg.Stub.Latency.Duration
			}
			if !flags.Changed("synthetic") {
				synthetic = cfg.Stub.Synthetic
			}
			if !flags.Changed("api-key") {
				apiKey = cfg.Stub.APIKey
			}

			srv := stubserver.New(stubserver.Config{
				Latency:   latency,
				Synthetic: synthetic,
				APIKey:    apiKey,
				Logger:    c.Logger,
			})
			err = srv.ListenAndServe(cmd.Context(), addr)
			c.Logger.Info("stub feed stopped", "requests", srv.Requests())
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().DurationVar(&latency, "latency", 0, "delay added to every response")
	cmd.Flags().BoolVar(&synthetic, "synthetic", true, "serve unknown packages")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "require this API key on pushes")
	return cmd
}
