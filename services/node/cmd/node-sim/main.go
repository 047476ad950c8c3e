// Command node-sim runs the node core against a simulated board.
//
//	node-sim profile > sim.yaml
//	node-sim run -p sim.yaml
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := buildCLI().Execute(); err != nil {
		os.Exit(1)
	}
}

func buildCLI() *cobra.Command {
	var jsonLogs bool
	root := &cobra.Command{
		Use:          "node-sim",
		Short:        "Run the sensor node core on a simulated board",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&jsonLogs, "json", false, "log as JSON")
	root.AddCommand(buildRunCommand(&jsonLogs))
	root.AddCommand(buildProfileCommand())
	return root
}

func buildRunCommand(jsonLogs *bool) *cobra.Command {
	var path string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the node and play a stimulus profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(*jsonLogs)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			p := DefaultProfile()
			if path != "" {
				if p, err = loadProfile(path); err != nil {
					return err
				}
			}
			if duration > 0 {
				p.Duration = duration
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log.Info("starting", zap.Duration("duration", p.Duration), zap.Int("steps", len(p.Script)))
			res, err := simulate(ctx, log, p)
			if err != nil {
				log.Error("node halted", zap.Error(err))
				return err
			}
			log.Info("finished",
				zap.Uint32("pumps", res.Node.Pumps),
				zap.Uint32("idles", res.Node.Idles),
				zap.Uint32("line_fires", res.Node.LineFires),
				zap.Uint32("serviced", res.Node.Serviced),
				zap.Uint32("spurious", res.Node.Spurious),
				zap.Uint32("radio_forwards", res.Node.RadioForwards),
				zap.Uint32("serial_drops", res.Node.SerialDrops),
				zap.Uint32("beats", res.Beats),
				zap.Uint32("ticks", res.Ticks),
				zap.Uint32("wd_refreshes", res.Watchdog.Refreshes),
				zap.Uint32("wd_bites", res.Watchdog.Bites),
			)
			return nil
		},
	}
	cmd.Flags().StringVarP(&path, "profile", "p", "", "YAML profile (default: built-in)")
	cmd.Flags().DurationVarP(&duration, "duration", "d", 0, "override the profile duration")
	return cmd
}

func buildProfileCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print the built-in profile as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := yaml.Marshal(DefaultProfile())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}

func newLogger(jsonLogs bool) (*zap.Logger, error) {
	if jsonLogs {
		return zap.NewProduction()
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}
