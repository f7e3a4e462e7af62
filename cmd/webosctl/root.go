package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-webos/internal/bridges/webos"
	"github.com/nerrad567/gray-logic-webos/internal/discovery/ssdp"
	"github.com/nerrad567/gray-logic-webos/internal/infrastructure/config"
)

// finder is the part of *ssdp.Listener the discover command drives.
type finder interface {
	Start(ctx context.Context) error
	Stop()
	Devices() []ssdp.Device
}

// cli carries the collaborators commands use, so tests can swap them.
type cli struct {
	dialer    webos.Dialer
	newFinder func(cfg ssdp.Config) finder

	// Global flags
	cfgFile string
	device  string
	address string
	port    int
	secure  bool
	key     string
	timeout time.Duration

	cfg *config.Config
}

func defaultCLI() *cli {
	return &cli{
		dialer: &webos.WSDialer{},
		newFinder: func(cfg ssdp.Config) finder {
			return ssdp.NewListener(cfg)
		},
	}
}

// newRootCmd builds the command tree around c.
func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "webosctl",
		Short: "Discover and control LG webOS televisions",
		Long: `webosctl talks to LG webOS televisions over their second-screen
WebSocket API. Commands that reach a television print any client key the
television issues so it can be stored in the bridge configuration.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if c.cfgFile == "" {
				c.cfg = config.Default()
				return nil
			}
			cfg, err := config.Load(c.cfgFile)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			c.cfg = cfg
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&c.cfgFile, "config", "", "bridge config file; supplies session timeouts, --device entries and the pairing database")
	flags.StringVar(&c.device, "device", "", "television id from the config file")
	flags.StringVar(&c.address, "address", "", "television IP address or host name")
	flags.IntVar(&c.port, "port", 0, "television port (default 3000, 3001 with --secure)")
	flags.BoolVar(&c.secure, "secure", false, "use wss:// with the television's self-signed certificate")
	flags.StringVar(&c.key, "key", "", "client key from an earlier pairing; empty shows the pairing prompt")
	flags.DurationVar(&c.timeout, "timeout", 10*time.Second, "overall deadline for the command")

	root.AddCommand(newDiscoverCmd(c))
	root.AddCommand(newRequestCmd(c))
	root.AddCommand(newToastCmd(c))
	root.AddCommand(newVolumeCmd(c))
	root.AddCommand(newPairedCmd(c))
	root.AddCommand(newUnpairCmd(c))

	return root
}
