package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LeonardoBeccarini/feeder/internal/config"
	"github.com/LeonardoBeccarini/feeder/internal/configstore"
	"github.com/LeonardoBeccarini/feeder/internal/services/feeder"
)

var (
	cfgFile  string
	grpcAddr string
)

var rootCmd = &cobra.Command{
	Use:   "feeder",
	Short: "Scheduled pet feeder",
	Long: `Feeder polls a daytime time service, dispenses the configured number of
units once a day at the feeding time and serves a small control API over
HTTP, gRPC and MQTT.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
	rootCmd.PersistentFlags().StringVar(&grpcAddr, "addr", "", "control service address for client commands (default from grpc_addr)")
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

// openStore picks the persistence medium named in the config.
func openStore(cfg *config.Config, opts ...configstore.Option) (*configstore.Store, error) {
	var (
		m   configstore.Medium
		err error
	)
	switch cfg.Store.Medium {
	case config.MediumMemory:
		m = configstore.NewMemoryMedium()
	case config.MediumFile:
		m, err = configstore.NewFileMedium(cfg.Store.Path)
	case config.MediumBadger:
		m, err = configstore.OpenBadgerMedium(cfg.Store.Path)
	default:
		err = fmt.Errorf("unknown store medium %q", cfg.Store.Medium)
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s store: %w", cfg.Store.Medium, err)
	}
	return configstore.New(m, opts...), nil
}

// controlClient dials the running service.
func controlClient() (*feeder.ControlClient, func(), error) {
	addr := grpcAddr
	if addr == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, nil, err
		}
		addr = cfg.GRPCAddr
	}
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	cc, err := feeder.DialControl(addr)
	if err != nil {
		return nil, nil, err
	}
	return feeder.NewControlClient(cc), func() { _ = cc.Close() }, nil
}
