package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "slotr",
	Short: "slot routing for sharded key-value clusters",
	Long: `slotr routes commands of a sharded key-value store to the nodes owning
their keys. Configuration is read from flags or from SLOTR_<FLAG> environment
variables (e.g. SLOTR_NATS_URL), .env files are loaded when present.`,
	SilenceUsage:      true,
	PersistentPreRunE: bindConfig,
}

func init() {
	cobra.OnInitialize(initConfig)

	f := rootCmd.PersistentFlags()
	f.String("nats-url", "nats://127.0.0.1:4222", "NATS server URL")
	f.String("subject-prefix", "slotr", "prefix of the per-node NATS subjects")
	f.String("topology-file", "", "static topology description (YAML or JSON)")
	f.String("topology-bucket", "", "JetStream KV bucket holding the topology")
	f.StringSlice("zk-servers", nil, "ZooKeeper servers holding the topology")
	f.String("zk-path", "/slotr/topology", "znode holding the topology")
	f.Duration("timeout", 5*time.Second, "timeout of a single command")
	f.String("log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd, keyslotCmd, routeCmd, execCmd, topologyCmd)
}

func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("slotr")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func bindConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	log, err := newLogger(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	slog.SetDefault(log)
	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})), nil
}
