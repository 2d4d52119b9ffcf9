package main

import (
	"fmt"
	"github.com/cloudflare/cfssl/log"
	"github.com/spf13/cobra"
	"github.com/ssbcStaker/config"
	"os"
	"strings"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "staker",
		Short:         "time-boxed pooled staking node",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default ./config/config.yaml)")
	root.AddCommand(serveCmd(), deployCmd(), beneficiaryCmd())
	return root
}

// 读取配置并设置日志级别
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	level, err := parseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	log.Level = level
	return cfg, nil
}

func parseLevel(s string) (int, error) {
	switch strings.ToLower(s) {
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warning", "warn":
		return log.LevelWarning, nil
	case "error":
		return log.LevelError, nil
	case "critical":
		return log.LevelCritical, nil
	}
	return 0, fmt.Errorf("unknown log.level %q", s)
}
