package config

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
	"github.com/ssbcStaker/util"
	"math/big"
	"strings"
	"time"
)

// 环境变量前缀，例如 STAKER_POOL_THRESHOLD 覆盖 pool.threshold
const EnvPrefix = "STAKER"

const (
	BeneficiaryLocal  = "local"
	BeneficiaryRemote = "remote"

	EventMemory  = "memory"
	EventLevelDB = "leveldb"
	EventRedis   = "redis"
)

type Config struct {
	Chain struct {
		ID int64 `mapstructure:"id"`
	} `mapstructure:"chain"`
	Pool struct {
		Threshold string        `mapstructure:"threshold"` // 单位ether
		Duration  time.Duration `mapstructure:"duration"`
	} `mapstructure:"pool"`
	Beneficiary struct {
		Mode    string        `mapstructure:"mode"`
		URL     string        `mapstructure:"url"`
		Listen  string        `mapstructure:"listen"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"beneficiary"`
	Server struct {
		Listen      string `mapstructure:"listen"`
		SSLRedirect bool   `mapstructure:"ssl_redirect"`
		SSLHost     string `mapstructure:"ssl_host"`
	} `mapstructure:"server"`
	Storage struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"storage"`
	Event struct {
		Backend string `mapstructure:"backend"`
	} `mapstructure:"event"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Deploy struct {
		Output string `mapstructure:"output"`
	} `mapstructure:"deploy"`
	Faucet struct {
		Balance string `mapstructure:"balance"` // 单位ether
	} `mapstructure:"faucet"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.id", 31337)
	v.SetDefault("pool.threshold", "1")
	v.SetDefault("pool.duration", "30s")
	v.SetDefault("beneficiary.mode", BeneficiaryLocal)
	v.SetDefault("beneficiary.url", "http://127.0.0.1:8546")
	v.SetDefault("beneficiary.listen", "127.0.0.1:8546")
	v.SetDefault("beneficiary.timeout", "5s")
	v.SetDefault("server.listen", "127.0.0.1:8080")
	v.SetDefault("server.ssl_redirect", false)
	v.SetDefault("server.ssl_host", "localhost:8080")
	v.SetDefault("storage.path", "./data/leveldb")
	v.SetDefault("event.backend", EventLevelDB)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("deploy.output", "./data/deployments.json")
	v.SetDefault("faucet.balance", "10")
	v.SetDefault("log.level", "info")
}

// Load 读取配置文件，path 为空时在 ./config 和当前目录下查找 config.yaml，找不到则只用默认值和环境变量
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config/")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if _, err := c.ThresholdWei(); err != nil {
		return fmt.Errorf("pool.threshold: %w", err)
	}
	if _, err := c.FaucetWei(); err != nil {
		return fmt.Errorf("faucet.balance: %w", err)
	}
	if c.Pool.Duration <= 0 {
		return fmt.Errorf("pool.duration must be positive, got %s", c.Pool.Duration)
	}
	switch c.Beneficiary.Mode {
	case BeneficiaryLocal, BeneficiaryRemote:
	default:
		return fmt.Errorf("unknown beneficiary.mode %q", c.Beneficiary.Mode)
	}
	switch c.Event.Backend {
	case EventMemory, EventLevelDB, EventRedis:
	default:
		return fmt.Errorf("unknown event.backend %q", c.Event.Backend)
	}
	return nil
}

// 阈值（wei）
func (c *Config) ThresholdWei() (*big.Int, error) {
	return util.ParseEther(c.Pool.Threshold)
}

// 注册账户时的初始余额（wei）
func (c *Config) FaucetWei() (*big.Int, error) {
	return util.ParseEther(c.Faucet.Balance)
}
