package config

import (
	"github.com/wozhendeai/grip-sub002/internal/logger"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Payout   PayoutConfig   `mapstructure:"payout"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 链配置
type ChainConfig struct {
	Network       string `mapstructure:"network"`        // 网络名称 (mainnet, testnet)
	ChainId       int64  `mapstructure:"chain_id"`       // 链ID
	RpcUrl        string `mapstructure:"rpc_url"`        // RPC节点URL
	BackendWallet string `mapstructure:"backend_wallet"` // 后端签名钱包地址
	HSMKey        string `mapstructure:"hsm_key"`        // HSM本地模式私钥（仅测试网）
	Confirmations int    `mapstructure:"confirmations"`  // 确认区块数
	MaxFeePerGas  int64  `mapstructure:"max_fee_per_gas"`
	GasLimit      uint64 `mapstructure:"gas_limit"`
}

// PayoutConfig 支付配置
type PayoutConfig struct {
	// 收款人没有钱包时的兜底策略: claim_link 或 custodial
	FallbackStrategy string `mapstructure:"fallback_strategy"`
	ClaimBaseURL     string `mapstructure:"claim_base_url"`
	ClaimTTLHours    int    `mapstructure:"claim_ttl_hours"`
	// 仓库是否要求 owner 与 funder 双重批准
	RequireOwnerApproval bool `mapstructure:"require_owner_approval"`
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
	PoolSize int `mapstructure:"pool_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

func Load() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/grip")

	// 设置默认值
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "debug")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.dbname", "grip")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("chain.network", "testnet")
	viper.SetDefault("chain.chain_id", 84532)
	viper.SetDefault("chain.confirmations", 12)
	viper.SetDefault("chain.max_fee_per_gas", 2_000_000_000)
	viper.SetDefault("chain.gas_limit", 200_000)
	viper.SetDefault("payout.fallback_strategy", "claim_link")
	viper.SetDefault("payout.claim_ttl_hours", 72)
	viper.SetDefault("task.interval", 60)
	viper.SetDefault("task.pool_size", 8)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.file", "logs/app.log")

	// 自动读取环境变量
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return &config
}
