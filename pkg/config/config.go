package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	App     AppConfig      `mapstructure:"app"`
	MySQL   MySQLConfig    `mapstructure:"mysql"`
	Flexo   FlexoConfig    `mapstructure:"flexo"`
	Redis   RedisConfig    `mapstructure:"redis"`
	Lmstfy  LmstfyConfig   `mapstructure:"lmstfy"`
	Sweep   SweepConfig    `mapstructure:"sweep"`
	Workers []WorkerConfig `mapstructure:"workers"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// MySQLConfig 本地订单库（uploaded_orders / upload_tasks）配置
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// FlexoConfig 外部履约系统（Flexo，SQL Server）配置
type FlexoConfig struct {
	DSN          string        `mapstructure:"dsn"`
	ChunkSize    int           `mapstructure:"chunk_size"`    // 单次查询的订单号上限
	ChunkTimeout time.Duration `mapstructure:"chunk_timeout"` // 单个 chunk 的看门狗超时
}

// RedisConfig Redis 配置（任务状态缓存 + 完成通知）
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TaskTTL  time.Duration `mapstructure:"task_ttl"` // 任务状态缓存 TTL
}

// LmstfyConfig Lmstfy 配置
type LmstfyConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Namespace string `mapstructure:"namespace"`
	Token     string `mapstructure:"token"`
}

// SweepConfig 上传清洗业务配置
type SweepConfig struct {
	WorkspaceRoot string        `mapstructure:"workspace_root"` // JobGetOrder 工作区根目录
	CleanupAge    time.Duration `mapstructure:"cleanup_age"`    // 工作区文件保留时长
	NotifyChannel string        `mapstructure:"notify_channel"` // 完成通知的 pubsub 频道
	// 店铺 Key 查找表：marketplace（小写）→ brand（大写）→ shop key
	ShopKeys map[string]map[string]string `mapstructure:"shop_keys"`
}

// WorkerConfig Worker 配置
type WorkerConfig struct {
	Name          string           `mapstructure:"name"`
	QueueName     string           `mapstructure:"queue_name"`
	CallbackQueue string           `mapstructure:"callback_queue"` // 回调队列名称
	Subscriber    SubscriberConfig `mapstructure:"subscriber"`
	Processor     ProcessorConfig  `mapstructure:"processor"`
}

// SubscriberConfig Subscriber 配置
type SubscriberConfig struct {
	Threads      int           `mapstructure:"threads"`       // 并发拉取数
	Rate         time.Duration `mapstructure:"rate"`          // 拉取速率
	Timeout      time.Duration `mapstructure:"timeout"`       // 拉取超时
	TTR          time.Duration `mapstructure:"ttr"`           // Time-To-Run
	ErrorBackoff time.Duration `mapstructure:"error_backoff"` // 错误退避时间
}

// ProcessorConfig Processor 配置
type ProcessorConfig struct {
	Threads    int           `mapstructure:"threads"`     // 并发处理数
	BufferSize int           `mapstructure:"buffer_size"` // Channel 缓冲大小
	Timeout    time.Duration `mapstructure:"timeout"`     // 单个任务超时
}

// Load 加载配置文件
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config failed: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults 填充缺省值
func (c *Config) applyDefaults() {
	if c.Flexo.ChunkSize <= 0 {
		c.Flexo.ChunkSize = 100
	}
	if c.Flexo.ChunkTimeout <= 0 {
		c.Flexo.ChunkTimeout = 30 * time.Second
	}
	if c.Redis.TaskTTL <= 0 {
		c.Redis.TaskTTL = 24 * time.Hour
	}
	if c.Sweep.CleanupAge <= 0 {
		c.Sweep.CleanupAge = 24 * time.Hour
	}
	if c.Sweep.NotifyChannel == "" {
		c.Sweep.NotifyChannel = "order_sweep_complete"
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	if c.MySQL.DSN == "" {
		return fmt.Errorf("mysql.dsn is required")
	}
	if c.Lmstfy.Host == "" {
		return fmt.Errorf("lmstfy.host is required")
	}
	if c.Sweep.WorkspaceRoot == "" {
		return fmt.Errorf("sweep.workspace_root is required")
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("at least one worker is required")
	}
	return nil
}
