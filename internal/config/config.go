package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Client ClientConfig `mapstructure:"client"`
	Store  StoreConfig  `mapstructure:"store"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	StaticDir      string   `mapstructure:"static_dir"`
	AllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	// Addr 由 Port 推导得出。
	Addr string `mapstructure:"-"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ClientConfig 描述聊天客户端访问回复服务的方式。
type ClientConfig struct {
	ReplyURL     string        `mapstructure:"reply_url"`
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`
}

// StoreConfig 选择会话历史的持久化后端。
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// 配置键与环境变量的对应关系。
var envBindings = map[string]string{
	"server.port":                 "PORT",
	"server.static_dir":           "STATIC_DIR",
	"server.cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
	"client.reply_url":            "REPLY_URL",
	"client.reply_timeout":        "REPLY_TIMEOUT",
	"store.driver":                "STORE_DRIVER",
	"store.dsn":                   "STORE_DSN",
}

// Load 依次读取默认值、可选的配置文件（CONFIG_FILE）、环境变量和命令行参数。
// flags 中的参数名取配置键的最后一段并以连字符分隔，例如 --reply-url；可以为 nil。
func Load(flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", "3000")
	v.SetDefault("server.static_dir", "./public")
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("client.reply_url", "http://localhost:3000")
	v.SetDefault("client.reply_timeout", "2500ms")
	v.SetDefault("store.driver", "file")
	v.SetDefault("store.dsn", defaultStoreDir())

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	if flags != nil {
		for key := range envBindings {
			name := strings.ReplaceAll(key[strings.LastIndex(key, ".")+1:], "_", "-")
			if flag := flags.Lookup(name); flag != nil {
				if err := v.BindPFlag(key, flag); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// 去掉逗号分隔列表中的空白与空项。
	cfg.Server.AllowedOrigins = splitList(cfg.Server.AllowedOrigins)

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if cfg.Client.ReplyTimeout <= 0 {
		return nil, fmt.Errorf("invalid REPLY_TIMEOUT value %q", v.GetString("client.reply_timeout"))
	}

	return &cfg, nil
}

// listenAddr 解析服务器监听地址。
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "3000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func defaultStoreDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".calm-companion"
	}
	return filepath.Join(home, ".calm-companion")
}
