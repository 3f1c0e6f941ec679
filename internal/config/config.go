package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// 允许建立 websocket 的来源，为空时不限制
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	Phases    PhaseConfig     `mapstructure:"phases"`
	Game      GameConfig      `mapstructure:"game"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Room      RoomConfig      `mapstructure:"room"`
}

// PhaseConfig 各阶段时长，格式如 "30s"
type PhaseConfig struct {
	MafiaIntro time.Duration `mapstructure:"mafia_intro"`
	Mafia      time.Duration `mapstructure:"mafia"`
	Doctor     time.Duration `mapstructure:"doctor"`
	Sheriff    time.Duration `mapstructure:"sheriff"`
	Day        time.Duration `mapstructure:"day"`
	Voting     time.Duration `mapstructure:"voting"`
	Hunter     time.Duration `mapstructure:"hunter"`
}

type GameConfig struct {
	// "overwrite" 或 "reject"
	ResubmitPolicy   string `mapstructure:"resubmit_policy"`
	HostSeesRoles    bool   `mapstructure:"host_sees_roles"`
	AbortOnHostLeave bool   `mapstructure:"abort_on_host_leave"`
	MaxPlayers       int    `mapstructure:"max_players"`
}

type RateLimitConfig struct {
	// 每个 websocket 连接的消息速率
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
	// 每个 IP 的 HTTP 请求速率
	HTTPPerSecond float64 `mapstructure:"http_per_second"`
	HTTPBurst     int     `mapstructure:"http_burst"`
}

type RoomConfig struct {
	// 房间无人连接超过该时长后被回收
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// InitConfig 加载配置，失败时直接退出
func InitConfig() *AppConfig {
	config, err := Load(".")
	if err != nil {
		panic(fmt.Errorf("加载配置失败: %w", err))
	}

	return config
}

// Load reads app_config.json from dir when present. Values can be overridden
// by MAFIA_* environment variables, which are also read from a .env file.
func Load(dir string) (*AppConfig, error) {
	// .env 是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("app_config")
	v.SetConfigType("json")
	v.AddConfigPath(dir)

	v.SetEnvPrefix("MAFIA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var config AppConfig

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")
	v.SetDefault("allowed_origins", []string{})

	v.SetDefault("phases.mafia_intro", "5s")
	v.SetDefault("phases.mafia", "30s")
	v.SetDefault("phases.doctor", "20s")
	v.SetDefault("phases.sheriff", "20s")
	v.SetDefault("phases.day", "60s")
	v.SetDefault("phases.voting", "30s")
	v.SetDefault("phases.hunter", "20s")

	v.SetDefault("game.resubmit_policy", "overwrite")
	v.SetDefault("game.host_sees_roles", false)
	v.SetDefault("game.abort_on_host_leave", false)
	v.SetDefault("game.max_players", 20)

	v.SetDefault("rate_limit.messages_per_second", 5)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.http_per_second", 5)
	v.SetDefault("rate_limit.http_burst", 30)

	v.SetDefault("room.idle_timeout", "30m")
	v.SetDefault("room.cleanup_interval", "1m")
}

// Validate 返回所有不合法的配置项
func (c *AppConfig) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port 超出范围: %d", c.Port))
	}

	phases := map[string]time.Duration{
		"mafia_intro": c.Phases.MafiaIntro,
		"mafia":       c.Phases.Mafia,
		"doctor":      c.Phases.Doctor,
		"sheriff":     c.Phases.Sheriff,
		"day":         c.Phases.Day,
		"voting":      c.Phases.Voting,
		"hunter":      c.Phases.Hunter,
	}
	for name, d := range phases {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("phases.%s 必须大于 0", name))
		}
	}

	switch c.Game.ResubmitPolicy {
	case "overwrite", "reject":
	default:
		errs = append(errs, fmt.Errorf("game.resubmit_policy 不支持: %q", c.Game.ResubmitPolicy))
	}

	if c.Game.MaxPlayers < 0 {
		errs = append(errs, fmt.Errorf("game.max_players 不能为负数"))
	}

	if c.RateLimit.MessagesPerSecond <= 0 || c.RateLimit.Burst <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit 的消息速率与突发值必须大于 0"))
	}
	if c.RateLimit.HTTPPerSecond <= 0 || c.RateLimit.HTTPBurst <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit 的 HTTP 速率与突发值必须大于 0"))
	}

	if c.Room.IdleTimeout <= 0 || c.Room.CleanupInterval <= 0 {
		errs = append(errs, fmt.Errorf("room.idle_timeout 与 room.cleanup_interval 必须大于 0"))
	}

	return errors.Join(errs...)
}

func (c *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
