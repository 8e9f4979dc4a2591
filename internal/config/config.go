package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// 默认值
const (
	defaultHost           = "0.0.0.0"
	defaultPort           = 1780
	defaultMaxConnections = 2000
	defaultCodec          = "json"
	defaultRedisAddr      = "localhost:6379"

	defaultRoomTimeout           = 10   // 分钟
	defaultFinishedRoomTTL       = 30   // 分钟
	defaultRoundDelay            = 3000 // 毫秒
	defaultDisconnectTimeout     = 300  // 秒
	defaultMessageLimit          = 50
	defaultShutdownTimeout       = 30 // 分钟
	defaultShutdownCheckInterval = 10 // 秒
	defaultRoomCleanupDelay      = 10 // 秒

	defaultRatePerSecond    = 10
	defaultRatePerMinute    = 60
	defaultBanDuration      = 60 // 秒
	defaultMessagePerSecond = 20
	defaultChatPerSecond    = 1
	defaultChatPerMinute    = 20
	defaultChatCooldown     = 5 // 秒

	defaultLogLevel     = "info"
	defaultLogMaxSizeMB = 10
)

// envPrefix 环境变量前缀，例如 TREASURE_SERVER_PORT
const envPrefix = "TREASURE"

// Config 服务端配置
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Game     GameConfig     `yaml:"game"`
	Security SecurityConfig `yaml:"security"`
	Storage  StorageConfig  `yaml:"storage"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig WebSocket 服务器配置
type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	MaxConnections int    `yaml:"max_connections"`
	Codec          string `yaml:"codec"`      // json / proto
	PublicURL      string `yaml:"public_url"` // 二维码中的加入链接前缀，为空时按请求推断
}

// RedisConfig Redis 配置，未启用时不镜像房间也不记录排行榜
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// GameConfig 游戏配置
type GameConfig struct {
	RoomTimeout           int  `yaml:"room_timeout"`            // 等待中房间超时（分钟）
	FinishedRoomTTL       int  `yaml:"finished_room_ttl"`       // 已结束房间保留时长（分钟）
	RoundDelay            int  `yaml:"round_delay"`             // 回合结算延迟（毫秒）
	DisconnectTimeout     int  `yaml:"disconnect_timeout"`      // 断线保留座位时长（秒）
	MessageLimit          int  `yaml:"message_limit"`           // newMessage 携带的最近消息数
	ConcealHands          bool `yaml:"conceal_hands"`           // 隐藏他人未翻开的牌和阵营
	ShutdownTimeout       int  `yaml:"shutdown_timeout"`        // 优雅关闭最长等待（分钟）
	ShutdownCheckInterval int  `yaml:"shutdown_check_interval"` // 优雅关闭检查间隔（秒）
	RoomCleanupDelay      int  `yaml:"room_cleanup_delay"`      // 通知后延迟关闭（秒）
}

// RoomTimeoutDuration 返回房间等待超时时长
func (c *GameConfig) RoomTimeoutDuration() time.Duration {
	return time.Duration(c.RoomTimeout) * time.Minute
}

// FinishedRoomTTLDuration 返回已结束房间的保留时长
func (c *GameConfig) FinishedRoomTTLDuration() time.Duration {
	return time.Duration(c.FinishedRoomTTL) * time.Minute
}

// RoundDelayDuration 返回回合结算延迟
func (c *GameConfig) RoundDelayDuration() time.Duration {
	return time.Duration(c.RoundDelay) * time.Millisecond
}

// DisconnectTimeoutDuration 返回断线超时时长
func (c *GameConfig) DisconnectTimeoutDuration() time.Duration {
	return time.Duration(c.DisconnectTimeout) * time.Second
}

// ShutdownTimeoutDuration 返回优雅关闭超时时长
func (c *GameConfig) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.ShutdownTimeout) * time.Minute
}

// ShutdownCheckIntervalDuration 返回优雅关闭检查间隔
func (c *GameConfig) ShutdownCheckIntervalDuration() time.Duration {
	return time.Duration(c.ShutdownCheckInterval) * time.Second
}

// RoomCleanupDelayDuration 返回关闭前的延迟
func (c *GameConfig) RoomCleanupDelayDuration() time.Duration {
	return time.Duration(c.RoomCleanupDelay) * time.Second
}

// SecurityConfig 安全配置
type SecurityConfig struct {
	AllowedOrigins []string           `yaml:"allowed_origins"`
	IPWhitelist    []string           `yaml:"ip_whitelist"` // 单个 IP 或 CIDR，非空时只放行名单内地址
	IPBlacklist    []string           `yaml:"ip_blacklist"`
	RateLimit      RateLimitConfig    `yaml:"rate_limit"`
	MessageLimit   MessageLimitConfig `yaml:"message_limit"`
	ChatLimit      ChatLimitConfig    `yaml:"chat_limit"`
}

// RateLimitConfig 连接速率限制（按 IP）
type RateLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
	MaxPerMinute int `yaml:"max_per_minute"`
	BanDuration  int `yaml:"ban_duration"` // 秒
}

// BanDurationTime 返回封禁时长
func (c *RateLimitConfig) BanDurationTime() time.Duration {
	return time.Duration(c.BanDuration) * time.Second
}

// MessageLimitConfig 消息速率限制（按连接）
type MessageLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
}

// ChatLimitConfig 聊天速率限制
type ChatLimitConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
	MaxPerMinute int `yaml:"max_per_minute"`
	Cooldown     int `yaml:"cooldown"` // 秒
}

// CooldownDuration 返回冷却时长
func (c *ChatLimitConfig) CooldownDuration() time.Duration {
	return time.Duration(c.Cooldown) * time.Second
}

// StorageConfig 本地存储配置
type StorageConfig struct {
	HistoryDir string `yaml:"history_dir"` // 对局归档目录，为空时不归档
}

// LogConfig 日志配置
type LogConfig struct {
	Level     string `yaml:"level"`
	Pretty    bool   `yaml:"pretty"`
	File      string `yaml:"file"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// Load 加载配置文件，未设置的项使用默认值，再用 TREASURE_ 前缀的环境变量覆盖
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}
	cfg.applyDefaults()
	cfg.applyEnv()

	return cfg, nil
}

// Default 返回默认配置
func Default() *Config {
	cfg := &Config{
		Server: ServerConfig{Codec: defaultCodec},
		Game:   GameConfig{RoundDelay: defaultRoundDelay},
		Log:    LogConfig{Level: defaultLogLevel, Pretty: true},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults 为零值字段填充默认值
//
// round_delay 允许为 0，默认值只在 Default 中给出。
func (c *Config) applyDefaults() {
	setDefault(&c.Server.Host, defaultHost)
	setDefault(&c.Server.Port, defaultPort)
	setDefault(&c.Server.MaxConnections, defaultMaxConnections)
	setDefault(&c.Server.Codec, defaultCodec)
	setDefault(&c.Redis.Addr, defaultRedisAddr)

	setDefault(&c.Game.RoomTimeout, defaultRoomTimeout)
	setDefault(&c.Game.FinishedRoomTTL, defaultFinishedRoomTTL)
	setDefault(&c.Game.DisconnectTimeout, defaultDisconnectTimeout)
	setDefault(&c.Game.MessageLimit, defaultMessageLimit)
	setDefault(&c.Game.ShutdownTimeout, defaultShutdownTimeout)
	setDefault(&c.Game.ShutdownCheckInterval, defaultShutdownCheckInterval)
	setDefault(&c.Game.RoomCleanupDelay, defaultRoomCleanupDelay)

	if len(c.Security.AllowedOrigins) == 0 {
		c.Security.AllowedOrigins = []string{"*"}
	}
	setDefault(&c.Security.RateLimit.MaxPerSecond, defaultRatePerSecond)
	setDefault(&c.Security.RateLimit.MaxPerMinute, defaultRatePerMinute)
	setDefault(&c.Security.RateLimit.BanDuration, defaultBanDuration)
	setDefault(&c.Security.MessageLimit.MaxPerSecond, defaultMessagePerSecond)
	setDefault(&c.Security.ChatLimit.MaxPerSecond, defaultChatPerSecond)
	setDefault(&c.Security.ChatLimit.MaxPerMinute, defaultChatPerMinute)
	setDefault(&c.Security.ChatLimit.Cooldown, defaultChatCooldown)

	setDefault(&c.Log.Level, defaultLogLevel)
	setDefault(&c.Log.MaxSizeMB, defaultLogMaxSizeMB)
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}

// applyEnv 环境变量覆盖，键名为 TREASURE_<SECTION>_<KEY>
func (c *Config) applyEnv() {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	envString(v, "server.host", &c.Server.Host)
	envInt(v, "server.port", &c.Server.Port)
	envInt(v, "server.max_connections", &c.Server.MaxConnections)
	envString(v, "server.codec", &c.Server.Codec)
	envString(v, "server.public_url", &c.Server.PublicURL)

	envBool(v, "redis.enabled", &c.Redis.Enabled)
	envString(v, "redis.addr", &c.Redis.Addr)
	envString(v, "redis.password", &c.Redis.Password)
	envInt(v, "redis.db", &c.Redis.DB)

	envInt(v, "game.room_timeout", &c.Game.RoomTimeout)
	envInt(v, "game.round_delay", &c.Game.RoundDelay)
	envInt(v, "game.disconnect_timeout", &c.Game.DisconnectTimeout)
	envBool(v, "game.conceal_hands", &c.Game.ConcealHands)

	envList(v, "security.allowed_origins", &c.Security.AllowedOrigins)
	envList(v, "security.ip_whitelist", &c.Security.IPWhitelist)
	envList(v, "security.ip_blacklist", &c.Security.IPBlacklist)

	envString(v, "storage.history_dir", &c.Storage.HistoryDir)
	envString(v, "log.level", &c.Log.Level)
	envString(v, "log.file", &c.Log.File)
}

func envString(v *viper.Viper, key string, field *string) {
	if s := v.GetString(key); s != "" {
		*field = s
	}
}

func envList(v *viper.Viper, key string, field *[]string) {
	if s := v.GetString(key); s != "" {
		*field = strings.Split(s, ",")
	}
}

func envInt(v *viper.Viper, key string, field *int) {
	if v.GetString(key) != "" {
		*field = v.GetInt(key)
	}
}

func envBool(v *viper.Viper, key string, field *bool) {
	if v.GetString(key) != "" {
		*field = v.GetBool(key)
	}
}
