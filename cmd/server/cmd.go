package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/palemoky/treasure-hunt/internal/config"
	"github.com/palemoky/treasure-hunt/internal/logger"
	"github.com/palemoky/treasure-hunt/internal/server"
)

// options 命令行参数，显式设置的参数覆盖配置文件
type options struct {
	configPath   string
	host         string
	port         int
	codec        string
	publicURL    string
	redisAddr    string
	historyDir   string
	logLevel     string
	concealHands bool
}

func newCmd(opts *options) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("TREASURE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "treasure-server",
		Short:         "寻宝游戏 WebSocket 服务器",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts, cmd.Flags())
			if err != nil {
				return err
			}
			return run(cfg)
		},
	}

	flags := cmd.Flags()

	flags.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	flags.StringVarP(&opts.configPath, "config", "c", "configs/config.yaml", "配置文件路径 (env: TREASURE_CONFIG)")
	flags.StringVarP(&opts.host, "host", "b", "", "监听地址 (env: TREASURE_HOST)")
	flags.IntVarP(&opts.port, "port", "p", 0, "监听端口 (env: TREASURE_PORT)")
	flags.StringVar(&opts.codec, "codec", "", "线路编码 json/proto (env: TREASURE_CODEC)")
	flags.StringVar(&opts.publicURL, "public-url", "", "二维码中的加入链接前缀 (env: TREASURE_PUBLIC_URL)")
	flags.StringVar(&opts.redisAddr, "redis", "", "Redis 地址，设置后启用排行榜和房间镜像 (env: TREASURE_REDIS)")
	flags.StringVar(&opts.historyDir, "history-dir", "", "对局归档目录 (env: TREASURE_HISTORY_DIR)")
	flags.StringVarP(&opts.logLevel, "log-level", "l", "", "日志级别 (env: TREASURE_LOG_LEVEL)")
	flags.BoolVar(&opts.concealHands, "conceal-hands", false, "隐藏他人未翻开的牌和阵营 (env: TREASURE_CONCEAL_HANDS)")

	flags.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = flags.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("treasure-server v{{.Version}}\n")

	cmd.SilenceUsage = true

	return cmd
}

// loadConfig 读取配置文件再叠加命令行参数，文件不存在时使用默认配置
func loadConfig(opts *options, flags *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	case err != nil:
		return nil, err
	}

	if flags.Changed("host") {
		cfg.Server.Host = opts.host
	}
	if flags.Changed("port") {
		if opts.port < 1 || opts.port > 65535 {
			return nil, fmt.Errorf("无效的端口（必须在 1-65535 之间）: %d", opts.port)
		}
		cfg.Server.Port = opts.port
	}
	if flags.Changed("codec") {
		cfg.Server.Codec = opts.codec
	}
	if flags.Changed("public-url") {
		cfg.Server.PublicURL = opts.publicURL
	}
	if flags.Changed("redis") {
		cfg.Redis.Enabled = opts.redisAddr != ""
		cfg.Redis.Addr = opts.redisAddr
	}
	if flags.Changed("history-dir") {
		cfg.Storage.HistoryDir = opts.historyDir
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("conceal-hands") {
		cfg.Game.ConcealHands = opts.concealHands
	}
	return cfg, nil
}

// run 启动服务器，第一次收到信号时优雅关闭，第二次立即退出
func run(cfg *config.Config) error {
	if err := logger.Init(cfg.Log); err != nil {
		return err
	}
	defer logger.Close()

	srv, err := server.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("创建服务器失败: %w", err)
	}

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	go func() {
		<-sigs
		log.Info().Msg("🛑 收到退出信号，等待进行中的游戏结束（再次发送信号立即退出）")
		go func() {
			<-sigs
			srv.Shutdown()
		}()
		srv.GracefulShutdown(cfg.Game.ShutdownTimeoutDuration())
	}()

	log.Info().Str("version", releaseVersion).Msg("🎮 寻宝游戏服务器启动中...")
	if err := srv.Start(); err != nil {
		return fmt.Errorf("服务器启动失败: %w", err)
	}

	// 等待关闭流程结束
	srv.Shutdown()
	return nil
}
