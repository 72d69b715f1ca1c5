package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lifekit-core/internal/api"
	"lifekit-core/internal/app"
	"lifekit-core/internal/config"
	coreerrors "lifekit-core/internal/core/errors"
	"lifekit-core/internal/core/log"
	"lifekit-core/internal/core/session"
	"lifekit-core/internal/core/settings"
	"lifekit-core/internal/core/types"

	"github.com/spf13/cobra"
)

// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━
// serve - 常驻运行时 + 运维 HTTP 接口
// ━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━

var (
	serveListen string
	serveAPI    bool
)

// serveCmd 以服务方式运行
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the runtime as a service with the ops HTTP API",
	Long: `Run the lifekit runtime until SIGINT/SIGTERM. Configuration is loaded from
defaults, then the YAML config file, then LIFEKIT_* environment variables.

Example:
  lifekit serve
  lifekit serve --api --listen 127.0.0.1:7070
  lifekit serve -c /etc/lifekit/config.yaml`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "Ops API listen address (overrides config)")
	serveCmd.Flags().BoolVar(&serveAPI, "api", false, "Enable the ops API even if the config disables it")
}

func runServe(cmd *cobra.Command, args []string) {
	out := NewOutput(noColor)

	cfg, err := config.Load(configFile)
	if err != nil {
		exitErr("failed to load config: %v", err)
	}
	// 命令行参数覆盖配置文件
	if serveAPI {
		cfg.API.Enabled = true
	}
	if serveListen != "" {
		cfg.API.Enabled = true
		cfg.API.ListenAddr = serveListen
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := buildStore(ctx, cfg)
	if err != nil {
		exitErr("failed to open settings backend: %v", err)
	}

	if err := seedSettings(ctx, store, cfg.Settings.Seed); err != nil {
		store.Close()
		exitErr("failed to seed settings: %v", err)
	}

	rt, err := app.New(ctx, &app.Options{
		Log:          &cfg.Log,
		Settings:     store,
		Mode:         session.ParseMode(cfg.Runtime.Mode),
		Profile:      types.Profile(cfg.Runtime.Profile),
		TypeCaps:     typeCaps(cfg.Lifecycle.TypeCaps),
		CategoryCaps: cfg.Subscription.CategoryCaps,
	})
	if err != nil {
		store.Close()
		exitErr("failed to assemble runtime: %v", err)
	}
	// 文件日志时释放 Init 打开的句柄
	defer log.Close()

	srv := api.NewServer(ctx, &api.Config{Enabled: cfg.API.Enabled, ListenAddr: cfg.API.ListenAddr}, rt)
	if err := srv.Start(); err != nil {
		rt.Close()
		exitErr("failed to start ops API: %v", err)
	}

	out.Success("lifekit runtime started")
	out.KeyValue("Mode", string(rt.Session().Mode()))
	out.KeyValue("Profile", string(rt.Session().Profile()))
	out.KeyValue("Settings backend", backendName(cfg))
	if cfg.API.Enabled {
		out.KeyValue("Ops API", "http://"+cfg.API.ListenAddr+"/api/v1")
	} else {
		out.KeyValue("Ops API", "disabled")
	}

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh

	out.Info("received %s, shutting down...", sig)
	if err := srv.Dispose(); err != nil {
		out.Warning("ops API shutdown: %v", err)
	}
	if err := rt.Close(); err != nil {
		out.Warning("runtime shutdown: %v", err)
	}
	out.Success("bye")
}

// buildStore 按配置选择设置存储后端
func buildStore(ctx context.Context, cfg *config.Root) (settings.Store, error) {
	switch cfg.Settings.Backend {
	case config.BackendFile:
		backend, err := settings.NewFileBackend(cfg.Settings.FilePath)
		if err != nil {
			return nil, err
		}
		return settings.NewStore(backend)
	case config.BackendRedis:
		backend, err := settings.NewRedisBackend(&settings.RedisConfig{
			Addr:     cfg.Settings.Redis.Addr,
			Password: cfg.Settings.Redis.Password,
			DB:       cfg.Settings.Redis.DB,
			PoolSize: cfg.Settings.Redis.PoolSize,
		})
		if err != nil {
			return nil, err
		}
		return settings.NewStore(backend)
	case config.BackendPostgres:
		backend, err := settings.NewPostgresBackend(ctx, &settings.PostgresConfig{
			DSN:      cfg.Settings.Postgres.DSN,
			MaxConns: cfg.Settings.Postgres.MaxConns,
			MinConns: cfg.Settings.Postgres.MinConns,
		})
		if err != nil {
			return nil, err
		}
		return settings.NewStore(backend)
	default:
		return settings.NewMemoryStore(), nil
	}
}

// seedSettings 写入缺失的种子键，已有值不覆盖
func seedSettings(ctx context.Context, store settings.Store, seed map[string]string) error {
	for key, value := range seed {
		_, err := store.GetString(ctx, key)
		if err == nil {
			continue
		}
		if !coreerrors.IsNotFound(err) {
			return err
		}
		if err := store.SetString(ctx, key, value); err != nil {
			return err
		}
	}
	return nil
}

// typeCaps 把配置中的字符串键转成资源类型键
func typeCaps(raw map[string]int) map[types.ResourceType]int {
	if len(raw) == 0 {
		return nil
	}
	caps := make(map[types.ResourceType]int, len(raw))
	for name, limit := range raw {
		caps[types.ResourceType(name)] = limit
	}
	return caps
}

func backendName(cfg *config.Root) string {
	if cfg.Settings.Backend == "" {
		return config.BackendMemory
	}
	return cfg.Settings.Backend
}
