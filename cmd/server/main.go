package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/tagfeed/internal/config"
	"github.com/tagfeed/internal/db"
	"github.com/tagfeed/internal/handler"
	"github.com/tagfeed/internal/logger"
	"github.com/tagfeed/internal/router"
	"github.com/tagfeed/internal/seed"
	"github.com/tagfeed/internal/service"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFile string

	root := &cobra.Command{
		Use:           "tagfeed",
		Short:         "按分类聚合帖子图片的信息流服务",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "配置文件路径（可选）")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configFile)
		},
	}

	var postsPerCategory, imagesPerPost int
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "生成演示用户、分类与帖子",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(cmd.Context(), configFile, postsPerCategory, imagesPerPost)
		},
	}
	seedCmd.Flags().IntVar(&postsPerCategory, "posts", 4, "每个分类生成的帖子数")
	seedCmd.Flags().IntVar(&imagesPerPost, "images", 2, "每篇帖子生成的图片数")

	refreshCmd := &cobra.Command{
		Use:   "refresh-metrics",
		Short: "重新计算已过期的时间窗口互动汇总",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRefreshMetrics(cmd.Context(), configFile)
		},
	}

	root.AddCommand(serve, seedCmd, refreshCmd)
	// 不带子命令时直接启动服务
	root.RunE = serve.RunE
	return root
}

type app struct {
	cfg config.AppConfig
	log zerolog.Logger
}

func bootstrap(configFile string) (*app, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	log := logger.New(cfg.LogLevel, cfg.LogPretty)
	zerolog.DefaultContextLogger = &log

	gormLevel := gormlogger.Silent
	if logger.ParseLevel(cfg.LogLevel) <= zerolog.DebugLevel {
		gormLevel = gormlogger.Info
	}
	if err := db.Init(cfg.DatabaseDriver, cfg.DSN(), &gorm.Config{Logger: gormlogger.Default.LogMode(gormLevel)}); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	if err := db.EnsureUser(db.DB, cfg.SuperRootUserName, cfg.SuperRootPassword); err != nil {
		return nil, fmt.Errorf("ensure super root user: %w", err)
	}

	return &app{cfg: cfg, log: log}, nil
}

func runServe(ctx context.Context, configFile string) error {
	a, err := bootstrap(configFile)
	if err != nil {
		return err
	}
	cfg := a.cfg

	gin.SetMode(cfg.GinMode)

	api := handler.NewAPI(db.DB, cfg.UploadDir, cfg.UploadURLPath, handler.FeedDefaults{
		CategoryLimit: cfg.FeedCategoryLimit,
		PostLimit:     cfg.FeedPostLimit,
		ImagesPerPost: cfg.FeedImagesPerPost,
	})
	engine := router.SetupRouter(api, router.Options{
		SessionSecret: cfg.SessionSecret,
		UploadDir:     cfg.UploadDir,
		UploadURLPath: cfg.UploadURLPath,
		AdminUsername: cfg.SuperRootUserName,
		Logger:        a.log,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go service.NewMetricService(db.DB).RunExpiryLoop(a.log.WithContext(ctx), cfg.MetricsRefreshInterval, time.Now)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", cfg.ListenAddr).Str("driver", cfg.DatabaseDriver).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("run server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func runSeed(ctx context.Context, configFile string, postsPerCategory, imagesPerPost int) error {
	a, err := bootstrap(configFile)
	if err != nil {
		return err
	}

	summary, err := seed.Run(a.log.WithContext(ctx), db.DB, seed.Options{
		PostsPerCategory: postsPerCategory,
		ImagesPerPost:    imagesPerPost,
		UploadDir:        a.cfg.UploadDir,
		UploadURLPath:    a.cfg.UploadURLPath,
	})
	if err != nil {
		return err
	}
	if summary.Skipped {
		fmt.Println("数据库中已有帖子，跳过生成")
		return nil
	}
	fmt.Printf("已生成 %d 个用户、%d 个分类、%d 篇帖子、%d 张图片\n",
		summary.Users, summary.Categories, summary.Posts, summary.Images)
	return nil
}

func runRefreshMetrics(ctx context.Context, configFile string) error {
	a, err := bootstrap(configFile)
	if err != nil {
		return err
	}

	refreshed, err := service.NewMetricService(db.DB).RefreshExpired(a.log.WithContext(ctx), time.Now())
	if err != nil {
		return fmt.Errorf("refresh metrics: %w", err)
	}
	fmt.Printf("已刷新 %d 篇帖子的互动汇总\n", refreshed)
	return nil
}
