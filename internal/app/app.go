package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/blogman/internal/config"
	"github.com/hitoshi/blogman/internal/content"
	"github.com/hitoshi/blogman/internal/database"
	"github.com/hitoshi/blogman/internal/feed"
	"github.com/hitoshi/blogman/internal/handler"
	"github.com/hitoshi/blogman/internal/logger"
	"github.com/hitoshi/blogman/internal/metrics"
	"github.com/hitoshi/blogman/internal/middleware"
	"github.com/hitoshi/blogman/internal/model"
	"github.com/hitoshi/blogman/internal/repository"
	"github.com/hitoshi/blogman/internal/security"
	"github.com/hitoshi/blogman/internal/webmention"
	"github.com/hitoshi/blogman/internal/worker/reload"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリの初期化（一時的な障害に備えてリトライ層を重ねる）
	mentionRepo := repository.NewRetryingMentionRepo(
		repository.NewPostgresMentionRepo(db), slog.Default(), cfg.StoreMaxRetries,
	)

	// バックグラウンド処理のライフサイクル管理
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. コンテンツインデックスの初期化（初回読み込みまで同期的に行う）
	index, err := newReadyIndex(ctx, cfg, collector)
	if err != nil {
		return err
	}

	// 5. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()

	// 6. Webmentionサービスの初期化
	verifier := webmention.NewVerifier(ssrfGuard, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize)
	mentionService, err := webmention.NewService(
		mentionRepo, index, verifier, collector, slog.Default(),
		webmention.ServiceConfig{
			BaseURL:       cfg.BaseURL,
			QueueSize:     cfg.VerifyQueueSize,
			MaxConcurrent: cfg.VerifyMaxConcurrent,
			RatePerSec:    cfg.VerifyRatePerSec,
			Burst:         cfg.VerifyBurst,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to build webmention service: %w", err)
	}

	notifier := webmention.NewNotifier(
		ssrfGuard, slog.Default(), collector,
		webmention.NotifierConfig{
			BaseURL:       cfg.BaseURL,
			Timeout:       cfg.FetchTimeout,
			MaxBodySize:   cfg.FetchMaxSize,
			MaxAttempts:   cfg.SendMaxAttempts,
			QueueSize:     cfg.SendQueueSize,
			MaxConcurrent: cfg.SendMaxConcurrent,
		},
	)

	// 7. 再読み込みワーカーの初期化
	reloadWorker := reload.NewWorker(index, notifier, collector, slog.Default(), cfg.ReloadInterval)

	mentionService.Start(ctx)
	notifier.Start(ctx)
	go reloadWorker.Start(ctx)

	// 8. ルーターの構築
	feedSort := model.SortType(cfg.FeedSort)
	if !feedSort.IsValid() {
		slog.Warn("FEED_SORTが不正なためデフォルトを使用します", slog.String("value", cfg.FeedSort))
		feedSort = model.DefaultSortType
	}

	deps := &handler.RouterDeps{
		Logger:      slog.Default(),
		RateLimiter: middleware.NewRateLimiter(rateLimiterConfig(cfg)),

		Snapshots: index,
		Reloader:  reloadWorker,

		SearchRecorder: collector,

		FeedBuilder:  feed.NewBuilder(cfg.BaseURL, cfg.SiteTitle, cfg.SiteBlurb),
		FeedRecorder: collector,
		FeedLimit:    cfg.FeedLimit,
		FeedSort:     feedSort,

		MentionReceiver: mentionService,
		Mentioners:      mentionService,

		Health:         db,
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// 処理中の検証と送信を完了させてから終了する
	cancel()
	mentionService.Wait()
	notifier.Wait()

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は再検証ワーカーモードで起動する。
// DB接続を開き、検証済みWebmentionの定期再チェックを実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. 依存関係の初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	mentionRepo := repository.NewRetryingMentionRepo(
		repository.NewPostgresMentionRepo(db), slog.Default(), cfg.StoreMaxRetries,
	)

	// バックグラウンド処理のライフサイクル管理
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 再チェックには記事の存在判定が必要なため、ワーカー側でも
	// インデックスを読み込み続ける（送信は行わないのでnotifierは持たない）
	index, err := newReadyIndex(ctx, cfg, collector)
	if err != nil {
		return err
	}
	reloadWorker := reload.NewWorker(index, nil, collector, slog.Default(), cfg.ReloadInterval)

	ssrfGuard := security.NewSSRFGuard()
	verifier := webmention.NewVerifier(ssrfGuard, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize)

	rechecker := webmention.NewRechecker(
		mentionRepo, index, verifier, slog.Default(),
		cfg.BaseURL, cfg.RecheckInterval, cfg.RecheckTTL, cfg.RecheckBatchSize,
	)

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("recheck_interval", cfg.RecheckInterval),
		slog.Duration("recheck_ttl", cfg.RecheckTTL),
	)

	go reloadWorker.Start(ctx)

	// 再チェックをメインgoroutineで実行（ブロッキング）
	rechecker.Start(ctx)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, err := database.Version(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read schema version after migration: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// newReadyIndex はコンテンツインデックスを生成し、初回の読み込みを
// 同期的に実行して返す。リクエスト受付や再チェックの開始前に、
// 起動直後の空スナップショットで有効なターゲットが拒否されたり、
// 初回の差分検出が全記事を変更扱いしたりすることを防ぐ。
func newReadyIndex(ctx context.Context, cfg *config.Config, collector *metrics.Collector) (*content.Index, error) {
	loader := content.NewLoader(cfg.ContentDir, content.NewGoldmarkConverter(), slog.Default(), collector)
	index := content.NewIndex(loader, slog.Default())
	if _, err := index.Reload(ctx); err != nil {
		return nil, fmt.Errorf("failed to build initial article index: %w", err)
	}
	return index, nil
}

// rateLimiterConfig はConfigのreq/min単位の設定をreq/sec単位に変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	limiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		limiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		limiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitWebmention > 0 {
		limiterCfg.WebmentionRate = rate.Limit(float64(cfg.RateLimitWebmention) / 60.0)
		limiterCfg.WebmentionBurst = cfg.RateLimitWebmention
	}
	return limiterCfg
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
