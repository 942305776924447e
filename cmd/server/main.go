package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"localscribe/internal/asr"
	"localscribe/internal/config"
	"localscribe/internal/handlers"
	"localscribe/internal/ingestion"
	"localscribe/internal/storage"
	"localscribe/internal/version"
	"localscribe/internal/worker"
)

func main() {
	// .envファイルと環境変数から設定を読み込み
	cfg := config.Load()

	model := flag.String("model", asr.DefaultModel, "Model size to use")
	noGPU := flag.Bool("no-gpu", false, "Disable GPU even if available (CPU with int8 weights)")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = config.DefaultServerDB
	}

	// データベース接続
	db, err := storage.Open(dbPath)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()
	repo := storage.NewTranscriptRepository(db)

	// エンジンは起動時に1回だけロード
	engineConfig := asr.NewEngineConfig(*model, !*noGPU)
	engineConfig.ModelsDir = cfg.ModelsDir
	engineConfig.VADModel = cfg.VADModel
	engineConfig.NumThreads = cfg.Threads

	engine, err := asr.NewWhisperEngine(engineConfig, logger)
	if err != nil {
		logger.Fatal("Failed to load model", zap.String("model", engineConfig.Model), zap.Error(err))
	}
	defer engine.Close()

	// ワーカー起動（リクエストは1件ずつ処理）
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w := worker.NewWorker(engine, engineConfig, repo, logger)
	w.Start(ctx)
	defer w.Stop()

	ingester := ingestion.NewAudioIngester(filepath.Dir(dbPath))

	// Echoインスタンスの作成
	e := echo.New()
	e.HideBanner = true

	// ミドルウェアの設定
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// ルートの登録
	handlers.Register(e,
		handlers.NewTranscriptHandler(ingester, w, repo, logger),
		handlers.NewStreamHandler(ingester, w, cfg.AssumedDuration, logger),
	)

	// サーバー起動
	go func() {
		if err := e.Start(fmt.Sprintf(":%s", cfg.Port)); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server stopped", zap.Error(err))
		}
	}()
	logger.Info("Starting localscribe",
		zap.String("version", version.Version),
		zap.String("port", cfg.Port),
		zap.String("model", engineConfig.Model),
		zap.String("device", engineConfig.Device),
	)

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
}
