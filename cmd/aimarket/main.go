package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/aimarket/internal/config"
	"github.com/xxxsen/aimarket/internal/db"
	"github.com/xxxsen/aimarket/internal/handler"
	"github.com/xxxsen/aimarket/internal/job"
	"github.com/xxxsen/aimarket/internal/middleware"
	"github.com/xxxsen/aimarket/internal/schedule"
)

func main() {
	var configPath string
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:           "aimarket",
		Short:         "retrieval augmented financial analysis service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.json or config.yaml")

	loadConfig := func() (*config.Config, error) {
		if configPath == "" {
			return nil, fmt.Errorf("--config is required")
		}
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		logger.Init(
			cfg.LogConfig.File,
			cfg.LogConfig.Level,
			int(cfg.LogConfig.FileCount),
			int(cfg.LogConfig.FileSize),
			int(cfg.LogConfig.KeepDays),
			cfg.LogConfig.Console,
		)
		logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))
		return cfg, nil
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the http server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, true)
			if err != nil {
				return err
			}
			defer a.Close()
			return runServer(a)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := db.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			defer conn.Close()
			if err := db.ApplyMigrations(conn); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			logutil.GetLogger(context.Background()).Info("migrations applied")
			return nil
		},
	}

	var (
		docID   string
		pending bool
	)
	ingestCmd := &cobra.Command{
		Use:   "ingest",
		Short: "chunk, embed and store documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			if docID == "" && !pending {
				return fmt.Errorf("--id or --pending is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if pending {
				return job.NewPendingIngestJob(a.docRepo, a.ingest, cfg.Jobs.PendingIngestBatch).Run(cmd.Context())
			}
			cnt, err := a.ingest.IngestByID(cmd.Context(), docID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ingested %s: %d chunks\n", docID, cnt)
			return nil
		},
	}
	ingestCmd.Flags().StringVar(&docID, "id", "", "document id")
	ingestCmd.Flags().BoolVar(&pending, "pending", false, "ingest one batch of documents that have no chunks yet")

	var (
		query string
		topK  int
	)
	askCmd := &cobra.Command{
		Use:   "ask",
		Short: "answer a query against the stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			a, err := newApp(cfg, false)
			if err != nil {
				return err
			}
			defer a.Close()
			answer, err := a.analysis.Analyze(cmd.Context(), query, topK)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(answer)
		},
	}
	askCmd.Flags().StringVar(&query, "query", "", "question to analyze")
	askCmd.Flags().IntVar(&topK, "top-k", 0, "number of context chunks, 0 uses the configured default")

	rootCmd.AddCommand(runCmd, migrateCmd, ingestCmd, askCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("command failed", zap.Error(err))
	}
}

func jobTimeout(seconds int) time.Duration {
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func runServer(a *app) error {
	cfg := a.cfg
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	logutil.GetLogger(context.Background()).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("generation_model", cfg.Generation.Model),
		zap.String("file_store", cfg.FileStore.Type),
	)

	deps := handler.RouterDeps{
		Documents: handler.NewDocumentHandler(a.documents, a.ingest, cfg.UploadMaxBytes),
		Analysis:  handler.NewAnalysisHandler(a.analysis, a.retrieval),
		RateLimit: time.Duration(cfg.RateLimitSeconds) * time.Second,
	}

	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORSAllowlist),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.Add(schedule.Entry{
		Job:     job.NewPendingIngestJob(a.docRepo, a.ingest, cfg.Jobs.PendingIngestBatch),
		Spec:    cfg.Jobs.PendingIngestSpec,
		Timeout: jobTimeout(cfg.Jobs.PendingIngestTimeoutSeconds),
	}); err != nil {
		return err
	}
	if cfg.EmbedCache.DBEnabled {
		if err := scheduler.Add(schedule.Entry{
			Job:     job.NewEmbeddingCacheCleanupJob(a.cacheRepo, cfg.EmbedCache.MaxAgeDays),
			Spec:    cfg.Jobs.CacheCleanupSpec,
			Timeout: jobTimeout(cfg.Jobs.CacheCleanupTimeoutSeconds),
		}); err != nil {
			return err
		}
	}
	scheduler.Start(ctx)
	defer scheduler.Stop()

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
			stop()
		}
	}()
	logutil.GetLogger(context.Background()).Info("http server listening", zap.String("addr", addr))

	<-ctx.Done()
	for _, name := range []string{"pending_ingest", "embedding_cache_cleanup"} {
		if st, ok := scheduler.Stats(name); ok {
			logutil.GetLogger(context.Background()).Info("job stats",
				zap.String("job", name),
				zap.Int64("runs", st.Runs),
				zap.Int64("skipped", st.Skipped),
				zap.Int64("failures", st.Failures),
			)
		}
	}
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
