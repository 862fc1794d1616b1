package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/zhouzirui/poise/backend/internal/config"
	"github.com/zhouzirui/poise/backend/internal/handler"
	"github.com/zhouzirui/poise/backend/internal/logging"
	"github.com/zhouzirui/poise/backend/internal/model/question"
	"github.com/zhouzirui/poise/backend/internal/service/archive"
	"github.com/zhouzirui/poise/backend/internal/service/hesitation"
	"github.com/zhouzirui/poise/backend/internal/service/interview"
	"github.com/zhouzirui/poise/backend/internal/service/questions"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Warn("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if err := logging.Setup(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format}); err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}

	bank, err := loadBank(cfg.Questions)
	if err != nil {
		logrus.WithError(err).Fatal("failed to load question bank")
	}

	provider, err := buildProvider(ctx, cfg, bank)
	if err != nil {
		logrus.WithError(err).Fatal("failed to initialize question provider")
	}

	analyzer := hesitation.NewFromConfig(hesitation.Config{
		BaseURL: cfg.Hesitation.BaseURL,
		Timeout: cfg.Hesitation.Timeout,
	})
	if analyzer.Enabled() {
		logrus.WithField("url", cfg.Hesitation.BaseURL).Info("hesitation analysis enabled")
	} else {
		logrus.Info("HESITATION_URL 未配置，语音分析降级为默认分数")
	}

	opts := handler.Options{
		Bank:           bank,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}

	var store interview.ReportStore
	if cfg.Archive.Path != "" {
		archiveStore, err := archive.Open(cfg.Archive.Path)
		if err != nil {
			logrus.WithError(err).Fatal("failed to open report archive")
		}
		defer archiveStore.Close()
		store = archiveStore
		opts.Reports = archiveStore
		logrus.WithField("path", cfg.Archive.Path).Info("report archive ready")
	}

	svc := interview.NewService(provider, analyzer, store, interview.Config{
		TickInterval:  cfg.Presence.TickInterval,
		QuestionCount: cfg.Questions.Count,
		Machine: interview.MachineConfig{
			SpeechThreshold: cfg.Presence.SpeechThreshold,
			MaxAudioBytes:   cfg.Presence.MaxAudioBytes,
		},
	})
	defer svc.Shutdown()
	opts.Interviews = svc

	startServer(ctx, cfg.Server, handler.NewRouter(opts))
}

func loadBank(cfg config.QuestionsConfig) (question.Bank, error) {
	if cfg.BankPath == "" {
		return question.NewMemoryBank(question.Seed()), nil
	}
	bank, err := question.LoadYAML(cfg.BankPath)
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"path":      cfg.BankPath,
		"questions": len(bank.List()),
	}).Info("question bank loaded")
	return bank, nil
}

func buildProvider(ctx context.Context, cfg *config.Config, bank question.Bank) (questions.Provider, error) {
	static := questions.NewStaticProvider(bank)
	if !cfg.Questions.Adaptive {
		return static, nil
	}
	if !cfg.AI.Enabled() {
		logrus.Warn("QUESTIONS_ADAPTIVE 已开启但 Ark 凭证未配置，使用固定题库")
		return static, nil
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		logrus.WithError(err).Warn("failed to initialize chat model, using static questions")
		return static, nil
	}
	adaptive, err := questions.NewAdaptiveProvider(ctx, chatModel, static)
	if err != nil {
		return nil, err
	}
	logrus.WithField("model", cfg.AI.Model).Info("adaptive question generation enabled")
	return adaptive, nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logrus.WithField("addr", addr).Info("Poise backend listening")
	if err := runServer(ctx, srv); err != nil {
		logrus.WithError(err).Fatal("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
