package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/poise/backend/internal/logging"
	"github.com/zhouzirui/poise/backend/internal/service/archive"
	"github.com/zhouzirui/poise/backend/internal/service/hesitation"
	"github.com/zhouzirui/poise/backend/internal/service/interview"
)

func main() {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("无法加载 .env，改用系统环境变量")
	}
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:           "sessionsim",
		Short:         "Replay scripted interview sessions through the presence engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return logging.Setup(logging.Options{Level: logLevel, Output: os.Stderr})
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")

	root.AddCommand(newRunCmd())
	root.AddCommand(newReportsCmd())
	return root
}

func newRunCmd() *cobra.Command {
	var hesitationURL, archivePath string
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Simulate a session and print its report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sc, err := LoadScenario(args[0])
			if err != nil {
				return err
			}

			var analyzer interview.Analyzer
			if hesitationURL != "" {
				analyzer = hesitation.NewFromConfig(hesitation.Config{BaseURL: hesitationURL, Timeout: timeout})
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout*time.Duration(len(sc.Answers)+1))
			defer cancel()
			report, err := Simulate(ctx, sc, analyzer, time.Now().UTC())
			if err != nil {
				return err
			}

			if archivePath != "" {
				store, err := archive.Open(archivePath)
				if err != nil {
					return err
				}
				defer store.Close()
				if err := store.Save(ctx, report); err != nil {
					return err
				}
				logrus.WithField("session", report.SessionID).Info("report archived")
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		},
	}
	cmd.Flags().StringVar(&hesitationURL, "hesitation-url", os.Getenv("HESITATION_URL"), "hesitation analysis service base URL (scripted results when empty)")
	cmd.Flags().StringVar(&archivePath, "archive", "", "sqlite path to archive the report")
	cmd.Flags().DurationVar(&timeout, "timeout", hesitation.DefaultTimeout, "per answer analysis timeout")
	return cmd
}

func newReportsCmd() *cobra.Command {
	var archivePath string
	var limit int

	cmd := &cobra.Command{
		Use:   "reports",
		Short: "List archived reports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := archive.Open(archivePath)
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no reports")
				return nil
			}
			for _, it := range items {
				status := "complete"
				if it.Aborted {
					status = "aborted"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  answers=%d visual=%d audio=%d  %s\n",
					it.GeneratedAt.Format(time.RFC3339), it.SessionID, it.Items, it.AverageVisual, it.AverageAudio, status)
			}
			return nil
		},
	}
	defaultPath := os.Getenv("ARCHIVE_DB_PATH")
	if defaultPath == "" {
		defaultPath = "data/reports.db"
	}
	cmd.Flags().StringVar(&archivePath, "archive", defaultPath, "sqlite path of the report archive")
	cmd.Flags().IntVar(&limit, "limit", 20, "max reports to list")
	return cmd
}
