package cmd

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/logger"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Parse resumes and job descriptions into the candidate pool",
	Run: func(cmd *cobra.Command, _ []string) {
		ingest(cmd)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().String("resume", "", "a single resume file to ingest")
	ingestCmd.Flags().String("resume-dir", "", "a directory of resumes to ingest")
	ingestCmd.Flags().String("job-file", "", "a job description file to ingest")
}

func ingest(cmd *cobra.Command) {
	ctx := context.Background()

	_ = godotenv.Load()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}
	if config == nil {
		config = &Config{}
	}

	svc := buildService(ctx, config, logger)

	resume := cmd.Flag("resume").Value.String()
	resumeDir := cmd.Flag("resume-dir").Value.String()
	jobFile := cmd.Flag("job-file").Value.String()

	if resume == "" && resumeDir == "" && jobFile == "" {
		logger.Fatal("nothing to ingest",
			zap.String("hint", "pass --resume, --resume-dir or --job-file"),
		)
	}

	if jobFile != "" {
		job, err := svc.IngestJobFile(ctx, jobFile)
		if err != nil {
			logger.Fatal("ingesting job description", zap.Error(err))
		}
		logger.Info("job stored", zap.String("job_id", job.ID), zap.String("title", job.Title))
	}

	if resume != "" {
		candidate, err := svc.IngestResumeFile(ctx, resume)
		if err != nil {
			logger.Fatal("ingesting resume", zap.Error(err))
		}
		logger.Info("candidate stored",
			zap.String("candidate_id", candidate.ID),
			zap.String("name", candidate.Name),
		)
	}

	if resumeDir != "" {
		report, err := svc.IngestResumeDir(ctx, resumeDir)
		if err != nil {
			logger.Fatal("ingesting resumes", zap.Error(err))
		}
		logger.Info("resume batch finished",
			zap.Int("succeeded", report.Succeeded),
			zap.Int("degraded", report.Degraded),
			zap.Int("failed", report.Failed),
		)
		for _, failure := range report.Failures {
			logger.Warn("document rejected",
				zap.String("path", failure.Path),
				zap.String("reason", failure.Error),
			)
		}
	}
}
