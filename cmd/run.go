package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/ai"
	"github.com/talentsift/talentsift/internal/ai/gemini"
	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/match"
	"github.com/talentsift/talentsift/internal/parser"
	"github.com/talentsift/talentsift/internal/scheduler"
	"github.com/talentsift/talentsift/internal/screening"
	"github.com/talentsift/talentsift/internal/secrets"
	"github.com/talentsift/talentsift/internal/shortlist"
	"github.com/talentsift/talentsift/internal/storage"
)

const (
	PromptYes = "Yes"
	PromptNo  = "No"

	defaultDatabasePath = "talentsift.db"
)

var prompt = promptui.Select{
	Label: "Send interview invitations to the shortlisted candidates?",
	Items: []string{PromptYes, PromptNo},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Score the candidate pool against a job, decide a shortlist and schedule interviews",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("job", "", "job ID to screen for (required unless --job-file is given)")
	runCmd.Flags().String("job-file", "", "job description file to ingest and screen for")
	runCmd.Flags().String("resume-dir", "", "directory of resumes to ingest before screening")
	runCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation before sending invitations")
	runCmd.Flags().Bool("notify-rejections", false, "email candidates that did not make the shortlist")
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	// Local development keeps credentials in a .env file.
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

	logger.Info("starting talentsift", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	svc := buildService(ctx, config, logger)

	jobID := cmd.Flag("job").Value.String()
	if jobFile := cmd.Flag("job-file").Value.String(); jobFile != "" {
		job, err := svc.IngestJobFile(ctx, jobFile)
		if err != nil {
			logger.Fatal("ingesting job description", zap.Error(err))
		}
		jobID = job.ID
	}
	if jobID == "" {
		logger.Fatal("a job is required", zap.String("hint", "pass --job <id> or --job-file <path>"))
	}

	if resumeDir := cmd.Flag("resume-dir").Value.String(); resumeDir != "" {
		report, err := svc.IngestResumeDir(ctx, resumeDir)
		if err != nil {
			logger.Fatal("ingesting resumes", zap.Error(err))
		}
		logger.Info("resumes ingested",
			zap.Int("succeeded", report.Succeeded),
			zap.Int("degraded", report.Degraded),
			zap.Int("failed", report.Failed),
		)
	}

	result, err := svc.ShortlistJob(ctx, jobID)
	if err != nil {
		logger.Fatal("deciding the shortlist", zap.Error(err))
	}

	if len(result.Entries) == 0 {
		logger.Info("exiting", zap.String("reason", "no candidates made the shortlist"))
		return
	}

	printShortlist(logger, result)

	if cmd.Flag("auto-approve").Value.String() == "false" {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}
		if action == PromptNo {
			logger.Info("exiting", zap.String("reason", "got no from prompt"))
			return
		}
	}

	report, err := svc.ScheduleInterviews(ctx, jobID)
	if err != nil {
		logger.Fatal("scheduling interviews", zap.Error(err))
	}

	logger.Info("interviews scheduled",
		zap.Int("sent", report.Sent),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
	)

	if cmd.Flag("notify-rejections").Value.String() == "true" {
		sent, failed, err := svc.NotifyRejections(ctx, jobID, result.Rejected)
		if err != nil {
			logger.Fatal("notifying rejected candidates", zap.Error(err))
		}
		logger.Info("rejections notified", zap.Int("sent", sent), zap.Int("failed", failed))
	}
}

func printShortlist(logger *zap.Logger, result *shortlist.Result) {
	for _, entry := range result.Entries {
		logger.Info("shortlisted",
			zap.Int("rank", entry.Rank),
			zap.String("candidate_id", entry.CandidateID),
			zap.Int("score", entry.Score.Overall),
			zap.Strings("matched_skills", entry.Score.MatchedSkills),
			zap.Strings("missing_skills", entry.Score.MissingRequiredSkills),
		)
	}
	logger.Info("shortlist decided",
		zap.String("batch_id", result.BatchID),
		zap.Int("shortlisted", result.Stats.Shortlisted),
		zap.Int("rejected", result.Stats.Rejected),
	)
}

// buildService wires the pipeline from configuration.
func buildService(ctx context.Context, config *Config, logger *zap.Logger) *screening.Service {
	store := openStore(config, logger)

	completer, err := newCompleter(ctx, config.AI, logger)
	if err != nil {
		logger.Fatal("configuring the language model",
			zap.Error(err),
			zap.String("hint", "set ai.gemini.api-key-file or GEMINI_API_KEY_FILE"),
		)
	}

	parserCfg := parser.Config{}
	if config.Parser != nil {
		parserCfg = *config.Parser
	}
	docParser := parser.New(completer, parserCfg, logger)

	weights := match.Weights{}
	if config.Match != nil && config.Match.Weights != nil {
		weights = *config.Match.Weights
	}
	engine, err := match.New(weights)
	if err != nil {
		logger.Fatal("configuring the matching engine", zap.Error(err))
	}

	policy := shortlist.Policy{}
	if config.Shortlist != nil {
		policy = *config.Shortlist
	}
	controller := shortlist.New(policy, logger)

	sched, err := newScheduler(store, config.Scheduler, logger)
	if err != nil {
		logger.Fatal("configuring the interview scheduler", zap.Error(err))
	}

	ingestCfg := screening.Config{}
	if config.Ingest != nil {
		ingestCfg = *config.Ingest
	}

	return screening.New(docParser, store, engine, controller, sched, ingestCfg, logger)
}

func openStore(config *Config, logger *zap.Logger) *storage.Store {
	dbPath := defaultDatabasePath
	if config.Database != nil && config.Database.Path != "" {
		dbPath = config.Database.Path
	}
	store, err := storage.Open(dbPath, logger)
	if err != nil {
		logger.Fatal("opening the database", zap.Error(err))
	}
	return store
}

func newCompleter(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Completer, error) {
	if cfg == nil || cfg.Gemini == nil {
		return nil, errors.New("ai.gemini configuration is required")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		Env:   "GEMINI_API_KEY",
		File:  cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, err
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	return gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, cfg.Gemini.Timeout, genLogger)
}

func newScheduler(store scheduler.InviteStore, cfg *SchedulerConfig, logger *zap.Logger) (*scheduler.Scheduler, error) {
	if cfg == nil {
		cfg = &SchedulerConfig{}
	}
	if cfg.SMTP == nil {
		return nil, errors.New("scheduler.smtp configuration is required")
	}

	smtpCfg := *cfg.SMTP
	if cfg.SMTPPasswordFile != "" || smtpCfg.Password != "" {
		password, err := secrets.Load(secrets.Source{
			Name:  "smtp password",
			Value: smtpCfg.Password,
			Env:   "SMTP_PASSWORD",
			File:  cfg.SMTPPasswordFile,
		})
		if err != nil {
			return nil, err
		}
		smtpCfg.Password = password
	}

	sender := scheduler.NewSMTPSender(smtpCfg)
	return scheduler.New(store, sender, scheduler.Config{
		MaxAttempts: cfg.MaxAttempts,
		SlotCount:   cfg.SlotCount,
	}, logger), nil
}
