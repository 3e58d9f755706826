package cmd

import (
	"context"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/talentsift/talentsift/internal/logger"
	"github.com/talentsift/talentsift/internal/scheduler"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Withdraw a pending interview invitation",
	Run: func(cmd *cobra.Command, _ []string) {
		cancel(cmd)
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)

	cancelCmd.Flags().String("job", "", "job ID of the invitation")
	cancelCmd.Flags().String("candidate", "", "candidate ID of the invitation")
	cancelCmd.MarkFlagRequired("job")
	cancelCmd.MarkFlagRequired("candidate")
}

func cancel(cmd *cobra.Command) {
	ctx := context.Background()

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

	store := openStore(config, logger)

	// Cancelling never sends mail, so an unconfigured sender is fine here.
	smtpCfg := scheduler.SMTPConfig{}
	if config.Scheduler != nil && config.Scheduler.SMTP != nil {
		smtpCfg = *config.Scheduler.SMTP
	}
	sched := scheduler.New(store, scheduler.NewSMTPSender(smtpCfg), scheduler.Config{}, logger)

	jobID := cmd.Flag("job").Value.String()
	candidateID := cmd.Flag("candidate").Value.String()

	if err := sched.Cancel(ctx, jobID, candidateID); err != nil {
		logger.Fatal("cancelling the invitation", zap.Error(err))
	}

	logger.Info("invitation cancelled",
		zap.String("job_id", jobID),
		zap.String("candidate_id", candidateID),
	)
}
