package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/talentsift/talentsift/internal/match"
	"github.com/talentsift/talentsift/internal/parser"
	"github.com/talentsift/talentsift/internal/scheduler"
	"github.com/talentsift/talentsift/internal/screening"
	"github.com/talentsift/talentsift/internal/shortlist"
)

const (
	app = "talentsift"
)

type Config struct {
	Database  *DatabaseConfig   `mapstructure:"database"`
	AI        *AIConfig         `mapstructure:"ai"`
	Parser    *parser.Config    `mapstructure:"parser"`
	Ingest    *screening.Config `mapstructure:"ingest"`
	Match     *MatchConfig      `mapstructure:"match"`
	Shortlist *shortlist.Policy `mapstructure:"shortlist"`
	Scheduler *SchedulerConfig  `mapstructure:"scheduler"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey     string        `mapstructure:"api-key"`
	APIKeyFile string        `mapstructure:"api-key-file"`
	Model      string        `mapstructure:"model"`
	MaxRetries int           `mapstructure:"max-retries"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type MatchConfig struct {
	Weights *match.Weights `mapstructure:"weights"`
}

type SchedulerConfig struct {
	MaxAttempts      int                   `mapstructure:"max-attempts"`
	SlotCount        int                   `mapstructure:"slot-count"`
	SMTP             *scheduler.SMTPConfig `mapstructure:"smtp"`
	SMTPPasswordFile string                `mapstructure:"smtp-password-file"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "talentsift screens job candidates: it parses resumes, scores them against a job and schedules interviews",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("scheduler.smtp.password", "SMTP_PASSWORD"); err != nil {
		log.Fatalf("binding SMTP_PASSWORD environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is talentsift.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// A missing default config file is fine: flags and environment still
	// apply. An explicitly requested file must parse.
	if err := viper.ReadInConfig(); err != nil {
		if cfgFile != "" {
			log.Fatal(err)
		}
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
