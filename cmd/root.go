package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	app = "resume-query"
)

type Config struct {
	InputDir  string        `mapstructure:"input-dir" yaml:"input-dir"`
	Records   string        `mapstructure:"records" yaml:"records"`
	IndexPath string        `mapstructure:"index" yaml:"index"`
	Ingest    *IngestConfig `mapstructure:"ingest" yaml:"ingest"`
	Index     *IndexConfig  `mapstructure:"indexing" yaml:"indexing"`
	Query     *QueryConfig  `mapstructure:"query" yaml:"query"`
	AI        *AIConfig     `mapstructure:"ai" yaml:"ai"`
}

type IngestConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

type IndexConfig struct {
	ChunkSize    int `mapstructure:"chunk-size" yaml:"chunk-size"`
	ChunkOverlap int `mapstructure:"chunk-overlap" yaml:"chunk-overlap"`
	BatchSize    int `mapstructure:"batch-size" yaml:"batch-size"`
}

type QueryConfig struct {
	Variants       int  `mapstructure:"variants" yaml:"variants"`
	TopK           int  `mapstructure:"top-k" yaml:"top-k"`
	Compress       bool `mapstructure:"compress" yaml:"compress"`
	IngestOnDemand bool `mapstructure:"ingest-on-demand" yaml:"ingest-on-demand"`
}

type AIConfig struct {
	Provider string        `mapstructure:"provider" yaml:"provider"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Gemini   *GeminiConfig `mapstructure:"gemini" yaml:"gemini"`
}

type GeminiConfig struct {
	APIKey            string `mapstructure:"api-key" yaml:"api-key,omitempty"`
	APIKeyFile        string `mapstructure:"api-key-file" yaml:"api-key-file,omitempty"`
	Model             string `mapstructure:"model" yaml:"model"`
	EmbeddingModel    string `mapstructure:"embedding-model" yaml:"embedding-model"`
	MaxRetries        int    `mapstructure:"max-retries" yaml:"max-retries"`
	RequestsPerMinute int    `mapstructure:"requests-per-minute" yaml:"requests-per-minute"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-query ingests PDF resumes and answers recruiter questions about the candidates",
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

	setDefaults(viper.GetViper())

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-query.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().String("input-dir", "", "directory with PDF resumes")
	rootCmd.PersistentFlags().String("records", "", "path of the candidate records JSON file")
	rootCmd.PersistentFlags().String("index", "", "path of the similarity index file")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("input-dir", rootCmd.PersistentFlags().Lookup("input-dir"))
	viper.BindPFlag("records", rootCmd.PersistentFlags().Lookup("records"))
	viper.BindPFlag("index", rootCmd.PersistentFlags().Lookup("index"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("input-dir", "raw_docs")
	v.SetDefault("records", "document/resume.json")
	v.SetDefault("index", "vectorstore/index.db")
	v.SetDefault("ingest.workers", 1)
	v.SetDefault("indexing.chunk-size", 700)
	v.SetDefault("indexing.chunk-overlap", 50)
	v.SetDefault("indexing.batch-size", 32)
	v.SetDefault("query.variants", 3)
	v.SetDefault("query.top-k", 5)
	v.SetDefault("query.compress", true)
	v.SetDefault("query.ingest-on-demand", true)
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.timeout", 2*time.Minute)
	v.SetDefault("ai.gemini.model", "gemini-2.5-pro")
	v.SetDefault("ai.gemini.embedding-model", "text-embedding-004")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.requests-per-minute", 0)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// The config file is optional unless given explicitly; a file that
	// exists but does not parse is always fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile == "" && errors.As(err, &notFound) {
			return
		}
		log.Fatal(err)
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
