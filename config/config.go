package config

import (
	"database/sql"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/spf13/viper"
	"lecture-gen/constant"
)

type Config struct {
	MinIOBucket   string            `yaml:"minio_bucket"`
	App           App               `yaml:"app"`
	DBDriver      constant.DBDriver `yaml:"db_driver"`
	DB            *sql.DB           `yaml:"db"`
	Queue         *RabbitMQ         `yaml:"rabbitmq"`
	Storage       *minio.Client     `yaml:"storage"`
	Server        Server            `yaml:"server"`
	Dispatch      Dispatch          `yaml:"dispatch"`
	Pipeline      Pipeline          `yaml:"pipeline"`
	Collaborators Collaborators     `yaml:"collaborators"`
	Sweeper       Sweeper           `yaml:"sweeper"`
}

type App struct {
	Environment string `yaml:"environment"`
	Host        string `yaml:"host"`
	Protocol    string `yaml:"protocol"`
}

type Server struct {
	HttpPort string `yaml:"http_port"`
	Workers  int    `yaml:"workers"`
}

type Dispatch struct {
	Mode      constant.DispatchMode `yaml:"mode"`
	QueueSize int                   `yaml:"queue_size"`
}

type Pipeline struct {
	MaxTokens            int    `yaml:"max_tokens"`
	TokenizerModel       string `yaml:"tokenizer_model"`
	ExtractConcurrency   int    `yaml:"extract_concurrency"`
	VoiceoverConcurrency int    `yaml:"voiceover_concurrency"`
}

type Endpoint struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

type Collaborators struct {
	Timeout              time.Duration `yaml:"timeout"`
	ReferenceStripping   Endpoint      `yaml:"reference_stripping"`
	TextExtraction       Endpoint      `yaml:"text_extraction"`
	TextField            string        `yaml:"text_field"`
	Reorganization       Endpoint      `yaml:"reorganization"`
	SlideGeneration      Endpoint      `yaml:"slide_generation"`
	StructuredExtraction Endpoint      `yaml:"structured_extraction"`
	Speech               Endpoint      `yaml:"speech"`
	VideoComposition     Endpoint      `yaml:"video_composition"`
}

type Sweeper struct {
	Enabled    bool          `yaml:"enabled"`
	Schedule   string        `yaml:"schedule"`
	StaleAfter time.Duration `yaml:"stale_after"`
}

func setDefaults() {
	viper.SetDefault("app.environment", constant.EnvironmentDevelop.String())
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.workers", 2)
	viper.SetDefault("db.driver", string(constant.DBDriverPostgres))
	viper.SetDefault("dispatch.mode", string(constant.DispatchModeRabbitMQ))
	viper.SetDefault("dispatch.queue_size", 100)
	viper.SetDefault("rabbitmq_port", 5672)
	viper.SetDefault("rabbitmq_kind", "direct")
	viper.SetDefault("rabbitmq_exchange", "lecture_exchange")
	viper.SetDefault("rabbitmq_queue", "lecture_queue")
	viper.SetDefault("rabbitmq_routing_key", "lecture.create")
	viper.SetDefault("pipeline.max_tokens", 25000)
	viper.SetDefault("pipeline.tokenizer_model", "gpt-3.5-turbo")
	viper.SetDefault("pipeline.extract_concurrency", 0)
	viper.SetDefault("pipeline.voiceover_concurrency", 4)
	viper.SetDefault("collaborators.timeout", 10*time.Minute)
	viper.SetDefault("collaborators.text_extraction.text_field", "full_text")
	viper.SetDefault("sweeper.enabled", true)
	viper.SetDefault("sweeper.schedule", "@every 5m")
	viper.SetDefault("sweeper.stale_after", time.Hour)
}

func endpoint(key string) Endpoint {
	return Endpoint{
		URL:    viper.GetString(key + ".url"),
		APIKey: viper.GetString(key + ".api_key"),
	}
}

// Load reads config.yaml from path. A .env file next to it, when present, is
// loaded into the process environment first so env vars can override keys
// (collaborators.speech.api_key <- COLLABORATORS_SPEECH_API_KEY).
func Load(path string) (*Config, error) {
	if err := godotenv.Load(filepath.Join(path, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	setDefaults()
	err := viper.ReadInConfig()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		MinIOBucket: viper.GetString("minio.bucket"),
		App: App{
			Environment: viper.GetString("app.environment"),
			Host:        viper.GetString("app.host"),
			Protocol:    viper.GetString("app.protocol"),
		},
		DBDriver: constant.DBDriver(viper.GetString("db.driver")),
		Server: Server{
			HttpPort: viper.GetString("server.port"),
			Workers:  viper.GetInt("server.workers"),
		},
		Dispatch: Dispatch{
			Mode:      constant.DispatchMode(viper.GetString("dispatch.mode")),
			QueueSize: viper.GetInt("dispatch.queue_size"),
		},
		Pipeline: Pipeline{
			MaxTokens:            viper.GetInt("pipeline.max_tokens"),
			TokenizerModel:       viper.GetString("pipeline.tokenizer_model"),
			ExtractConcurrency:   viper.GetInt("pipeline.extract_concurrency"),
			VoiceoverConcurrency: viper.GetInt("pipeline.voiceover_concurrency"),
		},
		Collaborators: Collaborators{
			Timeout:              viper.GetDuration("collaborators.timeout"),
			ReferenceStripping:   endpoint("collaborators.reference_stripping"),
			TextExtraction:       endpoint("collaborators.text_extraction"),
			TextField:            viper.GetString("collaborators.text_extraction.text_field"),
			Reorganization:       endpoint("collaborators.reorganization"),
			SlideGeneration:      endpoint("collaborators.slide_generation"),
			StructuredExtraction: endpoint("collaborators.structured_extraction"),
			Speech:               endpoint("collaborators.speech"),
			VideoComposition:     endpoint("collaborators.video_composition"),
		},
		Sweeper: Sweeper{
			Enabled:    viper.GetBool("sweeper.enabled"),
			Schedule:   viper.GetString("sweeper.schedule"),
			StaleAfter: viper.GetDuration("sweeper.stale_after"),
		},
	}

	if cfg.DBDriver == constant.DBDriverPostgres {
		db, err := sql.Open("postgres", viper.GetString("postgresql_host"))
		if err != nil {
			return nil, err
		}
		cfg.DB = db
	}

	if cfg.Dispatch.Mode == constant.DispatchModeRabbitMQ {
		cfg.Queue = &RabbitMQ{
			Host:         viper.GetString("rabbitmq_host"),
			Port:         viper.GetInt("rabbitmq_port"),
			User:         viper.GetString("rabbitmq_user"),
			Pass:         viper.GetString("rabbitmq_pass"),
			Kind:         viper.GetString("rabbitmq_kind"),
			ExchangeName: viper.GetString("rabbitmq_exchange"),
			QueueName:    viper.GetString("rabbitmq_queue"),
			RoutingKey:   viper.GetString("rabbitmq_routing_key"),
		}
	}

	if viper.GetString("minio.url") != "" {
		minioClient, err := minio.New(viper.GetString("minio.url"), &minio.Options{
			Creds:  credentials.NewStaticV4(viper.GetString("minio.access_id"), viper.GetString("minio.secret_access_key"), ""),
			Secure: viper.GetBool("minio.secure"),
		})
		if err != nil {
			return nil, err
		}
		cfg.Storage = minioClient
	}

	return cfg, nil
}
