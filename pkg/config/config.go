package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	TTS      TTSConfig      `mapstructure:"tts"`
	Speech   SpeechConfig   `mapstructure:"speech"`
	Recorder RecorderConfig `mapstructure:"recorder"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Log      LogConfig      `mapstructure:"log"`
}

type TelegramConfig struct {
	Token string `mapstructure:"token"`
}

type DatabaseConfig struct {
	// Driver is "memory", "postgres" or "sqlite".
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Path     string `mapstructure:"path"`
}

type LLMConfig struct {
	PrimaryAPIKey   string  `mapstructure:"primary_api_key"`
	PrimaryBaseURL  string  `mapstructure:"primary_base_url"`
	PrimaryModel    string  `mapstructure:"primary_model"`
	Temperature     float64 `mapstructure:"temperature"`
	SecondaryName   string  `mapstructure:"secondary_name"`
	SecondaryAPIKey string  `mapstructure:"secondary_api_key"`
	SecondaryURL    string  `mapstructure:"secondary_base_url"`
	SecondaryModel  string  `mapstructure:"secondary_model"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
}

type TTSConfig struct {
	APIKey     string   `mapstructure:"api_key"`
	BaseURL    string   `mapstructure:"base_url"`
	ModelID    string   `mapstructure:"model_id"`
	VoiceID    string   `mapstructure:"voice_id"`
	PlayerCmd  []string `mapstructure:"player_cmd"`
	SpeakerCmd []string `mapstructure:"speaker_cmd"`
}

type SpeechConfig struct {
	RecognizerURL string   `mapstructure:"recognizer_url"`
	APIKey        string   `mapstructure:"api_key"`
	Locale        string   `mapstructure:"locale"`
	Language      string   `mapstructure:"language"`
	SampleRate    int      `mapstructure:"sample_rate"`
	CaptureCmd    []string `mapstructure:"capture_cmd"`
}

type RecorderConfig struct {
	Dir           string `mapstructure:"dir"`
	RetentionDays int    `mapstructure:"retention_days"`
}

type StorageConfig struct {
	RemindersPath   string `mapstructure:"reminders_path"`
	CredentialsPath string `mapstructure:"credentials_path"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

func parseDatabaseURL(dbURL string) (DatabaseConfig, error) {
	u, err := url.Parse(dbURL)
	if err != nil {
		return DatabaseConfig{}, err
	}

	if u.Scheme == "sqlite" || u.Scheme == "file" {
		return DatabaseConfig{Driver: "sqlite", Path: strings.TrimPrefix(dbURL, u.Scheme+"://")}, nil
	}

	password, _ := u.User.Password()
	port := 5432 // default PostgreSQL port
	if u.Port() != "" {
		fmt.Sscanf(u.Port(), "%d", &port)
	}

	sslMode := u.Query().Get("sslmode")
	if sslMode == "" {
		sslMode = "disable"
	}

	return DatabaseConfig{
		Driver:   "postgres",
		Host:     u.Hostname(),
		Port:     port,
		User:     u.User.Username(),
		Password: password,
		DBName:   strings.TrimPrefix(u.Path, "/"),
		SSLMode:  sslMode,
	}, nil
}

// LoadDotEnv loads .env.local and .env from the working directory. Variables
// already set in the environment win.
func LoadDotEnv() error {
	for _, p := range []string{".env.local", ".env"} {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig reads path (optional) and applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	// Set default values
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "data/practice.db")
	v.SetDefault("llm.primary_model", "gpt-4o-mini")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.secondary_name", "secondary")
	v.SetDefault("llm.secondary_model", "gpt-4o-mini")
	v.SetDefault("llm.max_attempts", 2)
	v.SetDefault("tts.base_url", "https://api.elevenlabs.io/v1")
	v.SetDefault("tts.model_id", "eleven_monolingual_v1")
	v.SetDefault("tts.player_cmd", []string{"ffplay", "-nodisp", "-autoexit", "-loglevel", "quiet", "-"})
	v.SetDefault("tts.speaker_cmd", []string{"espeak-ng", "-v", "en-us", "-s", "170"})
	v.SetDefault("speech.locale", "en-US")
	v.SetDefault("speech.language", "en")
	v.SetDefault("speech.sample_rate", 16000)
	v.SetDefault("speech.capture_cmd", []string{"arecord", "-q", "-f", "S16_LE", "-c", "1", "-r", "16000", "-t", "raw"})
	v.SetDefault("recorder.dir", "data/recordings")
	v.SetDefault("recorder.retention_days", 30)
	v.SetDefault("storage.reminders_path", "data/reminders.json")
	v.SetDefault("storage.credentials_path", "data/credentials.json")
	v.SetDefault("log.level", "info")

	// Enable environment variable support
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	// Check for DATABASE_URL environment variable
	if dbURL := v.GetString("DATABASE_URL"); dbURL != "" {
		dbConfig, err := parseDatabaseURL(dbURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse DATABASE_URL: %w", err)
		}
		config.Database = dbConfig
	}

	// Provider keys use their conventional variable names
	if token := v.GetString("TELEGRAM_TOKEN"); token != "" {
		config.Telegram.Token = token
	}
	if apiKey := v.GetString("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.PrimaryAPIKey = apiKey
	}
	if apiKey := v.GetString("SECONDARY_LLM_API_KEY"); apiKey != "" {
		config.LLM.SecondaryAPIKey = apiKey
	}
	if apiKey := v.GetString("ELEVENLABS_API_KEY"); apiKey != "" {
		config.TTS.APIKey = apiKey
	}
	if apiKey := v.GetString("RECOGNIZER_API_KEY"); apiKey != "" {
		config.Speech.APIKey = apiKey
	}

	return &config, nil
}
