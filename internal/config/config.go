package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"trivia-duel-service/internal/app"
)

// Broadcast drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverNATS   = "nats"
)

type Server struct {
	Port string `yaml:"port" env:"PORT"`
}

type Postgres struct {
	URL string `yaml:"url" env:"POSTGRES_URL"`
}

type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB"`
	TTL      string `yaml:"ttl" env:"REDIS_TTL"`
}

type NATS struct {
	URL   string `yaml:"url" env:"NATS_URL"`
	Token string `yaml:"token" env:"NATS_TOKEN"`
}

type Broadcast struct {
	Driver string `yaml:"driver" env:"BROADCAST_DRIVER"`
}

type Log struct {
	Level  string `yaml:"level" env:"LOG_LEVEL"`
	Format string `yaml:"format" env:"LOG_FORMAT"`
}

type HTTP struct {
	RateLimit      int      `yaml:"rate_limit" env:"RATE_LIMIT"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

type Game struct {
	QuestionsPerRound   int    `yaml:"questions_per_round" env:"GAME_QUESTIONS_PER_ROUND"`
	TimeLimit           string `yaml:"time_limit" env:"GAME_TIME_LIMIT"`
	AnswerGrace         string `yaml:"answer_grace" env:"GAME_ANSWER_GRACE"`
	PointsPossible      int    `yaml:"points_possible" env:"GAME_POINTS_POSSIBLE"`
	CategorySuggestions int    `yaml:"category_suggestions" env:"GAME_CATEGORY_SUGGESTIONS"`
	WinnerBonusPercent  *int   `yaml:"winner_bonus_percent" env:"GAME_WINNER_BONUS_PERCENT"`
	InviteGameTypeID    int64  `yaml:"invite_game_type_id" env:"GAME_INVITE_GAME_TYPE_ID"`
	AnswerKeyTTL        string `yaml:"answer_key_ttl" env:"GAME_ANSWER_KEY_TTL"`
}

type Config struct {
	Server    Server    `yaml:"server"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	NATS      NATS      `yaml:"nats"`
	Broadcast Broadcast `yaml:"broadcast"`
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	Game      Game      `yaml:"game"`
}

// Load reads the YAML file at path, then lets environment variables (and a
// .env file in the working directory, if any) override it. A missing YAML
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Config{}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.BroadcastDriver() {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("broadcast driver redis needs redis.addr")
		}
	case DriverNATS:
		if c.NATS.URL == "" {
			return errors.New("broadcast driver nats needs nats.url")
		}
	default:
		return fmt.Errorf("unknown broadcast driver %q", c.Broadcast.Driver)
	}
	return nil
}

// BroadcastDriver defaults to the in-process hub.
func (c Config) BroadcastDriver() string {
	d := strings.ToLower(strings.TrimSpace(c.Broadcast.Driver))
	if d == "" {
		return DriverMemory
	}
	return d
}

// Settings converts the game section to engine settings. Unset values fall
// back to the engine defaults.
func (c Config) Settings() app.Settings {
	d := app.DefaultSettings()
	s := app.Settings{
		QuestionsPerRound:   c.Game.QuestionsPerRound,
		TimeLimit:           TTLDuration(c.Game.TimeLimit, d.TimeLimit),
		AnswerGrace:         TTLDuration(c.Game.AnswerGrace, d.AnswerGrace),
		PointsPossible:      c.Game.PointsPossible,
		CategorySuggestions: c.Game.CategorySuggestions,
		WinnerBonusPercent:  d.WinnerBonusPercent,
		InviteGameTypeID:    c.Game.InviteGameTypeID,
	}
	if c.Game.WinnerBonusPercent != nil {
		s.WinnerBonusPercent = *c.Game.WinnerBonusPercent
	}
	return s
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
