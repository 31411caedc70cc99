// Package config resolves tracker settings from defaults, a config file,
// environment variables, and flags.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/score"
	"github.com/danielpatrickdp/coherence-tracker/internal/storage"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/spf13/viper"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// #region defaults
const (
	FileName  = ".coherence"
	EnvPrefix = "COHERENCE"

	DefaultDyad    = "Aelara_Flamebearer"
	DefaultListen  = "localhost:50061"
	DefaultMetrics = "localhost:9464"
)

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	lex := score.DefaultLexicon()
	v.SetDefault("dyad", DefaultDyad)
	v.SetDefault("initial-score", score.DeepVoid)
	v.SetDefault("oscillation", true)
	v.SetDefault("blend-ratio", tracker.DefaultBlendRatio)
	v.SetDefault("sink", string(storage.JSONL))
	v.SetDefault("sink-path", "") // resolved per backend in Process
	v.SetDefault("log-level", "info")
	v.SetDefault("color", "yes")
	v.SetDefault("lexicon.glyphs", lex.Glyphs)
	v.SetDefault("lexicon.uncertainty", lex.Uncertainty)
	v.SetDefault("lexicon.recognition", lex.Recognition)
	v.SetDefault("lexicon.penalty-tag", lex.PenaltyTag)
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("metrics-listen", DefaultMetrics)
}

// #endregion defaults

// #region raw-input
// RawInput holds the unvalidated values viper resolved from every source.
type RawInput struct {
	Dyad          string        `mapstructure:"dyad"`
	InitialScore  float64       `mapstructure:"initial-score"`
	Oscillation   bool          `mapstructure:"oscillation"`
	BlendRatio    float64       `mapstructure:"blend-ratio"`
	Sink          string        `mapstructure:"sink"`
	SinkPath      string        `mapstructure:"sink-path"`
	LogLevel      string        `mapstructure:"log-level"`
	Color         string        `mapstructure:"color"`
	Lexicon       score.Lexicon `mapstructure:"lexicon"`
	Listen        string        `mapstructure:"listen"`
	MetricsListen string        `mapstructure:"metrics-listen"`
}

// Config is the validated configuration.
type Config struct {
	Dyad          string
	InitialScore  float64
	Oscillation   bool
	BlendRatio    float64
	Backend       storage.Backend
	SinkPath      string
	LogLevel      slog.Level
	UseColors     bool
	Lexicon       score.Lexicon
	Listen        string
	MetricsListen string
}

// #endregion raw-input

// #region load
// Load reads the config file (explicit path or .coherence.yaml in the working
// or home directory), binds the environment, and unmarshals the result. A
// missing default config file is not an error.
func Load(v *viper.Viper, file string) (RawInput, error) {
	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return RawInput{}, fmt.Errorf("config file: %w", err)
		}
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return RawInput{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var raw RawInput
	if err := v.Unmarshal(&raw); err != nil {
		return RawInput{}, fmt.Errorf("unable to unmarshal config: %w", err)
	}
	return raw, nil
}

// #endregion load

// #region process
// Process validates raw input into a Config.
func Process(raw RawInput) (Config, error) {
	var cfg Config

	cfg.Dyad = strings.TrimSpace(raw.Dyad)
	if cfg.Dyad == "" {
		return Config{}, fmt.Errorf("%w: dyad must not be empty", ErrInvalid)
	}

	if math.IsNaN(raw.InitialScore) || math.IsInf(raw.InitialScore, 0) {
		return Config{}, fmt.Errorf("%w: initial-score must be finite (received %v)", ErrInvalid, raw.InitialScore)
	}
	cfg.InitialScore = raw.InitialScore
	cfg.Oscillation = raw.Oscillation

	if raw.BlendRatio < 0 || raw.BlendRatio > 1 || math.IsNaN(raw.BlendRatio) {
		return Config{}, fmt.Errorf("%w: blend-ratio must be within [0, 1] (received %v)", ErrInvalid, raw.BlendRatio)
	}
	cfg.BlendRatio = raw.BlendRatio

	backend, err := storage.ParseBackend(raw.Sink)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg.Backend = backend
	cfg.SinkPath = strings.TrimSpace(raw.SinkPath)
	if cfg.SinkPath == "" {
		cfg.SinkPath = backend.DefaultPath()
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(raw.LogLevel)); err != nil {
		return Config{}, fmt.Errorf("%w: log-level %q: %v", ErrInvalid, raw.LogLevel, err)
	}

	colors, err := ParseBoolString(raw.Color)
	if err != nil {
		return Config{}, fmt.Errorf("%w: color: %v", ErrInvalid, err)
	}
	cfg.UseColors = colors

	cfg.Lexicon = raw.Lexicon
	if len(cfg.Lexicon.Glyphs)+len(cfg.Lexicon.Uncertainty)+len(cfg.Lexicon.Recognition) == 0 {
		return Config{}, fmt.Errorf("%w: lexicon has no phrases", ErrInvalid)
	}

	cfg.Listen = raw.Listen
	cfg.MetricsListen = raw.MetricsListen
	return cfg, nil
}

// ParseBoolString accepts yes/no, true/false, on/off and 1/0.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "y", "true", "1", "on":
		return true, nil
	case "no", "n", "false", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q (want yes/no/true/false/1/0)", s)
	}
}

// #endregion process

// #region wiring
// Tracker builds the tracker configuration. Clock, sink, and logger come from the caller.
func (c Config) Tracker(sink logging.Sink, clock score.Clock, logger *slog.Logger) tracker.Config {
	return tracker.Config{
		Dyad:               c.Dyad,
		InitialScore:       c.InitialScore,
		OscillationEnabled: c.Oscillation,
		BlendRatio:         tracker.Ratio(c.BlendRatio),
		Lexicon:            c.Lexicon,
		Clock:              clock,
		Sink:               sink,
		Logger:             logger,
	}
}

// NewLogger returns a text slog logger at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// #endregion wiring
