package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tradedash/internal/providers/comtrade"
)

const (
	defaultEnv      = "prod"
	defaultHTTPAddr = ":8050"
	defaultYear     = "2024"
)

// Config holds everything the CLI needs to assemble the dashboard.
type Config struct {
	Env         string
	HTTPAddr    string
	DBPath      string
	OptionsFile string
	Verbose     bool
	Comtrade    comtrade.Config
}

// Option is one dropdown entry.
type Option struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

// Options are the choices offered by the input controls.
type Options struct {
	Reporters       []Option `yaml:"reporters" json:"reporters"`
	Partners        []Option `yaml:"partners" json:"partners"`
	Classifications []string `yaml:"classifications" json:"classifications"`
	DefaultReporter string   `yaml:"default_reporter" json:"defaultReporter"`
	DefaultPartner  string   `yaml:"default_partner" json:"defaultPartner"`
	DefaultYear     string   `yaml:"default_year" json:"defaultYear"`
}

func DefaultOptions() Options {
	return Options{
		Reporters: []Option{
			{Label: "Nigeria", Value: "NGA"},
			{Label: "United States", Value: "USA"},
			{Label: "China", Value: "CHN"},
		},
		Partners: []Option{
			{Label: "World", Value: "WLD"},
			{Label: "India", Value: "IND"},
			{Label: "United States", Value: "USA"},
			{Label: "China", Value: "CHN"},
		},
		Classifications: []string{"HS", "SITC", "BEC"},
		DefaultReporter: "NGA",
		DefaultPartner:  "WLD",
		DefaultYear:     defaultYear,
	}
}

// Load reads an optional .env file into the process environment (existing
// variables win) and then builds the Config from the environment.
func Load(envFile string) (Config, error) {
	if strings.TrimSpace(envFile) != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("config: load %s: %w", envFile, err)
		}
	}

	ct, err := comtrade.ConfigFromEnv()
	if err != nil {
		return Config{}, err
	}

	return Config{
		Env:         getenv("TRADEDASH_ENV", defaultEnv),
		HTTPAddr:    getenv("TRADEDASH_HTTP_ADDR", defaultHTTPAddr),
		DBPath:      strings.TrimSpace(os.Getenv("TRADEDASH_DB")),
		OptionsFile: strings.TrimSpace(os.Getenv("TRADEDASH_OPTIONS_FILE")),
		Verbose:     getenvBool("TRADEDASH_VERBOSE", false),
		Comtrade:    ct,
	}, nil
}

// LoadOptions reads the dropdown options from a YAML file. An empty path
// yields DefaultOptions; fields missing from the file keep their defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()
	if strings.TrimSpace(path) == "" {
		return opts, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("config: read options: %w", err)
	}

	var file Options
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return Options{}, fmt.Errorf("config: parse options %s: %w", path, err)
	}

	if len(file.Reporters) > 0 {
		opts.Reporters = file.Reporters
	}
	if len(file.Partners) > 0 {
		opts.Partners = file.Partners
	}
	if len(file.Classifications) > 0 {
		opts.Classifications = file.Classifications
	}
	if file.DefaultReporter != "" {
		opts.DefaultReporter = file.DefaultReporter
	}
	if file.DefaultPartner != "" {
		opts.DefaultPartner = file.DefaultPartner
	}
	if file.DefaultYear != "" {
		opts.DefaultYear = file.DefaultYear
	}
	return opts, opts.Validate()
}

func (o Options) Validate() error {
	if len(o.Reporters) == 0 {
		return errors.New("config: at least one reporter option is required")
	}
	if len(o.Partners) == 0 {
		return errors.New("config: at least one partner option is required")
	}
	for _, list := range [][]Option{o.Reporters, o.Partners} {
		for _, opt := range list {
			if strings.TrimSpace(opt.Value) == "" {
				return fmt.Errorf("config: option %q has no value", opt.Label)
			}
		}
	}
	return nil
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
