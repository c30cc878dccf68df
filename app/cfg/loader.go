package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"
	_ "time/tzdata"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

var ErrMissingToken = errors.New("DISCORD_TOKEN is not set; provide it via the environment or --token")

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Chat platform
	Token         string `long:"token" env:"DISCORD_TOKEN" description:"Bot token used to authenticate against the chat platform (required unless --dry-run)"`
	DiscordAPIURL string `long:"discord-api-url" env:"DISCORD_API_URL" default:"https://discord.com/api/v10" description:"Base URL of the Discord REST API"`
	DryRun        bool   `long:"dry-run" env:"DRY_RUN" description:"Log deliveries instead of sending them"`

	// Dispatch
	CheckInterval  int `long:"check-interval" env:"CHECK_INTERVAL" default:"3600" description:"Seconds between dispatch cycles"`
	DeliveryDelay  int `long:"delivery-delay" env:"DELIVERY_DELAY" default:"5" description:"Seconds to pause after each delivered item"`
	LedgerCapacity int `long:"ledger-capacity" env:"LEDGER_CAPACITY" default:"200" description:"Number of delivered item ids remembered for deduplication"`

	// Feeds
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing category feed files (built-in sources are used when missing)"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"0" description:"Per-request timeout in seconds for every endpoint (0 keeps per-category settings)"`
	FetchRetries      uint64 `long:"fetch-retries" env:"FETCH_RETRIES" default:"2" description:"Extra attempts for transient feed errors"`
	AllowPrivateFeeds bool   `long:"allow-private-feeds" env:"ALLOW_PRIVATE_FEEDS" description:"Allow feed endpoints on private or loopback addresses"`
	NoLanguageFlags   bool   `long:"no-language-flags" env:"NO_LANGUAGE_FLAGS" description:"Do not prefix titles with a flag for the detected language"`
	UserAgent         string `long:"user-agent" env:"USER_AGENT" default:"news-relay/1.0 (+https://github.com/lysyi3m/news-relay)" description:"User agent string for HTTP requests"`

	// State
	StateBackend string `long:"state-backend" env:"STATE_BACKEND" default:"file" choice:"file" choice:"sqlite" choice:"memory" description:"Where the ledger and tenant configs are stored"`
	StateDir     string `long:"state-dir" env:"STATE_DIR" default:"./data" description:"Directory for the file state backend"`
	SQLitePath   string `long:"sqlite-path" env:"SQLITE_PATH" default:"./data/news-relay.db" description:"Database file for the sqlite state backend"`

	// HTTP
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for the admin endpoints (disabled when empty)"`

	// Application metadata
	LogJSON  bool   `long:"log-json" env:"LOG_JSON" description:"Emit logs as JSON"`
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for message footers (e.g., UTC, America/Sao_Paulo)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses the process arguments and environment. It returns nil, nil
// when help was requested.
func Load() (*Cfg, error) {
	return LoadArgs(os.Args[1:])
}

func LoadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(&raw); err != nil {
		return nil, err
	}

	cfg := &Cfg{
		Token:             raw.Token,
		DiscordAPIURL:     raw.DiscordAPIURL,
		DryRun:            raw.DryRun,
		CheckInterval:     time.Duration(raw.CheckInterval) * time.Second,
		DeliveryDelay:     time.Duration(raw.DeliveryDelay) * time.Second,
		LedgerCapacity:    raw.LedgerCapacity,
		FeedsDir:          raw.FeedsDir,
		FetchTimeout:      time.Duration(raw.FetchTimeout) * time.Second,
		FetchRetries:      raw.FetchRetries,
		AllowPrivateFeeds: raw.AllowPrivateFeeds,
		LanguageFlags:     !raw.NoLanguageFlags,
		UserAgent:         raw.UserAgent,
		StateBackend:      raw.StateBackend,
		StateDir:          raw.StateDir,
		SQLitePath:        raw.SQLitePath,
		Port:              raw.Port,
		APIAccessKey:      raw.APIAccessKey,
		LogJSON:           raw.LogJSON,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		slog.Warn("Invalid timezone, using UTC", "timezone", cfg.Timezone, "error", err)
		loc = time.UTC
	}
	cfg.Location = loc

	return cfg, nil
}

func validate(raw *rawCfg) error {
	if raw.Token == "" && !raw.DryRun {
		return ErrMissingToken
	}
	if raw.CheckInterval <= 0 {
		return fmt.Errorf("check interval must be positive, got %d", raw.CheckInterval)
	}
	if raw.DeliveryDelay < 0 {
		return fmt.Errorf("delivery delay must not be negative, got %d", raw.DeliveryDelay)
	}
	if raw.LedgerCapacity <= 0 {
		return fmt.Errorf("ledger capacity must be positive, got %d", raw.LedgerCapacity)
	}
	if raw.FetchTimeout < 0 {
		return fmt.Errorf("fetch timeout must not be negative, got %d", raw.FetchTimeout)
	}
	return nil
}

func loadLocation(timezone string) (*time.Location, error) {
	if timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(timezone)
}
