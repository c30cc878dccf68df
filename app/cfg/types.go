package cfg

import "time"

type Cfg struct {
	// Chat platform
	Token         string
	DiscordAPIURL string
	DryRun        bool

	// Dispatch
	CheckInterval  time.Duration
	DeliveryDelay  time.Duration
	LedgerCapacity int

	// Feeds
	FeedsDir          string
	FetchTimeout      time.Duration // zero keeps each source's own timeout
	FetchRetries      uint64
	AllowPrivateFeeds bool
	LanguageFlags     bool
	UserAgent         string

	// State
	StateBackend string
	StateDir     string
	SQLitePath   string

	// HTTP
	Port         string
	APIAccessKey string

	// Application metadata
	LogJSON  bool
	Timezone string
	Location *time.Location
	Debug    bool
	Version  string
}
