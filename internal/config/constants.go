package config

import "time"

const (
	// Scanning
	DefaultScanThreshold       = 2
	DefaultScanWorkers         = 8
	MaxScanWorkers             = 20
	DefaultScanTimeout         = 15 * time.Minute
	DefaultScanProbesPerSecond = 10

	// Pipeline
	DefaultPipelineWorkers = 4
	InboundQueueSize       = 256

	// Notifications
	DefaultWebhookTimeout  = 10 * time.Second
	EmbedFieldLimit        = 1024
	NotificationMemorySize = 10000

	// Command replies
	ReplyChunkLimit = 1950
	TopFlagsLimit   = 25

	// Operator tokens
	TokenTTL = 72 * time.Hour
)

// Store file names under DATA_DIR.
const (
	CasesDir          = "cases"
	ArchiveDir        = "archive"
	LogsDir           = "logs"
	WatchlistFile     = "watchlist.json"
	BlacklistFile     = "blacklist.json"
	IgnoredFile       = "ignored_servers.json"
	SuggestedKeywords = "suggested_keywords.json"
)

// RiskColors are the embed colours per tier, plus the watchlist colour.
var RiskColors = map[string]int{
	"low":       0xffff00,
	"medium":    0xffa500,
	"high":      0xff0000,
	"watchlist": 0x1e90ff,
}
