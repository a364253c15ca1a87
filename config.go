package tgdispatch

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/prilive-com/tgdispatch/tg"
)

// Config holds the dispatcher settings. A Config is treated as immutable
// once the dispatcher is initialized with it.
type Config struct {
	// Bot token. Required.
	Token tg.SecretToken

	// ChannelID is the default destination for broadcasts: a channel
	// username (with or without "@") or a numeric chat identifier. Required.
	ChannelID string

	// BaseURL is the prefix SendURL puts in front of relative paths.
	// Empty means paths are broadcast as-is.
	BaseURL string

	// ParseMode applies to every outbound message.
	ParseMode tg.ParseMode

	// PollTimeout is the getUpdates long-poll window in seconds.
	PollTimeout int

	// RetryDelay is the pause after a failed getUpdates call.
	RetryDelay time.Duration

	// SendDelay paces the sender loop between deliveries.
	SendDelay time.Duration

	// AllowedUserIDs restricts handler dispatch to these sender ids.
	// Empty means no filtering.
	AllowedUserIDs []int64

	// QueueSize caps each of the two outbound queues.
	QueueSize int

	// APIBaseURL overrides the Telegram API endpoint. Used by tests.
	APIBaseURL string
}

// DefaultConfig returns a Config with sensible defaults.
// Token and ChannelID have no defaults and must be set by the caller.
func DefaultConfig() Config {
	return Config{
		ParseMode:   tg.ParseModeHTML,
		PollTimeout: 30,
		RetryDelay:  5 * time.Second,
		SendDelay:   100 * time.Millisecond,
		QueueSize:   100,
	}
}

// LoadConfig loads configuration from environment variables, optionally
// reading .env files first. Existing environment variables win over file
// values. With no arguments a ./.env file is picked up when present.
func LoadConfig(envFiles ...string) (*Config, error) {
	if len(envFiles) > 0 {
		if err := godotenv.Load(envFiles...); err != nil {
			return nil, err
		}
	} else {
		// No .env file is fine; plain environment variables still apply.
		_ = godotenv.Load()
	}

	cfg := DefaultConfig()

	cfg.Token = tg.SecretToken(getEnv("TELEGRAM_BOT_TOKEN", ""))
	cfg.ChannelID = getEnv("TELEGRAM_CHANNEL_ID", "")
	cfg.BaseURL = getEnv("TELEGRAM_BASE_URL", "")
	cfg.APIBaseURL = getEnv("TELEGRAM_API_BASE_URL", "")

	if mode := getEnv("TELEGRAM_PARSE_MODE", ""); mode != "" {
		cfg.ParseMode = tg.ParseMode(mode)
	}

	if raw := getEnv("TELEGRAM_POLL_TIMEOUT", ""); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, tg.NewValidationError("TELEGRAM_POLL_TIMEOUT", "must be an integer number of seconds")
		}
		cfg.PollTimeout = i
	}

	if raw := getEnv("TELEGRAM_RETRY_DELAY", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, tg.NewValidationError("TELEGRAM_RETRY_DELAY", "must be a duration like 5s")
		}
		cfg.RetryDelay = d
	}

	if raw := getEnv("TELEGRAM_SEND_DELAY", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, tg.NewValidationError("TELEGRAM_SEND_DELAY", "must be a duration like 100ms")
		}
		cfg.SendDelay = d
	}

	if raw := getEnv("TELEGRAM_QUEUE_SIZE", ""); raw != "" {
		i, err := strconv.Atoi(raw)
		if err != nil {
			return nil, tg.NewValidationError("TELEGRAM_QUEUE_SIZE", "must be an integer")
		}
		cfg.QueueSize = i
	}

	if ids := getEnv("TELEGRAM_ALLOWED_USER_IDS", ""); ids != "" {
		for _, part := range strings.Split(ids, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil {
				return nil, tg.NewValidationError("TELEGRAM_ALLOWED_USER_IDS", "must be comma-separated integers")
			}
			cfg.AllowedUserIDs = append(cfg.AllowedUserIDs, id)
		}
	}

	return &cfg, nil
}

// Validate checks that the required fields are present and the rest are
// within range.
func (c *Config) Validate() error {
	if c.Token.IsEmpty() {
		return tg.NewValidationError("Token", "bot token is required")
	}
	if c.ChannelID == "" {
		return tg.NewValidationError("ChannelID", "channel ID is required")
	}
	if !c.ParseMode.IsValid() {
		return tg.NewValidationError("ParseMode", "unsupported parse mode")
	}
	if c.PollTimeout < 0 || c.PollTimeout > 60 {
		return tg.NewValidationError("PollTimeout", "must be 0-60 seconds")
	}
	if c.RetryDelay < 0 {
		return tg.NewValidationError("RetryDelay", "must not be negative")
	}
	if c.SendDelay < 0 {
		return tg.NewValidationError("SendDelay", "must not be negative")
	}
	if c.QueueSize <= 0 {
		return tg.NewValidationError("QueueSize", "must be positive")
	}
	return nil
}

// NormalizedChannelID returns the channel identifier in the form the API
// expects: usernames get an "@" prefix, numeric supergroup/channel ids
// ("-100...") pass through untouched.
func (c *Config) NormalizedChannelID() string {
	if strings.HasPrefix(c.ChannelID, "@") || strings.HasPrefix(c.ChannelID, "-100") {
		return c.ChannelID
	}
	return "@" + c.ChannelID
}

// allowedSender reports whether updates from the given sender may reach
// handlers. A nil sender is never filtered; filtering applies only when an
// allow-list is configured and the sender is known.
func (c *Config) allowedSender(from *tg.User) bool {
	if len(c.AllowedUserIDs) == 0 || from == nil {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == from.ID {
			return true
		}
	}
	return false
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
