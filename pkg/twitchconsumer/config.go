package twitchconsumer

import (
	"strings"

	"github.com/samber/lo"
)

// DefaultChannel is joined when no channel is configured.
const DefaultChannel = "yoannfleurydev"

// Config holds the settings for connecting to Twitch chat.
type Config struct {
	// Channels is the list of channels to join, with or without a leading '#'.
	Channels []string `envconfig:"CHANNELS" default:"yoannfleurydev" validate:"min=1,dive,required"`
	// Username and OAuthToken select an authenticated login. When either is empty
	// the client connects anonymously, which is enough to read chat.
	Username   string `envconfig:"USERNAME"`
	OAuthToken string `envconfig:"OAUTH_TOKEN"`
	// BufferSize is the number of raw events held between the IRC reader and the
	// pipeline. Events arriving while it is full are dropped.
	BufferSize int `envconfig:"BUFFER_SIZE" default:"1024" validate:"min=1"`
}

// NewConfigDefaults returns a Config for the default channel.
func NewConfigDefaults() *Config {
	return &Config{
		Channels:   []string{DefaultChannel},
		BufferSize: 1024,
	}
}

// Anonymous reports whether the config lacks credentials for an authenticated login.
func (c *Config) Anonymous() bool {
	return c.Username == "" || c.OAuthToken == ""
}

// NormalizeChannels trims, lower-cases and de-duplicates channel names and strips
// a leading '#'. Blank entries are dropped.
func NormalizeChannels(channels []string) []string {
	normalized := lo.FilterMap(channels, func(channel string, _ int) (string, bool) {
		name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(channel), "#"))
		return name, name != ""
	})
	return lo.Uniq(normalized)
}
