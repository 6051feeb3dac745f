package player

import (
	"fmt"
	"io"

	"github.com/goccy/go-yaml"
)

// config is Config without methods, to avoid infinite recursion during
// (un)marshalling.
type config Config

var _ yaml.BytesUnmarshaler = (*Config)(nil)
var _ yaml.BytesMarshaler = (*Config)(nil)

func (cfg *Config) UnmarshalYAML(b []byte) error {
	if err := yaml.Unmarshal(b, (*config)(cfg)); err != nil {
		return fmt.Errorf("unable to unserialize the data: %w", err)
	}
	return nil
}

func (cfg Config) MarshalYAML() ([]byte, error) {
	b, err := yaml.Marshal((config)(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to serialize the config: %w", err)
	}
	return b, nil
}

// ReadConfigFrom parses a YAML-serialized Config on top of the defaults,
// so a partial file overrides only what it mentions.
func ReadConfigFrom(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	b, err := io.ReadAll(r)
	if err != nil {
		return cfg, fmt.Errorf("unable to read: %w", err)
	}
	if err := cfg.UnmarshalYAML(b); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Options converts the config into the equivalent option list, so a
// deserialized config can be combined with programmatic overrides.
func (cfg Config) Options() Options {
	return Options{
		OptionQueueCapacity(cfg.QueueCapacity),
		OptionSyncThreshold(cfg.SyncThreshold),
		OptionMaxFrameDelay(cfg.MaxFrameDelay),
		OptionMaxConsecutiveSkips(cfg.MaxConsecutiveSkips),
		OptionPausePollInterval(cfg.PausePollInterval),
		OptionReadRetryInterval(cfg.ReadRetryInterval),
		OptionAudioWriteRetryInterval(cfg.AudioWriteRetryInterval),
		OptionAudioWriteRetryCount(cfg.AudioWriteRetryCount),
		OptionTickPeriod(cfg.TickPeriod),
		OptionAutoRestart(cfg.AutoRestart),
		OptionRendererCacheFlushInterval(cfg.RendererCacheFlushInterval),
		OptionVolume(cfg.Volume),
		OptionAudioEnabled(cfg.AudioEnabled),
		OptionSyncEnabled(cfg.SyncEnabled),
	}
}
