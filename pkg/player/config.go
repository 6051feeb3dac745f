package player

import (
	"time"

	"github.com/xaionaro-go/playback/pkg/avclock"
	"github.com/xaionaro-go/playback/pkg/framequeue"
)

const (
	// DefaultTickPeriod is used when the source cannot report its average
	// frame rate.
	DefaultTickPeriod = 33 * time.Millisecond

	DefaultPausePollInterval = 10 * time.Millisecond
	DefaultReadRetryInterval = 10 * time.Millisecond

	DefaultAudioWriteRetryInterval = 10 * time.Millisecond
	DefaultAudioWriteRetryCount    = 5

	DefaultRendererCacheFlushInterval = 4

	DefaultVolume = 75
)

type Config struct {
	QueueCapacity       int           `yaml:"queue_capacity"`
	SyncThreshold       time.Duration `yaml:"sync_threshold"`
	MaxFrameDelay       time.Duration `yaml:"max_frame_delay"`
	MaxConsecutiveSkips uint32        `yaml:"max_consecutive_skips"`

	// PausePollInterval bounds both the pause/resume reaction latency and
	// how quickly the worker observes Stop.
	PausePollInterval time.Duration `yaml:"pause_poll_interval"`

	// ReadRetryInterval is the backoff after a transient packet read
	// error.
	ReadRetryInterval time.Duration `yaml:"read_retry_interval"`

	AudioWriteRetryInterval time.Duration `yaml:"audio_write_retry_interval"`
	AudioWriteRetryCount    int           `yaml:"audio_write_retry_count"`

	// TickPeriod is the display cadence to suggest to the owner; the
	// source's derived period (SourceInfo.TickPeriod) takes precedence.
	TickPeriod time.Duration `yaml:"tick_period"`

	// AutoRestart makes end-of-stream seek back to the first frame and
	// continue playing instead of stopping and notifying.
	AutoRestart bool `yaml:"auto_restart"`

	// RendererCacheFlushInterval rate-limits the renderer's expensive
	// cache invalidation to every Nth published frame.
	RendererCacheFlushInterval uint64 `yaml:"renderer_cache_flush_interval"`

	// Volume is the initial PCM gain in percent (0..100).
	Volume int `yaml:"volume"`

	AudioEnabled bool `yaml:"audio_enabled"`
	SyncEnabled  bool `yaml:"sync_enabled"`
}

var DefaultConfig = func() Config {
	return Config{
		QueueCapacity:              framequeue.DefaultCapacity,
		SyncThreshold:              avclock.DefaultSyncThreshold,
		MaxFrameDelay:              avclock.DefaultMaxFrameDelay,
		MaxConsecutiveSkips:        avclock.DefaultMaxConsecutiveSkips,
		PausePollInterval:          DefaultPausePollInterval,
		ReadRetryInterval:          DefaultReadRetryInterval,
		AudioWriteRetryInterval:    DefaultAudioWriteRetryInterval,
		AudioWriteRetryCount:       DefaultAudioWriteRetryCount,
		TickPeriod:                 DefaultTickPeriod,
		RendererCacheFlushInterval: DefaultRendererCacheFlushInterval,
		Volume:                     DefaultVolume,
		AudioEnabled:               true,
		SyncEnabled:                true,
	}
}

func (cfg Config) clockConfig() avclock.Config {
	return avclock.Config{
		SyncThreshold:       cfg.SyncThreshold,
		MaxFrameDelay:       cfg.MaxFrameDelay,
		MaxConsecutiveSkips: cfg.MaxConsecutiveSkips,
	}
}

type Option interface {
	Apply(cfg *Config)
}

type Options []Option

func (s Options) Config() Config {
	cfg := DefaultConfig()
	s.apply(&cfg)
	return cfg
}

func (s Options) apply(cfg *Config) {
	for _, opt := range s {
		opt.Apply(cfg)
	}
}

type OptionQueueCapacity int

func (opt OptionQueueCapacity) Apply(cfg *Config) {
	cfg.QueueCapacity = int(opt)
}

type OptionSyncThreshold time.Duration

func (opt OptionSyncThreshold) Apply(cfg *Config) {
	cfg.SyncThreshold = time.Duration(opt)
}

type OptionMaxFrameDelay time.Duration

func (opt OptionMaxFrameDelay) Apply(cfg *Config) {
	cfg.MaxFrameDelay = time.Duration(opt)
}

type OptionMaxConsecutiveSkips uint32

func (opt OptionMaxConsecutiveSkips) Apply(cfg *Config) {
	cfg.MaxConsecutiveSkips = uint32(opt)
}

type OptionPausePollInterval time.Duration

func (opt OptionPausePollInterval) Apply(cfg *Config) {
	cfg.PausePollInterval = time.Duration(opt)
}

type OptionReadRetryInterval time.Duration

func (opt OptionReadRetryInterval) Apply(cfg *Config) {
	cfg.ReadRetryInterval = time.Duration(opt)
}

type OptionAudioWriteRetryInterval time.Duration

func (opt OptionAudioWriteRetryInterval) Apply(cfg *Config) {
	cfg.AudioWriteRetryInterval = time.Duration(opt)
}

type OptionAudioWriteRetryCount int

func (opt OptionAudioWriteRetryCount) Apply(cfg *Config) {
	cfg.AudioWriteRetryCount = int(opt)
}

type OptionTickPeriod time.Duration

func (opt OptionTickPeriod) Apply(cfg *Config) {
	cfg.TickPeriod = time.Duration(opt)
}

type OptionAutoRestart bool

func (opt OptionAutoRestart) Apply(cfg *Config) {
	cfg.AutoRestart = bool(opt)
}

type OptionRendererCacheFlushInterval uint64

func (opt OptionRendererCacheFlushInterval) Apply(cfg *Config) {
	cfg.RendererCacheFlushInterval = uint64(opt)
}

type OptionVolume int

func (opt OptionVolume) Apply(cfg *Config) {
	cfg.Volume = int(opt)
}

type OptionAudioEnabled bool

func (opt OptionAudioEnabled) Apply(cfg *Config) {
	cfg.AudioEnabled = bool(opt)
}

type OptionSyncEnabled bool

func (opt OptionSyncEnabled) Apply(cfg *Config) {
	cfg.SyncEnabled = bool(opt)
}
