package commands

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"time"

	fyneapp "fyne.io/fyne/v2/app"
	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/playback/pkg/audiosink"
	"github.com/xaionaro-go/playback/pkg/clock"
	"github.com/xaionaro-go/playback/pkg/player"
	"github.com/xaionaro-go/playback/pkg/player/libav"
	"github.com/xaionaro-go/playback/pkg/renderer"
)

var (
	// Access these variables only from a main package:

	Root = &cobra.Command{
		Use:   os.Args[0] + " <media-url>",
		Args:  cobra.ExactArgs(1),
		Run:   play,
		Short: "play a media file or a stream in a window",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			l := logger.FromCtx(ctx).WithLevel(LoggerLevel)
			ctx = logger.CtxWithLogger(ctx, l)
			cmd.SetContext(ctx)
			logger.Debugf(ctx, "log-level: %v", LoggerLevel)

			netPprofAddr, err := cmd.Flags().GetString("go-net-pprof-addr")
			if err != nil {
				l.Error("unable to get the value of the flag 'go-net-pprof-addr': %v", err)
			}
			if netPprofAddr != "" {
				observability.Go(ctx, func(ctx context.Context) {
					l.Infof("starting to listen for net/pprof requests at '%s'", netPprofAddr)
					l.Error(http.ListenAndServe(netPprofAddr, nil))
				})
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			logger.Debug(ctx, "end")
		},
	}

	LoggerLevel = logger.LevelWarning
)

func init() {
	Root.PersistentFlags().Var(&LoggerLevel, "log-level", "")
	Root.PersistentFlags().String("go-net-pprof-addr", "", "address to listen to for net/pprof requests")
	Root.Flags().String("config", "", "path to a YAML file with the playback configuration")
	Root.Flags().Bool("auto-restart", false, "seek back to the first frame and continue playing on end of stream")
	Root.Flags().Bool("no-audio", false, "do not decode or play audio streams")
	Root.Flags().Int("volume", player.DefaultVolume, "audio volume in percent (0..100)")
	Root.Flags().Duration("sync-threshold", 0, "audio/video drift tolerated before frames get skipped or repeated (0 means the default)")
	Root.Flags().Int("queue-capacity", 0, "decoded frame queue capacity (0 means the default)")
	Root.Flags().Duration("tick-period", 0, "display refresh period (0 means: derive from the stream)")
}

func play(cmd *cobra.Command, args []string) {
	ctx := cmd.Context()
	mediaURL := args[0]

	cfg, err := readConfig(cmd)
	assertNoError(ctx, err)
	opts := append(cfg.Options(), flagOptions(cmd.Flags())...)

	noAudio, err := cmd.Flags().GetBool("no-audio")
	assertNoError(ctx, err)

	src, err := libav.OpenSource(ctx, mediaURL, libav.SourceConfig{
		AudioDisabled: noAudio,
	})
	assertNoError(ctx, err)

	app := fyneapp.New()
	window := app.NewWindow(mediaURL)

	var sink player.AudioSink
	if !noAudio {
		sink = audiosink.New(ctx, audiosink.DefaultSampleRate, time.Second)
	}

	p := player.New(renderer.NewFyne(window), sink, opts...)
	assertNoError(ctx, p.OpenSource(ctx, src))
	assertNoError(ctx, p.Start(ctx))

	observability.Go(ctx, func(ctx context.Context) {
		t := clock.NewTicker(p.TickPeriod(ctx))
		defer t.Stop()
		endChan := p.EndChan(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-endChan:
				logger.Infof(ctx, "the playback ended")
				app.Quit()
				return
			case <-t.C:
				p.Tick(ctx)
			}
		}
	})

	window.Show()
	app.Run()

	if err := p.Close(ctx); err != nil {
		logger.Errorf(ctx, "unable to close the player: %v", err)
	}
}

func readConfig(cmd *cobra.Command) (player.Config, error) {
	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return player.DefaultConfig(), err
	}
	if configPath == "" {
		return player.DefaultConfig(), nil
	}

	f, err := os.Open(configPath)
	if err != nil {
		return player.DefaultConfig(), fmt.Errorf("unable to open the config file '%s': %w", configPath, err)
	}
	defer f.Close()
	return player.ReadConfigFrom(f)
}

// flagOptions converts only the flags the user actually set, so a config
// file value is not clobbered by a flag default.
func flagOptions(flags *pflag.FlagSet) player.Options {
	var opts player.Options
	if flags.Changed("auto-restart") {
		v, _ := flags.GetBool("auto-restart")
		opts = append(opts, player.OptionAutoRestart(v))
	}
	if flags.Changed("no-audio") {
		v, _ := flags.GetBool("no-audio")
		opts = append(opts, player.OptionAudioEnabled(!v))
	}
	if flags.Changed("volume") {
		v, _ := flags.GetInt("volume")
		opts = append(opts, player.OptionVolume(v))
	}
	if flags.Changed("sync-threshold") {
		v, _ := flags.GetDuration("sync-threshold")
		opts = append(opts, player.OptionSyncThreshold(v))
	}
	if flags.Changed("queue-capacity") {
		v, _ := flags.GetInt("queue-capacity")
		opts = append(opts, player.OptionQueueCapacity(v))
	}
	if flags.Changed("tick-period") {
		v, _ := flags.GetDuration("tick-period")
		opts = append(opts, player.OptionTickPeriod(v))
	}
	return opts
}

func assertNoError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	logger.Fatal(ctx, err)
}
