package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/playback/pkg/player"
)

const DefaultOutputSampleRate = 44100

// resampler converts decoder output into interleaved signed 16-bit stereo
// PCM, the one format the audio sink consumes.
type resampler struct {
	resampleContext *astiav.SoftwareResampleContext
	sampleRate      int
}

var _ player.Resampler = (*resampler)(nil)

func newResampler(sampleRate int) *resampler {
	if sampleRate <= 0 {
		sampleRate = DefaultOutputSampleRate
	}
	return &resampler{
		resampleContext: astiav.AllocSoftwareResampleContext(),
		sampleRate:      sampleRate,
	}
}

func (r *resampler) close() {
	if r.resampleContext != nil {
		r.resampleContext.Free()
		r.resampleContext = nil
	}
}

func (r *resampler) SampleRate() int {
	return r.sampleRate
}

func (r *resampler) Convert(
	ctx context.Context,
	raw player.RawAudioFrame,
) ([]byte, error) {
	lf, ok := raw.(*rawAudioFrame)
	if !ok {
		return nil, fmt.Errorf("received a frame of an unexpected origin: %T", raw)
	}

	dst := framePool.Get()
	defer framePool.Put(dst)
	dst.SetChannelLayout(astiav.ChannelLayoutStereo)
	dst.SetSampleFormat(astiav.SampleFormatS16)
	dst.SetSampleRate(r.sampleRate)

	if err := r.resampleContext.ConvertFrame(lf.raw, dst); err != nil {
		return nil, fmt.Errorf("unable to resample the frame: %w", err)
	}
	if dst.NbSamples() == 0 {
		return nil, nil
	}

	pcm, err := dst.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("unable to access the resampled data: %w", err)
	}

	// dst goes back to the pool; the caller gets an independent copy
	result := make([]byte, len(pcm))
	copy(result, pcm)
	return result, nil
}
