package player

// applyVolumeS16LE scales interleaved signed 16-bit little-endian samples
// in place by volume percent (0..100). 100 is a no-op, 0 produces silence.
func applyVolumeS16LE(pcm []byte, volume int) {
	if volume >= 100 {
		return
	}
	if volume < 0 {
		volume = 0
	}
	for i := 0; i+1 < len(pcm); i += 2 {
		sample := int32(int16(uint16(pcm[i]) | uint16(pcm[i+1])<<8))
		sample = sample * int32(volume) / 100
		pcm[i] = byte(uint16(sample))
		pcm[i+1] = byte(uint16(sample) >> 8)
	}
}
