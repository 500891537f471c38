// ABOUTME: Linear interpolation resampler for mono 16-bit PCM
// ABOUTME: Converts decoder output rates to the device rate
package resample

// Resample converts mono samples from inRate to outRate using linear
// interpolation. Equal rates return the input untouched. The output
// holds floor(len(in) * outRate / inRate) samples.
func Resample(in []int16, inRate, outRate int) []int16 {
	if inRate <= 0 || outRate <= 0 || len(in) == 0 {
		return nil
	}
	if inRate == outRate {
		return in
	}

	outLen := len(in) * outRate / inRate
	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		pos := i * inRate
		src := pos / outRate
		frac := pos % outRate

		s0 := int32(in[src])
		s1 := s0
		if src+1 < len(in) {
			s1 = int32(in[src+1])
		}
		out[i] = int16(s0 + (s1-s0)*int32(frac)/int32(outRate))
	}
	return out
}
