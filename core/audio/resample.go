package audio

// Resample converts a linear16 clip to sampleRate with linear interpolation.
// Clips already at the target rate are returned unchanged.
func Resample(clip Clip, sampleRate int) Clip {
	if clip.EncodingInfo.Format != EncodingLinear16 || sampleRate <= 0 ||
		clip.EncodingInfo.SampleRate == sampleRate || clip.EncodingInfo.SampleRate <= 0 {
		return clip
	}

	in := Samples16(clip.Data)
	if len(in) == 0 {
		return Clip{EncodingInfo: EncodingInfo{SampleRate: sampleRate, Format: EncodingLinear16}}
	}

	ratio := float64(clip.EncodingInfo.SampleRate) / float64(sampleRate)
	outLen := int(float64(len(in)) / ratio)
	out := make([]int16, outLen)
	for i := range out {
		position := float64(i) * ratio
		index := int(position)
		if index >= len(in)-1 {
			out[i] = in[len(in)-1]
			continue
		}
		frac := position - float64(index)
		out[i] = int16(float64(in[index])*(1-frac) + float64(in[index+1])*frac)
	}

	return Clip{Data: Bytes16(out), EncodingInfo: EncodingInfo{SampleRate: sampleRate, Format: EncodingLinear16}}
}
