package audio

import "time"

// Clip is a complete, playable audio buffer.
type Clip struct {
	Data         []byte
	EncodingInfo EncodingInfo
}

func (c Clip) IsEmpty() bool {
	return len(c.Data) == 0
}

func (c Clip) Duration() time.Duration {
	return c.EncodingInfo.DurationOf(len(c.Data))
}

// Chunks splits the clip into consecutive pieces of at most chunkDuration.
// Chunk boundaries never split a sample.
func (c Clip) Chunks(chunkDuration time.Duration) [][]byte {
	if len(c.Data) == 0 {
		return nil
	}

	chunkBytes := c.EncodingInfo.BytesFor(chunkDuration)
	if sampleSize := c.EncodingInfo.Format.ByteSize(); sampleSize > 1 {
		chunkBytes -= chunkBytes % sampleSize
	}
	if chunkBytes <= 0 {
		return [][]byte{c.Data}
	}

	chunks := make([][]byte, 0, len(c.Data)/chunkBytes+1)
	for start := 0; start < len(c.Data); start += chunkBytes {
		end := min(start+chunkBytes, len(c.Data))
		chunks = append(chunks, c.Data[start:end])
	}
	return chunks
}
