package track

// Joiner merges synthesized audio segments into one playable blob.
type Joiner interface {
	Join(segments [][]byte) ([]byte, error)
}

// RawJoiner concatenates segments byte for byte.
//
// MP3 frames are self delimiting, so a plain concatenation of the MP3
// segments returned by the HTTP backend plays back to back in common
// players without re-encoding.
type RawJoiner struct{}

// Join appends the segments in order.
func (RawJoiner) Join(segments [][]byte) ([]byte, error) {
	total := 0
	for _, segment := range segments {
		total += len(segment)
	}

	joined := make([]byte, 0, total)
	for _, segment := range segments {
		joined = append(joined, segment...)
	}

	return joined, nil
}
