package embedder

// frames slices samples into windows of size advancing by hop. The last
// window is zero-padded, and input shorter than one window yields a single
// padded window.
//
// Returns the flat [count * size] window data and count.
func frames(samples []float32, size, hop int) ([]float32, int) {
	count := 1
	if len(samples) > size {
		count += (len(samples) - size + hop - 1) / hop
	}

	out := make([]float32, count*size)
	for i := 0; i < count; i++ {
		start := i * hop
		end := start + size
		if end > len(samples) {
			end = len(samples)
		}
		copy(out[i*size:], samples[start:end])
	}
	return out, count
}
