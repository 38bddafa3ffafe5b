package http

// TrimBytes removes every leading and trailing byte matching pred. Leading
// bytes are dropped with a single copy to the front and trailing bytes with a
// single truncation, so the result shares b's backing array.
func TrimBytes(b []byte, pred func(byte) bool) []byte {
	start := 0
	for start < len(b) && pred(b[start]) {
		start++
	}
	if start == len(b) {
		return b[:0]
	}

	end := len(b)
	for end > start && pred(b[end-1]) {
		end--
	}

	if start == 0 {
		return b[:end]
	}
	n := copy(b, b[start:end])
	return b[:n]
}

func isLineBreak(c byte) bool {
	return c == '\n' || c == '\r'
}
