package ecc

// hammingParityCheck sets column c to the binary value c+1.
func hammingParityCheck(parity, total int) *Matrix {
	h := NewMatrix(parity, total)
	for c := 0; c < total; c++ {
		for r := 0; r < parity; r++ {
			h.b[r][c] = (c+1)&(1<<uint(r)) != 0
		}
	}
	return h
}

// extendedHammingParityCheck is a Hamming matrix over all but the last
// column, with an overall parity row appended at the bottom.
func extendedHammingParityCheck(parity, total int) *Matrix {
	h := NewMatrix(parity, total)
	for c := 0; c < total-1; c++ {
		for r := 0; r < parity-1; r++ {
			h.b[r][c] = (c+1)&(1<<uint(r)) != 0
		}
	}
	for c := 0; c < total; c++ {
		h.b[parity-1][c] = true
	}
	return h
}
