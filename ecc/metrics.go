package ecc

// Metrics summarizes the hardware cost of a generated code.
type Metrics struct {
	RowMax int // largest row weight of H, the widest syndrome XOR
	Syns   int // largest number of correctable syndromes compared for one bit
	Ones   int // ones in H
}

func (c *Code) Metrics() (Metrics, error) {
	h, err := c.ParityCheck()
	if err != nil {
		return Metrics{}, err
	}
	var m Metrics
	for r := 0; r < h.Rows(); r++ {
		w := h.RowWeight(r)
		m.Ones += w
		if w > m.RowMax {
			m.RowMax = w
		}
	}
	m.Syns = NewFlipCalculator(h, c.correctable).FanIn()
	return m, nil
}
