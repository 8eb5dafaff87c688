package sim

import (
	"fmt"

	"github.com/eccmem/eccmem/ecc"
	"github.com/eccmem/eccmem/memctl"
)

// maxFailures bounds the mismatch descriptions kept for reporting.
const maxFailures = 16

// Scoreboard mirrors the logical memory contents and checks each response.
// Every response carries the word as it was when its request was accepted,
// so a write answers with the data it replaced.
type Scoreboard struct {
	dataBits int
	mirror   []ecc.Word
	expect   *expected

	Requests      uint64
	Writes        uint64
	Responses     uint64
	Errors        uint64
	Uncorrectable uint64
	Mismatches    uint64
	StoredFlips   uint64
	ReadFlips     uint64
	Failures      []string
}

type expected struct {
	addr  uint64
	data  ecc.Word
	cycle uint64
}

func NewScoreboard(addrBits, dataBits int) *Scoreboard {
	mirror := make([]ecc.Word, 1<<uint(addrBits))
	for i := range mirror {
		mirror[i] = ecc.NewWord(dataBits)
	}
	return &Scoreboard{dataBits: dataBits, mirror: mirror}
}

// Word returns the mirrored contents of addr.
func (s *Scoreboard) Word(addr uint64) ecc.Word {
	return s.mirror[addr%uint64(len(s.mirror))].Clone()
}

// Observe records one cycle. The response side is settled before the
// request side so a cycle may retire one transaction and accept the next.
func (s *Scoreboard) Observe(req memctl.Request, c memctl.Cycle) error {
	if c.RspFire {
		if s.expect == nil {
			return fmt.Errorf("%w: response at cycle %d without a request", ErrOutstanding, c.N)
		}
		s.check(c)
		s.expect = nil
	}
	if !c.ReqFire {
		return nil
	}
	if s.expect != nil {
		return fmt.Errorf("%w: cycle %d accepted %#x while %#x from cycle %d is pending",
			ErrOutstanding, c.N, req.Addr, s.expect.addr, s.expect.cycle)
	}
	s.Requests++
	idx := req.Addr % uint64(len(s.mirror))
	s.expect = &expected{addr: req.Addr, data: s.mirror[idx].Clone(), cycle: c.N}
	if req.WriteEn {
		s.Writes++
		s.merge(idx, req.WriteData, req.WriteMask)
	}
	return nil
}

func (s *Scoreboard) merge(idx uint64, data ecc.Word, mask uint64) {
	w := s.mirror[idx]
	for i := 0; i*8 < s.dataBits; i++ {
		if mask&(1<<uint(i)) != 0 {
			w.SetByte(i, data.Byte(i))
		}
	}
}

func (s *Scoreboard) check(c memctl.Cycle) {
	s.Responses++
	rsp := c.Response
	if rsp.Error {
		s.Errors++
	}
	if rsp.Uncorrectable {
		s.Uncorrectable++
		return
	}
	if rsp.ReadData.Equal(s.expect.data) {
		return
	}
	s.Mismatches++
	if len(s.Failures) < maxFailures {
		s.Failures = append(s.Failures, fmt.Sprintf("cycle %d: read %#x got %s want %s",
			c.N, s.expect.addr, rsp.ReadData.Format(s.dataBits), s.expect.data.Format(s.dataBits)))
	}
}

// Outstanding reports whether a response is still owed.
func (s *Scoreboard) Outstanding() bool { return s.expect != nil }

func (s *Scoreboard) String() string {
	return fmt.Sprintf("requests=%d writes=%d responses=%d errors=%d uncorrectable=%d mismatches=%d",
		s.Requests, s.Writes, s.Responses, s.Errors, s.Uncorrectable, s.Mismatches)
}
