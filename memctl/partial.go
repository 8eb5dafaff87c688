package memctl

import (
	"errors"
	"fmt"

	"github.com/eccmem/eccmem/ecc"
)

// Granularity is the write mask granularity in bits.
const Granularity = 8

var ErrGranularity = errors.New("memctl: data width is not a whole number of mask bytes")

type partialState int

const (
	partialIdle partialState = iota
	partialWaitRsp
	partialWaitReq
)

func (s partialState) String() string {
	switch s {
	case partialIdle:
		return "IDLE"
	case partialWaitRsp:
		return "WAIT_RSP"
	case partialWaitReq:
		return "WAIT_REQ"
	}
	return fmt.Sprintf("partialState(%d)", int(s))
}

// PartialWrite turns masked writes into a read of the full word followed by
// a write of the merged word. The downstream response to that write answers
// the original request.
type PartialWrite struct {
	down     Controller
	dataBits int
	full     uint64

	state partialState
	addr  uint64
	data  ecc.Word
	mask  uint64
}

func NewPartialWrite(down Controller, dataBits int) (*PartialWrite, error) {
	if dataBits <= 0 || dataBits%Granularity != 0 || dataBits/Granularity > 64 {
		return nil, fmt.Errorf("%w: %d bits", ErrGranularity, dataBits)
	}
	return &PartialWrite{down: down, dataBits: dataBits, full: FullMask(dataBits)}, nil
}

func (p *PartialWrite) isPartial(req Request) bool {
	return req.WriteEn && req.WriteMask&p.full != p.full
}

// merge takes masked bytes from the latched write and the rest from rd.
func (p *PartialWrite) merge(rd ecc.Word) ecc.Word {
	out := ecc.NewWord(p.dataBits)
	for i := 0; i < p.dataBits/Granularity; i++ {
		if p.mask&(1<<uint(i)) != 0 {
			out.SetByte(i, p.data.Byte(i))
		} else {
			out.SetByte(i, rd.Byte(i))
		}
	}
	return out
}

func (p *PartialWrite) downstream(req Request, rspReady bool) (Request, bool) {
	switch p.state {
	case partialWaitRsp:
		rsp := p.down.Response()
		out := Request{Valid: rsp.Valid, Addr: p.addr, WriteEn: true, WriteMask: p.full}
		if rsp.Valid {
			out.WriteData = p.merge(rsp.ReadData)
		}
		return out, true
	case partialWaitReq:
		return Request{Valid: true, Addr: p.addr, WriteEn: true, WriteData: p.data, WriteMask: p.full}, rspReady
	}
	if p.isPartial(req) {
		req.WriteEn = false
	}
	return req, rspReady
}

func (p *PartialWrite) Response() Response {
	if p.state == partialWaitRsp {
		return Response{}
	}
	return p.down.Response()
}

func (p *PartialWrite) Ready(req Request, rspReady bool) bool {
	if p.state != partialIdle {
		return false
	}
	out, dr := p.downstream(req, rspReady)
	return p.down.Ready(out, dr)
}

func (p *PartialWrite) Tick(req Request, rspReady bool) {
	out, dr := p.downstream(req, rspReady)
	downReady := p.down.Ready(out, dr)

	switch p.state {
	case partialIdle:
		if p.isPartial(req) && req.Valid && downReady {
			p.addr = req.Addr
			p.data = req.WriteData.Clone()
			p.mask = req.WriteMask
			p.state = partialWaitRsp
		}
	case partialWaitRsp:
		if out.Valid {
			if downReady {
				p.state = partialIdle
			} else {
				p.data = out.WriteData
				p.state = partialWaitReq
			}
		}
	case partialWaitReq:
		if downReady {
			p.state = partialIdle
		}
	}
	p.down.Tick(out, dr)
}

func (p *PartialWrite) Debug() DebugInfo { return p.down.Debug() }
