// SPDX-License-Identifier: MIT
/*
Package udp publishes spectrum snapshots as fixed-layout binary datagrams
for receivers that cannot speak WebSocket (visualisers, embedded displays).

Packet layout, big endian:

	+-------------------+-----------------------+---------------+-------------------------+
	|  Sequence Number  |       Timestamp       |   Magnitude   |       Magnitudes        |
	|      (uint32)     |   (int64, ns epoch)   |  Count uint16 |      (N * float32)      |
	+-------------------+-----------------------+---------------+-------------------------+
*/
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"patchbay/internal/log"
)

// HeaderSize is the number of bytes before the magnitudes.
const HeaderSize = 4 + 8 + 2

// Source provides the latest magnitudes. *analysis.Processor satisfies it.
type Source interface {
	GetMagnitudesInto(dest []float64) error
	GetFFTSize() int
}

// Packet is a decoded datagram.
type Packet struct {
	Seq        uint32
	Timestamp  time.Time
	Magnitudes []float32
}

// Publisher periodically snapshots a Source and sends the result through a
// Sender from its own goroutine. Start and Stop may be called repeatedly.
type Publisher struct {
	sender   *Sender
	source   Source
	interval time.Duration

	mu   sync.Mutex // Protects done during Start/Stop.
	done chan struct{}
	wg   sync.WaitGroup

	seq    uint32
	mags   []float64 // Snapshot from the source.
	packet []byte    // Reused for every datagram.
}

// NewPublisher sizes its buffers for source's FFT. An interval <= 0 defaults
// to 16ms (~60Hz).
func NewPublisher(interval time.Duration, sender *Sender, source Source) (*Publisher, error) {
	if sender == nil {
		return nil, errors.New("udp: sender cannot be nil")
	}
	if source == nil {
		return nil, errors.New("udp: source cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
		log.Warnf("udp: invalid interval, defaulting to %s", interval)
	}
	bins := source.GetFFTSize()/2 + 1
	if bins > math.MaxUint16 {
		return nil, fmt.Errorf("udp: %d bins do not fit in a packet", bins)
	}
	return &Publisher{
		sender:   sender,
		source:   source,
		interval: interval,
		mags:     make([]float64, bins),
		packet:   make([]byte, 0, HeaderSize+4*bins),
	}, nil
}

// Start launches the publishing goroutine. It is a no-op while running.
func (p *Publisher) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	done := make(chan struct{})
	p.done = done

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		log.Debugf("udp: publishing every %s", p.interval)
		for {
			select {
			case now := <-ticker.C:
				p.publish(now)
			case <-done:
				return
			}
		}
	}()
}

// Stop signals the goroutine and waits for it to exit. It is a no-op when
// not running.
func (p *Publisher) Stop() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done == nil {
		return
	}
	close(done)
	p.wg.Wait()
}

// Close stops publishing and closes the sender.
func (p *Publisher) Close() error {
	p.Stop()
	return p.sender.Close()
}

// Sent returns the sequence number of the last packet built.
func (p *Publisher) Sent() uint32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

func (p *Publisher) publish(now time.Time) {
	if err := p.source.GetMagnitudesInto(p.mags); err != nil {
		log.Errorf("udp: reading magnitudes: %v", err)
		return
	}
	p.mu.Lock()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	p.packet = AppendPacket(p.packet[:0], seq, now, p.mags)
	if err := p.sender.Send(p.packet); err != nil {
		log.Debugf("udp: packet %d: %v", seq, err)
	}
}

// AppendPacket encodes one datagram onto dst. Magnitudes are narrowed to
// float32.
func AppendPacket(dst []byte, seq uint32, ts time.Time, magnitudes []float64) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(ts.UnixNano()))
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(magnitudes)))
	for _, m := range magnitudes {
		dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(m)))
	}
	return dst
}

// DecodePacket parses a datagram produced by AppendPacket.
func DecodePacket(data []byte) (Packet, error) {
	if len(data) < HeaderSize {
		return Packet{}, fmt.Errorf("udp: packet of %d bytes is shorter than the header", len(data))
	}
	n := int(binary.BigEndian.Uint16(data[12:14]))
	if len(data) != HeaderSize+4*n {
		return Packet{}, fmt.Errorf("udp: packet of %d bytes does not hold %d magnitudes", len(data), n)
	}
	pkt := Packet{
		Seq:        binary.BigEndian.Uint32(data[0:4]),
		Timestamp:  time.Unix(0, int64(binary.BigEndian.Uint64(data[4:12]))),
		Magnitudes: make([]float32, n),
	}
	for i := range pkt.Magnitudes {
		off := HeaderSize + 4*i
		pkt.Magnitudes[i] = math.Float32frombits(binary.BigEndian.Uint32(data[off : off+4]))
	}
	return pkt, nil
}
