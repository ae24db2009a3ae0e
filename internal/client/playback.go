package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aldiwan/majlis/internal/audio"
	"github.com/aldiwan/majlis/internal/codec"
)

// Clock is a monotonic audio clock, in seconds.
type Clock interface {
	Now() float64
}

// Buffer is one decoded, playable chunk.
type Buffer struct {
	PCM        []int16
	SampleRate int
	Duration   time.Duration
}

// Decoder turns a raw chunk payload into a playable buffer.
type Decoder interface {
	Decode(raw []byte) (Buffer, error)
}

// Sink plays a buffer starting at the given clock time.
type Sink interface {
	PlayAt(buf Buffer, start float64)
}

// Timeline selects how concurrent speakers share the playback clock.
type Timeline int

const (
	// SharedTimeline serializes chunks from all senders onto one
	// timeline, the behavior existing clients expect: two simultaneous
	// speakers play back-to-back instead of mixed.
	SharedTimeline Timeline = iota
	// PerSenderTimeline gives each sender an independent timeline, so
	// simultaneous speakers overlap instead of queueing.
	PerSenderTimeline
)

// Slot records where one chunk landed on the timeline. It exists only
// for the chunk's decode-to-playback transition.
type Slot struct {
	Start    float64
	Duration time.Duration
}

// Scheduler turns a per-sender-ordered stream of chunks into gapless,
// non-overlapping playback. The rule per chunk:
//
//	start = max(nextPlayTime, now)
//	nextPlayTime = start + duration
//
// so chunks never overlap and are never scheduled in the past. When
// delivery outpaces playback they queue back-to-back; when it falls
// behind, the gap is audible silence. Nothing is synthesized.
type Scheduler struct {
	clock Clock
	dec   Decoder
	sink  Sink
	mode  Timeline

	mu       sync.Mutex
	next     float64
	bySender map[string]float64
}

func NewScheduler(clock Clock, dec Decoder, sink Sink, mode Timeline) *Scheduler {
	return &Scheduler{
		clock:    clock,
		dec:      dec,
		sink:     sink,
		mode:     mode,
		next:     clock.Now(),
		bySender: make(map[string]float64),
	}
}

// Enqueue decodes one transferable chunk and schedules it. Decode
// failures return an ErrDecode-wrapped error; the caller drops the chunk
// and the stream continues — one bad chunk never halts playback.
func (s *Scheduler) Enqueue(sender, transferable string) (Slot, error) {
	_, raw, err := codec.Decode(transferable)
	if err != nil {
		return Slot{}, err
	}
	buf, err := s.dec.Decode(raw)
	if err != nil {
		if !errors.Is(err, codec.ErrDecode) {
			err = fmt.Errorf("%w: %v", codec.ErrDecode, err)
		}
		return Slot{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	next := s.next
	if s.mode == PerSenderTimeline {
		var ok bool
		if next, ok = s.bySender[sender]; !ok {
			next = now
		}
	}

	start := next
	if now > start {
		start = now
	}
	s.sink.PlayAt(buf, start)

	end := start + buf.Duration.Seconds()
	if s.mode == PerSenderTimeline {
		s.bySender[sender] = end
	} else {
		s.next = end
	}
	return Slot{Start: start, Duration: buf.Duration}, nil
}

// NextPlayTime reports the shared timeline's schedule horizon.
func (s *Scheduler) NextPlayTime() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}

// WAVDecoder decodes the WAV framing the capture pipeline produces.
type WAVDecoder struct{}

func (WAVDecoder) Decode(raw []byte) (Buffer, error) {
	samples, rate, err := audio.Decode(raw)
	if err != nil {
		return Buffer{}, err
	}
	return Buffer{
		PCM:        samples,
		SampleRate: rate,
		Duration:   time.Duration(len(samples)) * time.Second / time.Duration(rate),
	}, nil
}

// WallClock is a monotonic clock seeded at creation, for use where no
// real audio device clock exists.
type WallClock struct {
	epoch time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{epoch: time.Now()}
}

func (c *WallClock) Now() float64 {
	return time.Since(c.epoch).Seconds()
}
