package client

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"testing"
	"time"

	"github.com/aldiwan/majlis/internal/audio"
	"github.com/aldiwan/majlis/internal/codec"
)

type fakeClock struct {
	t float64
}

func (c *fakeClock) Now() float64 { return c.t }

type playedBuf struct {
	start float64
	dur   time.Duration
}

type fakeSink struct {
	played []playedBuf
}

func (s *fakeSink) PlayAt(buf Buffer, start float64) {
	s.played = append(s.played, playedBuf{start: start, dur: buf.Duration})
}

// durDecoder treats the payload as a duration in seconds.
type durDecoder struct{}

func (durDecoder) Decode(raw []byte) (Buffer, error) {
	secs, err := strconv.ParseFloat(string(raw), 64)
	if err != nil {
		return Buffer{}, fmt.Errorf("unparseable chunk: %v", err)
	}
	return Buffer{Duration: time.Duration(secs * float64(time.Second))}, nil
}

func chunk(seconds float64) string {
	return codec.Encode("audio/test", []byte(strconv.FormatFloat(seconds, 'f', -1, 64)))
}

// Three chunks of 2.0s, 1.5s, 3.0s arriving instantly at clock zero land
// at 0.0, 2.0, 3.5 and leave the horizon at 6.5.
func TestBackToBackScheduling(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, durDecoder{}, sink, SharedTimeline)

	for _, d := range []float64{2.0, 1.5, 3.0} {
		if _, err := s.Enqueue("speaker", chunk(d)); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	wantStarts := []float64{0.0, 2.0, 3.5}
	if len(sink.played) != 3 {
		t.Fatalf("played %d chunks, want 3", len(sink.played))
	}
	for i, want := range wantStarts {
		if sink.played[i].start != want {
			t.Errorf("chunk %d start = %v, want %v", i, sink.played[i].start, want)
		}
	}
	if got := s.NextPlayTime(); got != 6.5 {
		t.Errorf("NextPlayTime = %v, want 6.5", got)
	}
}

// A chunk is never scheduled in the past: when the clock has moved past
// the horizon, playback resumes at the current time and the gap stays
// silent, not synthesized.
func TestLateDeliveryLeavesGap(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, durDecoder{}, sink, SharedTimeline)

	s.Enqueue("speaker", chunk(1.0)) // plays 0.0 - 1.0
	clock.t = 5.0
	slot, err := s.Enqueue("speaker", chunk(1.0))
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if slot.Start != 5.0 {
		t.Errorf("late chunk start = %v, want 5.0 (clock now)", slot.Start)
	}
	if got := s.NextPlayTime(); got != 6.0 {
		t.Errorf("NextPlayTime = %v, want 6.0", got)
	}
}

// Under arbitrary delivery delays, starts are non-decreasing and
// start(n+1) >= start(n) + d(n): no overlap, ever.
func TestNoOverlapUnderArbitraryDelays(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, durDecoder{}, sink, SharedTimeline)
	rng := rand.New(rand.NewSource(3))

	for i := 0; i < 200; i++ {
		clock.t += rng.Float64() * 0.5 // non-negative delivery delay
		d := 0.05 + rng.Float64()*0.4
		if _, err := s.Enqueue("speaker", chunk(d)); err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
	}

	for i := 1; i < len(sink.played); i++ {
		prev, cur := sink.played[i-1], sink.played[i]
		if cur.start < prev.start {
			t.Fatalf("chunk %d starts before chunk %d", i, i-1)
		}
		if cur.start < prev.start+prev.dur.Seconds()-1e-9 {
			t.Fatalf("chunk %d overlaps chunk %d: %v < %v+%v", i, i-1, cur.start, prev.start, prev.dur.Seconds())
		}
	}
}

// One corrupt chunk is dropped; the timeline and later chunks are unaffected.
func TestCorruptChunkIsDropped(t *testing.T) {
	clock := &fakeClock{}
	sink := &fakeSink{}
	s := NewScheduler(clock, durDecoder{}, sink, SharedTimeline)

	s.Enqueue("speaker", chunk(1.0))
	before := s.NextPlayTime()

	if _, err := s.Enqueue("speaker", "data:audio/test;base64,????"); err == nil {
		t.Fatal("corrupt transferable accepted")
	} else if !errors.Is(err, codec.ErrDecode) {
		t.Errorf("error %v does not wrap codec.ErrDecode", err)
	}

	if _, err := s.Enqueue("speaker", codec.Encode("audio/test", []byte("not-a-number"))); err == nil {
		t.Fatal("undecodable payload accepted")
	} else if !errors.Is(err, codec.ErrDecode) {
		t.Errorf("error %v does not wrap codec.ErrDecode", err)
	}

	if got := s.NextPlayTime(); got != before {
		t.Errorf("bad chunks moved the timeline: %v -> %v", before, got)
	}

	slot, err := s.Enqueue("speaker", chunk(1.0))
	if err != nil {
		t.Fatalf("stream halted after bad chunk: %v", err)
	}
	if slot.Start != 1.0 {
		t.Errorf("next good chunk start = %v, want 1.0", slot.Start)
	}
}

// Shared timeline serializes simultaneous speakers; per-sender mode lets
// them overlap.
func TestTimelineModes(t *testing.T) {
	t.Run("shared serializes speakers", func(t *testing.T) {
		clock := &fakeClock{}
		sink := &fakeSink{}
		s := NewScheduler(clock, durDecoder{}, sink, SharedTimeline)

		s.Enqueue("alice", chunk(2.0))
		slot, _ := s.Enqueue("basim", chunk(2.0))
		if slot.Start != 2.0 {
			t.Errorf("second speaker start = %v, want 2.0 (queued behind first)", slot.Start)
		}
	})

	t.Run("per-sender overlaps speakers", func(t *testing.T) {
		clock := &fakeClock{}
		sink := &fakeSink{}
		s := NewScheduler(clock, durDecoder{}, sink, PerSenderTimeline)

		s.Enqueue("alice", chunk(2.0))
		slot, _ := s.Enqueue("basim", chunk(2.0))
		if slot.Start != 0.0 {
			t.Errorf("second speaker start = %v, want 0.0 (own timeline)", slot.Start)
		}

		slot, _ = s.Enqueue("alice", chunk(1.0))
		if slot.Start != 2.0 {
			t.Errorf("first speaker's next chunk start = %v, want 2.0", slot.Start)
		}
	})
}

func TestWAVDecoder(t *testing.T) {
	blob, err := audio.Encode(make([]int16, 8000), 8000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	buf, err := WAVDecoder{}.Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if buf.Duration != time.Second {
		t.Errorf("Duration = %v, want 1s", buf.Duration)
	}
	if buf.SampleRate != 8000 {
		t.Errorf("SampleRate = %d, want 8000", buf.SampleRate)
	}

	if _, err := (WAVDecoder{}).Decode([]byte("garbage")); err == nil {
		t.Error("WAVDecoder accepted garbage")
	}
}
