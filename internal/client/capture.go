package client

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/aldiwan/majlis/internal/codec"
)

// ChunkInterval is the wall-clock slicing interval. Shorter means lower
// latency and more chunks on the wire; the original clients record with
// a 100ms timeslice.
const ChunkInterval = 100 * time.Millisecond

const DefaultMIME = "audio/wav"

// ErrDeviceUnavailable means the input device could not be acquired
// (permission denied or no device). Capture does not proceed.
var ErrDeviceUnavailable = errors.New("client: audio device unavailable")

// Source abstracts the microphone. Start blocks until the stream is
// acquired or fails with ErrDeviceUnavailable.
type Source interface {
	Start(ctx context.Context) (io.ReadCloser, error)
}

// Emitter receives each encoded chunk as soon as it is ready.
// Fire-and-forget: emitting chunk n+1 never waits on delivery of n.
type Emitter interface {
	EmitChunk(transferable string)
}

type EmitterFunc func(string)

func (f EmitterFunc) EmitChunk(t string) { f(t) }

type CaptureConfig struct {
	MIME     string
	Interval time.Duration
	// Wrap makes one raw slice self-contained (e.g. WAV framing) before
	// encoding. Nil passes the slice through unchanged.
	Wrap func([]byte) ([]byte, error)
}

// Capture slices a live input stream into fixed-interval chunks and
// hands each one to the emitter as soon as it is available. There is no
// batching: one tick, one chunk.
type Capture struct {
	src Source
	out Emitter
	cfg CaptureConfig

	mu      sync.Mutex
	pending []byte

	stream  io.ReadCloser
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

func NewCapture(src Source, out Emitter, cfg CaptureConfig) *Capture {
	if cfg.MIME == "" {
		cfg.MIME = DefaultMIME
	}
	if cfg.Interval <= 0 {
		cfg.Interval = ChunkInterval
	}
	return &Capture{src: src, out: out, cfg: cfg}
}

// Start acquires the input stream and begins slicing. Returns the
// source's error (typically ErrDeviceUnavailable) without starting
// anything when acquisition fails.
func (cp *Capture) Start(ctx context.Context) error {
	stream, err := cp.src.Start(ctx)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	cp.stream = stream
	cp.cancel = cancel
	cp.started = true

	cp.wg.Add(2)
	go cp.readLoop(ctx, stream)
	go cp.sliceLoop(ctx)
	return nil
}

// Stop finalizes capture and releases the input device. Any slice
// already accumulated is still emitted before teardown completes.
func (cp *Capture) Stop() {
	if !cp.started {
		return
	}
	cp.cancel()
	_ = cp.stream.Close()
	cp.wg.Wait()
	cp.emitSlice()
	cp.started = false
}

func (cp *Capture) readLoop(ctx context.Context, stream io.Reader) {
	defer cp.wg.Done()
	buf := make([]byte, 4096)
	for {
		n, err := stream.Read(buf)
		if n > 0 {
			cp.mu.Lock()
			cp.pending = append(cp.pending, buf[:n]...)
			cp.mu.Unlock()
		}
		if err != nil {
			if err != io.EOF && ctx.Err() == nil {
				log.Warn().Err(err).Str("module", "client.capture").Msg("input stream read")
			}
			return
		}
	}
}

func (cp *Capture) sliceLoop(ctx context.Context) {
	defer cp.wg.Done()
	ticker := time.NewTicker(cp.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cp.emitSlice()
		}
	}
}

func (cp *Capture) emitSlice() {
	cp.mu.Lock()
	slice := cp.pending
	cp.pending = nil
	cp.mu.Unlock()
	if len(slice) == 0 {
		return
	}

	if cp.cfg.Wrap != nil {
		wrapped, err := cp.cfg.Wrap(slice)
		if err != nil {
			log.Warn().Err(err).Str("module", "client.capture").Msg("wrap slice, chunk dropped")
			return
		}
		slice = wrapped
	}
	cp.out.EmitChunk(codec.Encode(cp.cfg.MIME, slice))
}
