// Headless majlis client: joins the room, prints presence and messages,
// schedules incoming voice chunks for playback, and can stream a test
// tone or stdin audio through the capture pipeline.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"io"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/aldiwan/majlis/internal/audio"
	"github.com/aldiwan/majlis/internal/client"
	"github.com/aldiwan/majlis/internal/domain"
)

func main() {
	url := pflag.String("url", "ws://localhost:8080/api/ws", "relay websocket endpoint")
	user := pflag.String("user", "ضيف", "display name")
	speak := pflag.Bool("speak", false, "stream audio into the majlis")
	source := pflag.String("source", "tone", "audio source: tone or stdin")
	rate := pflag.Int("rate", 8000, "sample rate for the tone source")
	perSender := pflag.Bool("per-sender", false, "independent playback timeline per speaker")
	pflag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := domain.ValidateUsername(*user); err != nil {
		log.Fatal().Err(err).Msg("bad username")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	conn, err := client.Dial(ctx, *url)
	if err != nil {
		log.Fatal().Err(err).Msg("dial relay")
	}
	defer conn.Close()

	mode := client.SharedTimeline
	if *perSender {
		mode = client.PerSenderTimeline
	}
	sched := client.NewScheduler(client.NewWallClock(), client.WAVDecoder{}, logSink{}, mode)

	conn.On(domain.EventGroupCount, func(data json.RawMessage) {
		var p domain.GroupCount
		if json.Unmarshal(data, &p) == nil {
			log.Info().Int("count", p.Count).Msg("majlis count")
		}
	})
	conn.On(domain.EventGroupActive, func(data json.RawMessage) {
		var p domain.GroupActive
		if json.Unmarshal(data, &p) == nil {
			log.Info().Bool("active", p.Active).Msg("majlis active")
		}
	})
	conn.On(domain.EventGroupStatus, func(data json.RawMessage) {
		var p domain.GroupStatus
		if json.Unmarshal(data, &p) == nil {
			log.Info().Str("status", p.Message).Msg("majlis status")
		}
	})
	conn.On(domain.EventGroupMessage, func(data json.RawMessage) {
		var p domain.GroupMessage
		if json.Unmarshal(data, &p) == nil {
			log.Info().Str("from", p.Username).Str("text", p.Message).Msg("group message")
		}
	})
	conn.On(domain.EventGroupVoiceChunk, func(data json.RawMessage) {
		var p domain.GroupVoiceChunk
		if json.Unmarshal(data, &p) != nil {
			return
		}
		if _, err := sched.Enqueue(p.Username, p.Chunk); err != nil {
			log.Warn().Err(err).Str("from", p.Username).Msg("chunk dropped")
		}
	})

	if err := conn.Emit(domain.EventJoinGroup, domain.JoinGroup{Username: *user}); err != nil {
		log.Fatal().Err(err).Msg("join majlis")
	}

	var capture *client.Capture
	if *speak {
		var src client.Source
		switch *source {
		case "stdin":
			src = stdinSource{}
		default:
			src = &toneSource{rate: *rate, freq: 440}
		}
		capture = client.NewCapture(src, chunkEmitter{conn: conn, user: *user}, client.CaptureConfig{
			Wrap: func(slice []byte) ([]byte, error) {
				return audio.Encode(bytesToSamples(slice), *rate)
			},
		})
		if err := capture.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("start capture")
		}
	}

	// On signal: flush capture, say goodbye, then close the socket to
	// unblock Run's read loop.
	go func() {
		<-ctx.Done()
		if capture != nil {
			capture.Stop()
		}
		_ = conn.Emit(domain.EventLeaveGroup, domain.LeaveGroup{Username: *user})
		// Give the writer a moment to flush the leave before closing.
		time.Sleep(100 * time.Millisecond)
		conn.Close()
	}()

	runErr := conn.Run(ctx)

	if runErr != nil && ctx.Err() == nil {
		log.Error().Err(runErr).Msg("connection lost")
	}
	log.Info().Msg("client exited")
}

// chunkEmitter forwards each encoded slice as a groupVoiceChunk.
type chunkEmitter struct {
	conn *client.Conn
	user string
}

func (e chunkEmitter) EmitChunk(transferable string) {
	_ = e.conn.Emit(domain.EventGroupVoiceChunk, domain.GroupVoiceChunk{
		Username: e.user,
		Chunk:    transferable,
	})
}

// logSink "plays" scheduled buffers by reporting their slots.
type logSink struct{}

func (logSink) PlayAt(buf client.Buffer, start float64) {
	log.Info().
		Float64("start", start).
		Dur("duration", buf.Duration).
		Int("samples", len(buf.PCM)).
		Msg("chunk scheduled")
}

// toneSource produces a paced sine wave as 16-bit mono PCM.
type toneSource struct {
	rate int
	freq float64
}

func (s *toneSource) Start(ctx context.Context) (io.ReadCloser, error) {
	pr, pw := io.Pipe()
	go func() {
		defer pw.Close()
		const step = 10 * time.Millisecond
		ticker := time.NewTicker(step)
		defer ticker.Stop()
		samplesPerStep := s.rate / 100
		var n int
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				block := make([]byte, samplesPerStep*2)
				for i := 0; i < samplesPerStep; i++ {
					v := int16(12000 * math.Sin(2*math.Pi*s.freq*float64(n)/float64(s.rate)))
					binary.LittleEndian.PutUint16(block[i*2:], uint16(v))
					n++
				}
				if _, err := pw.Write(block); err != nil {
					return
				}
			}
		}
	}()
	return pr, nil
}

// stdinSource streams raw PCM piped into the process.
type stdinSource struct{}

func (stdinSource) Start(ctx context.Context) (io.ReadCloser, error) {
	fi, err := os.Stdin.Stat()
	if err != nil || fi.Mode()&os.ModeCharDevice != 0 {
		return nil, client.ErrDeviceUnavailable
	}
	return os.Stdin, nil
}

func bytesToSamples(b []byte) []int16 {
	samples := make([]int16, len(b)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return samples
}
