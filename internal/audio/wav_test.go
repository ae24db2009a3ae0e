package audio

import (
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	samples := make([]int16, 800)
	for i := range samples {
		samples[i] = int16(i*37 - 4000)
	}

	blob, err := Encode(samples, 8000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, rate, err := Decode(blob)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if rate != 8000 {
		t.Errorf("rate = %d, want 8000", rate)
	}
	if len(got) != len(samples) {
		t.Fatalf("sample count = %d, want %d", len(got), len(samples))
	}
	for i := range samples {
		if got[i] != samples[i] {
			t.Fatalf("sample %d = %d, want %d", i, got[i], samples[i])
		}
	}
}

func TestDuration(t *testing.T) {
	tests := []struct {
		name    string
		samples int
		rate    int
		want    time.Duration
	}{
		{"one second", 8000, 8000, time.Second},
		{"100ms slice", 800, 8000, 100 * time.Millisecond},
		{"high rate", 44100, 44100, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := Encode(make([]int16, tt.samples), tt.rate)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			d, err := Duration(blob)
			if err != nil {
				t.Fatalf("Duration: %v", err)
			}
			if d != tt.want {
				t.Errorf("Duration = %v, want %v", d, tt.want)
			}
		})
	}
}

func TestEncodeRejectsBadInput(t *testing.T) {
	if _, err := Encode(nil, 8000); err == nil {
		t.Error("Encode accepted empty samples")
	}
	if _, err := Encode(make([]int16, 10), 0); err == nil {
		t.Error("Encode accepted zero sample rate")
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	valid, err := Encode(make([]int16, 100), 8000)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty", nil},
		{"truncated header", valid[:20]},
		{"bad magic", append([]byte("NOTAWAVFILE!"), valid[12:]...)},
		{"data chunk overruns blob", valid[:len(valid)-10]},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Decode(tt.blob); err == nil {
				t.Error("Decode accepted malformed blob")
			}
		})
	}
}
