package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestEncodeParseRoundTrip(t *testing.T) {
	payloads := []Frame{
		{Type: Data, Body: []byte("hello")},
		{Type: Resize, Body: EncodeResize(80, 24)},
		{Type: Exit, Body: EncodeExit(137)},
	}

	var stream []byte
	for _, p := range payloads {
		stream = append(stream, Encode(p.Type, p.Body)...)
	}

	var got []Frame
	rest, err := Parse(stream, func(f Frame) {
		body := append([]byte(nil), f.Body...)
		got = append(got, Frame{Type: f.Type, Body: body})
	})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no remainder, got %d bytes", len(rest))
	}
	if len(got) != len(payloads) {
		t.Fatalf("expected %d frames, got %d", len(payloads), len(got))
	}
	for i, p := range payloads {
		if got[i].Type != p.Type || !bytes.Equal(got[i].Body, p.Body) {
			t.Fatalf("frame %d mismatch: got %+v want %+v", i, got[i], p)
		}
	}
}

func TestParseZeroLengthFrameYieldsNoInvocation(t *testing.T) {
	stream := EncodeRaw(nil) // length 0
	stream = append(stream, Encode(Data, []byte("x"))...)

	var calls int
	rest, err := Parse(stream, func(f Frame) { calls++ })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no remainder")
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 invocation, got %d", calls)
	}
}

func TestParsePartialFrameIsPreserved(t *testing.T) {
	full := Encode(Data, []byte("HELLO"))

	var got []Frame
	rest, err := Parse(full[:3], func(f Frame) { got = append(got, f) })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no frames from partial header")
	}
	if !bytes.Equal(rest, full[:3]) {
		t.Fatalf("expected partial bytes preserved untouched")
	}

	rest, err = Parse(append(rest, full[3:]...), func(f Frame) { got = append(got, f) })
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(rest) != 0 {
		t.Fatalf("expected no remainder after completing the frame")
	}
	if len(got) != 1 || string(got[0].Body) != "HELLO" {
		t.Fatalf("expected single HELLO frame, got %+v", got)
	}
}

func TestFrameStraddleArbitrarySplit(t *testing.T) {
	full := Encode(Data, []byte("HELLO"))

	for split := 0; split <= len(full); split++ {
		var got []Frame
		rest, err := Parse(full[:split], func(f Frame) { got = append(got, f) })
		if err != nil {
			t.Fatalf("split %d: Parse first half: %v", split, err)
		}
		combined := append(append([]byte(nil), rest...), full[split:]...)
		rest, err = Parse(combined, func(f Frame) { got = append(got, f) })
		if err != nil {
			t.Fatalf("split %d: Parse second half: %v", split, err)
		}
		if len(rest) != 0 {
			t.Fatalf("split %d: expected no remainder", split)
		}
		if len(got) != 1 || string(got[0].Body) != "HELLO" {
			t.Fatalf("split %d: expected single HELLO frame, got %+v", split, got)
		}
	}
}

func TestParseArbitraryChunking(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	var stream []byte
	var want []string
	for i := 0; i < 20; i++ {
		n := r.Intn(50)
		b := make([]byte, n)
		r.Read(b)
		want = append(want, string(b))
		stream = append(stream, Encode(Data, b)...)
	}

	var leftover []byte
	var got []string
	for len(stream) > 0 {
		chunkLen := 1 + r.Intn(7)
		if chunkLen > len(stream) {
			chunkLen = len(stream)
		}
		leftover = append(leftover, stream[:chunkLen]...)
		stream = stream[chunkLen:]

		var err error
		leftover, err = Parse(leftover, func(f Frame) {
			got = append(got, string(f.Body))
		})
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
	}
	if len(leftover) != 0 {
		t.Fatalf("expected no remainder, got %d bytes", len(leftover))
	}
	if len(got) != len(want) {
		t.Fatalf("got %d frames, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("frame %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestGzipReplayRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog\n"), 3000)

	wire := EncodeReplay(data)
	var frames []Frame
	if _, err := Parse(wire, func(f Frame) { frames = append(frames, f) }); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Type != BufferReplayGzip {
		t.Fatalf("expected BUFFER_REPLAY_GZ for large replay, got %s", frames[0].Type)
	}

	out, err := DecodeReplay(frames[0])
	if err != nil {
		t.Fatalf("DecodeReplay: %v", err)
	}
	if !bytes.Equal(out, data) {
		t.Fatalf("decoded replay mismatch")
	}
}

func TestEncodeReplaySmallStaysUncompressed(t *testing.T) {
	data := []byte("short")
	wire := EncodeReplay(data)

	var frames []Frame
	if _, err := Parse(wire, func(f Frame) { frames = append(frames, f) }); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(frames) != 1 || frames[0].Type != BufferReplay {
		t.Fatalf("expected uncompressed BUFFER_REPLAY for small body, got %+v", frames)
	}
}

func TestMetricsRoundTrip(t *testing.T) {
	body := EncodeMetrics(1.5, 2.5, 3.5, 123456)
	m, err := DecodeMetrics(body)
	if err != nil {
		t.Fatalf("DecodeMetrics: %v", err)
	}
	if m.Bps1 != 1.5 || m.Bps5 != 2.5 || m.Bps15 != 3.5 || m.TotalBytes != 123456 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
}
