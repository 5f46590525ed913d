package diagnostics

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fonline/droidbridge/pkg/bridge"
	"github.com/fonline/droidbridge/pkg/render"
)

type fakeSource struct {
	status bridge.Status
	trace  *render.FrameTraceBuffer
}

func (f *fakeSource) Status() bridge.Status            { return f.status }
func (f *fakeSource) Trace() *render.FrameTraceBuffer { return f.trace }

func newSource() *fakeSource {
	trace := render.NewFrameTraceBuffer(16, 10*time.Millisecond)
	for i := 0; i < 5; i++ {
		trace.Add(render.FrameSample{
			Session:    "a",
			Frame:      i,
			FrameMs:    float64(i * 5),
			Posted:     i != 3,
			LockFailed: i == 3,
		}, time.Duration(i*5)*time.Millisecond)
	}
	return &fakeSource{
		status: bridge.Status{Running: true, Surface: true, Width: 800, Height: 600, Engine: "ready", Posted: 4},
		trace:  trace,
	}
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if out != nil && rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("GET %s: decode: %v", path, err)
		}
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	h := New(newSource(), Config{}).Handler()
	var body map[string]string
	if code := get(t, h, "/health", &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestState(t *testing.T) {
	src := newSource()
	h := New(src, Config{}).Handler()
	var got bridge.Status
	if code := get(t, h, "/state", &got); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if diff := cmp.Diff(src.status, got); diff != "" {
		t.Errorf("state mismatch (-want +got):\n%s", diff)
	}
}

func TestFramesFilters(t *testing.T) {
	h := New(newSource(), Config{}).Handler()
	tests := []struct {
		query  string
		frames []int
	}{
		{"", []int{0, 1, 2, 3, 4}},
		{"?limit=2", []int{3, 4}},
		{"?min_ms=10", []int{2, 3, 4}},
		{"?lock_failed=true", []int{3}},
		{"?session=b", []int{}},
		{"?min_ms=10&limit=1", []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			var got render.FrameTimeline
			if code := get(t, h, "/frames"+tt.query, &got); code != http.StatusOK {
				t.Fatalf("status = %d", code)
			}
			frames := []int{}
			for _, s := range got.Samples {
				frames = append(frames, s.Frame)
			}
			if diff := cmp.Diff(tt.frames, frames); diff != "" {
				t.Errorf("frames mismatch (-want +got):\n%s", diff)
			}
			if got.DroppedFrames != 2 {
				t.Errorf("dropped = %d, want 2", got.DroppedFrames)
			}
		})
	}
}

func TestFramesDisabled(t *testing.T) {
	h := New(&fakeSource{}, Config{}).Handler()
	if code := get(t, h, "/frames", nil); code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", code)
	}
	if code := get(t, h, "/jank", nil); code != http.StatusServiceUnavailable {
		t.Errorf("jank status = %d, want 503", code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := New(newSource(), Config{}).Handler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/state", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /state = %d, want 405", rec.Code)
	}
}

func TestRuntimeSamples(t *testing.T) {
	s := New(newSource(), Config{})
	for i := 0; i < 3; i++ {
		s.runtime.Add(RuntimeSample{Timestamp: time.Now().UnixMilli(), NumGC: uint32(i)})
	}
	s.runtime.Add(RuntimeSample{Timestamp: time.Now().Add(-time.Hour).UnixMilli(), NumGC: 99})

	var resp struct {
		Samples []RuntimeSample `json:"samples"`
	}
	if code := get(t, s.Handler(), "/runtime?limit=2", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(resp.Samples) != 2 || resp.Samples[1].NumGC != 99 {
		t.Errorf("limited samples = %+v", resp.Samples)
	}

	if code := get(t, s.Handler(), "/runtime?window=60", &resp); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(resp.Samples) != 3 {
		t.Errorf("windowed samples = %d, want 3", len(resp.Samples))
	}
}

func TestRuntimeSampleBufferSizing(t *testing.T) {
	tests := []struct {
		window, interval time.Duration
		capacity         int
		gotInterval      time.Duration
	}{
		{0, 0, 12, 5 * time.Second},
		{10 * time.Second, 10 * time.Millisecond, 10, time.Second},
		{time.Hour, time.Second, runtimeSampleMaxSamples, time.Second},
		{time.Second, 5 * time.Second, 1, 5 * time.Second},
	}
	for _, tt := range tests {
		b := NewRuntimeSampleBuffer(tt.window, tt.interval)
		if b.Capacity() != tt.capacity || b.Interval() != tt.gotInterval {
			t.Errorf("NewRuntimeSampleBuffer(%v, %v): capacity %d interval %v, want %d %v",
				tt.window, tt.interval, b.Capacity(), b.Interval(), tt.capacity, tt.gotInterval)
		}
	}
}

func TestStartStop(t *testing.T) {
	s := New(newSource(), Config{Port: 0})
	port, err := s.Start()
	if err != nil {
		t.Fatalf("Start() = %v", err)
	}
	defer s.Stop()

	again, err := s.Start()
	if err != nil || again != port {
		t.Errorf("second Start() = %d, %v; want %d", again, err, port)
	}

	resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
	if len(s.runtime.Snapshot()) == 0 {
		t.Error("Start should take an initial runtime sample")
	}

	s.Stop()
	s.Stop()
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get(fmt.Sprintf("http://localhost:%d/health", port))
		if err != nil {
			return
		}
		resp.Body.Close()
		if time.Now().After(deadline) {
			t.Fatal("server still answering after Stop")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
