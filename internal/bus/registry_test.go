package bus

import (
	"context"
	"testing"
	"time"
)

func mustStreamID(t *testing.T, raw string) StreamID {
	t.Helper()
	id, err := ParseStreamID(raw)
	if err != nil {
		t.Fatalf("ParseStreamID(%q): %v", raw, err)
	}
	return id
}

func TestRegistryPublishWithoutSubscriberNeverCreatesChannel(t *testing.T) {
	r := NewRegistry()
	res := r.Publish(mustStreamID(t, "nobody"), NewFrameView([]byte("x")))
	if res.Delivered != 0 {
		t.Fatalf("expected 0 delivered, got %d", res.Delivered)
	}
	if r.ActiveStreams() != 0 {
		t.Fatalf("publish must not create a channel as a side effect, active_streams=%d", r.ActiveStreams())
	}
}

func TestRegistryLazyChannelLifecycle(t *testing.T) {
	r := NewRegistry()
	id := mustStreamID(t, "gamma")

	if r.ActiveStreams() != 0 {
		t.Fatalf("expected 0 active streams before any subscribe")
	}

	handle, sub, err := r.Subscribe(id, 4)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if r.ActiveStreams() != 1 {
		t.Fatalf("expected 1 active stream after subscribe, got %d", r.ActiveStreams())
	}

	res := r.Publish(id, NewFrameView([]byte("frame-1")))
	if res.Delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", res.Delivered)
	}

	out := mustRecv(t, sub)
	if out.Kind != RecvFrame || string(out.Frame.Bytes()) != "frame-1" {
		t.Fatalf("unexpected outcome: %+v", out)
	}

	sub.Close()
	handle.Release()

	if r.ActiveStreams() != 0 {
		t.Fatalf("expected 0 active streams after last subscriber drops, got %d", r.ActiveStreams())
	}

	res = r.Publish(id, NewFrameView([]byte("frame-2")))
	if res.Delivered != 0 {
		t.Fatalf("expected publish with no subscribers to report 0, got %d", res.Delivered)
	}
	if r.ActiveStreams() != 0 {
		t.Fatalf("a publish with no subscribers must not resurrect the stream")
	}
}

func TestRegistryActiveStreamsCountsDistinctStreams(t *testing.T) {
	r := NewRegistry()
	h1, _, _ := r.Subscribe(mustStreamID(t, "one"), 4)
	h2, _, _ := r.Subscribe(mustStreamID(t, "two"), 4)
	defer h1.Release()
	defer h2.Release()

	if r.ActiveStreams() != 2 {
		t.Fatalf("expected 2 active streams, got %d", r.ActiveStreams())
	}
}

func TestRegistryTotalSubscribersSumsAcrossStreams(t *testing.T) {
	r := NewRegistry()
	id := mustStreamID(t, "multi")
	h1, s1, _ := r.Subscribe(id, 4)
	h2, s2, _ := r.Subscribe(id, 4)
	defer h1.Release()
	defer h2.Release()
	defer s1.Close()
	defer s2.Close()

	if r.TotalSubscribers() != 2 {
		t.Fatalf("expected 2 total subscribers, got %d", r.TotalSubscribers())
	}
}

func TestRegistryIsolatesStreams(t *testing.T) {
	r := NewRegistry()
	idA := mustStreamID(t, "alpha")
	idB := mustStreamID(t, "beta")

	hA, subA, _ := r.Subscribe(idA, 4)
	hB, subB, _ := r.Subscribe(idB, 4)
	defer hA.Release()
	defer hB.Release()
	defer subA.Close()
	defer subB.Close()

	r.Publish(idA, NewFrameView([]byte("for-alpha")))

	out := mustRecv(t, subA)
	if string(out.Frame.Bytes()) != "for-alpha" {
		t.Fatalf("expected alpha's frame, got %+v", out)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := subB.Recv(ctx); err == nil {
		t.Fatal("beta should not have received alpha's frame")
	}
}

func TestRegistryCloseStreamDisconnectsSubscribers(t *testing.T) {
	r := NewRegistry()
	id := mustStreamID(t, "doomed")
	handle, sub, err := r.Subscribe(id, 4)
	if err != nil {
		t.Fatal(err)
	}

	if ok := r.CloseStream(id); !ok {
		t.Fatal("expected CloseStream to report an existing stream")
	}
	if r.ActiveStreams() != 0 {
		t.Fatalf("expected 0 active streams after CloseStream, got %d", r.ActiveStreams())
	}

	out := mustRecv(t, sub)
	if out.Kind != RecvClosed {
		t.Fatalf("expected subscriber to observe RecvClosed, got %+v", out)
	}
	handle.Release()
}

func TestRegistryCloseStreamReportsMissingStream(t *testing.T) {
	r := NewRegistry()
	if ok := r.CloseStream(mustStreamID(t, "never-existed")); ok {
		t.Fatal("expected false for a stream id with no channel")
	}
}
