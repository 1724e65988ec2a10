package executor

import (
	"errors"
	"image"
	"strings"
	"testing"
	"time"

	"go-attendance-server/internal/match"
)

func awaitResult(t *testing.T, req *Request) *Result {
	t.Helper()
	select {
	case r := <-req.ResultChan:
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for result")
		return nil
	}
}

func TestPoolProcessesSubmittedWork(t *testing.T) {
	p := NewPool(2, 4)
	defer p.Stop()

	reqs := make([]*Request, 4)
	for i := range reqs {
		idx := i
		reqs[i] = NewRequest("session-1", idx, func() ([]match.DetectedFace, *image.NRGBA, error) {
			return []match.DetectedFace{{AssignedTo: "S1", Score: float64(idx)}}, nil, nil
		})
		if err := p.Submit(reqs[i]); err != nil {
			t.Fatalf("Submit(%d) error = %v", i, err)
		}
	}

	seen := make(map[int]bool)
	for _, req := range reqs {
		r := awaitResult(t, req)
		if r.Err != nil {
			t.Errorf("result %d error = %v", r.ImageIndex, r.Err)
		}
		if len(r.Faces) != 1 || r.Faces[0].Score != float64(r.ImageIndex) {
			t.Errorf("result %d faces = %+v, want the work's own output", r.ImageIndex, r.Faces)
		}
		if seen[r.ImageIndex] {
			t.Errorf("image index %d delivered twice", r.ImageIndex)
		}
		seen[r.ImageIndex] = true
	}
	if len(seen) != 4 {
		t.Errorf("received %d distinct results, want 4", len(seen))
	}

	if got := p.Snapshot().TotalAccepted; got != 4 {
		t.Errorf("Snapshot().TotalAccepted = %d, want 4", got)
	}
}

func TestPoolCompletionOrderIndependent(t *testing.T) {
	p := NewPool(4, 16)
	defer p.Stop()

	reqs := make([]*Request, 8)
	for i := range reqs {
		idx := i
		reqs[i] = NewRequest("session-1", idx, func() ([]match.DetectedFace, *image.NRGBA, error) {
			time.Sleep(time.Duration(idx%3) * time.Millisecond)
			return nil, nil, nil
		})
		if err := p.Submit(reqs[i]); err != nil {
			t.Fatalf("Submit(%d) error = %v", i, err)
		}
	}

	for i, req := range reqs {
		r := awaitResult(t, req)
		if r.ImageIndex != i {
			t.Errorf("request %d delivered result for image %d", i, r.ImageIndex)
		}
	}
}

func TestPoolRejectsWhenSaturated(t *testing.T) {
	p := NewPool(1, 1)
	defer p.Stop()

	gate := make(chan struct{})
	var accepted []*Request
	rejected := 0

	for i := 0; i < 10; i++ {
		req := NewRequest("session-1", i, func() ([]match.DetectedFace, *image.NRGBA, error) {
			<-gate
			return nil, nil, nil
		})
		if err := p.Submit(req); err != nil {
			if !errors.Is(err, ErrQueueFull) {
				t.Errorf("Submit() error = %v, want ErrQueueFull", err)
			}
			rejected++
			continue
		}
		accepted = append(accepted, req)
	}

	// One running, one in the worker's hand-off buffer, one queued, one held
	// by the dispatcher: everything past that must have been rejected
	if rejected == 0 {
		t.Fatal("no submissions rejected on a saturated pool")
	}

	close(gate)
	for _, req := range accepted {
		if r := awaitResult(t, req); r.Err != nil {
			t.Errorf("accepted request %d error = %v", r.ImageIndex, r.Err)
		}
	}

	stats := p.Snapshot()
	if stats.TotalAccepted != int64(len(accepted)) {
		t.Errorf("Snapshot().TotalAccepted = %d, want %d", stats.TotalAccepted, len(accepted))
	}
	if stats.TotalRejected != int64(rejected) {
		t.Errorf("Snapshot().TotalRejected = %d, want %d", stats.TotalRejected, rejected)
	}
}

func TestPoolRecoversFromPanickingWork(t *testing.T) {
	p := NewPool(1, 4)
	defer p.Stop()

	bad := NewRequest("session-1", 0, func() ([]match.DetectedFace, *image.NRGBA, error) {
		panic("decoder exploded")
	})
	if err := p.Submit(bad); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	r := awaitResult(t, bad)
	if r.Err == nil || !strings.Contains(r.Err.Error(), "panicked") {
		t.Errorf("panicking work error = %v, want panic error", r.Err)
	}

	// The single worker survives and keeps serving
	good := NewRequest("session-1", 1, func() ([]match.DetectedFace, *image.NRGBA, error) {
		return nil, nil, errors.New("ordinary failure")
	})
	if err := p.Submit(good); err != nil {
		t.Fatalf("Submit() after panic error = %v", err)
	}
	if r := awaitResult(t, good); r.Err == nil || r.Err.Error() != "ordinary failure" {
		t.Errorf("post-panic result error = %v, want ordinary failure", r.Err)
	}
}

func TestPoolSubmitAfterStop(t *testing.T) {
	p := NewPool(1, 1)
	p.Stop()

	req := NewRequest("session-1", 0, func() ([]match.DetectedFace, *image.NRGBA, error) {
		return nil, nil, nil
	})
	if err := p.Submit(req); err == nil {
		t.Error("Submit() after Stop error = nil, want shutdown error")
	}
}
