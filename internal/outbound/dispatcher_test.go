package outbound

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ggoodman/mcp-client-go/internal/jsonrpc"
)

type recordingTransport struct {
	reqs      chan *jsonrpc.Request
	mu        sync.Mutex
	cancelled []string
	sendErr   error
}

func newRecordingTransport() *recordingTransport {
	return &recordingTransport{reqs: make(chan *jsonrpc.Request, 16)}
}

func (t *recordingTransport) SendRequest(ctx context.Context, req *jsonrpc.Request) error {
	if t.sendErr != nil {
		return t.sendErr
	}
	t.reqs <- req
	return nil
}

func (t *recordingTransport) SendCancelled(ctx context.Context, id *jsonrpc.RequestID, reason string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.cancelled = append(t.cancelled, id.String())
	return nil
}

func (t *recordingTransport) nextRequest(tb testing.TB) *jsonrpc.Request {
	tb.Helper()
	select {
	case req := <-t.reqs:
		return req
	case <-time.After(time.Second):
		tb.Fatalf("timeout waiting for outbound request")
		return nil
	}
}

func TestDispatcher_RequestResponse_OutOfOrder(t *testing.T) {
	t.Parallel()

	tr := newRecordingTransport()
	d := New(tr)
	ctx := context.Background()

	resCh1 := make(chan *jsonrpc.Response, 1)
	resCh2 := make(chan *jsonrpc.Response, 1)
	go func() {
		resp, err := d.Call(ctx, "tools/list", nil)
		if err != nil {
			t.Errorf("call1: %v", err)
			return
		}
		resCh1 <- resp
	}()
	req1 := tr.nextRequest(t)
	go func() {
		resp, err := d.Call(ctx, "prompts/list", map[string]any{"cursor": "c"})
		if err != nil {
			t.Errorf("call2: %v", err)
			return
		}
		resCh2 <- resp
	}()
	req2 := tr.nextRequest(t)

	if req1.ID.String() == req2.ID.String() {
		t.Fatalf("ids must be unique, both %s", req1.ID)
	}

	resp2, _ := jsonrpc.NewResultResponse(req2.ID, map[string]any{"which": 2})
	if !d.OnResponse(resp2) {
		t.Fatalf("response 2 not matched")
	}
	resp1, _ := jsonrpc.NewResultResponse(req1.ID, map[string]any{"which": 1})
	if !d.OnResponse(resp1) {
		t.Fatalf("response 1 not matched")
	}

	if got := <-resCh1; string(got.Result) != `{"which":1}` {
		t.Fatalf("call1 got %s", got.Result)
	}
	if got := <-resCh2; string(got.Result) != `{"which":2}` {
		t.Fatalf("call2 got %s", got.Result)
	}
	if n := d.Pending(); n != 0 {
		t.Fatalf("expected empty table, got %d", n)
	}
}

func TestDispatcher_UnknownResponseIgnored(t *testing.T) {
	t.Parallel()

	d := New(newRecordingTransport())
	resp, _ := jsonrpc.NewResultResponse(jsonrpc.NewRequestID(99), nil)
	if d.OnResponse(resp) {
		t.Fatalf("unknown id must not match")
	}
}

func TestDispatcher_DuplicateResponseIgnored(t *testing.T) {
	t.Parallel()

	tr := newRecordingTransport()
	d := New(tr)
	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), "ping", nil)
		done <- err
	}()
	req := tr.nextRequest(t)
	resp, _ := jsonrpc.NewResultResponse(req.ID, nil)
	if !d.OnResponse(resp) {
		t.Fatalf("first response must match")
	}
	if d.OnResponse(resp) {
		t.Fatalf("second response must be discarded")
	}
	if err := <-done; err != nil {
		t.Fatalf("call: %v", err)
	}
}

func TestDispatcher_CancelContext_SendsCancelled(t *testing.T) {
	t.Parallel()

	tr := newRecordingTransport()
	d := New(tr)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := d.Call(ctx, "tools/call", nil)
		done <- err
	}()
	req := tr.nextRequest(t)
	cancel()

	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.cancelled) != 1 || tr.cancelled[0] != req.ID.String() {
		t.Fatalf("expected cancellation for %s, got %v", req.ID, tr.cancelled)
	}
	if d.Pending() != 0 {
		t.Fatalf("cancelled call must be removed")
	}
}

func TestDispatcher_RemoteCancelled(t *testing.T) {
	t.Parallel()

	tr := newRecordingTransport()
	d := New(tr)
	done := make(chan error, 1)
	go func() {
		_, err := d.Call(context.Background(), "tools/call", nil)
		done <- err
	}()
	req := tr.nextRequest(t)
	if !d.OnCancelled(req.ID.String()) {
		t.Fatalf("expected pending call")
	}
	if err := <-done; !errors.Is(err, ErrRemoteCancelled) {
		t.Fatalf("expected ErrRemoteCancelled, got %v", err)
	}
}

func TestDispatcher_CloseFailsAllPendingOnce(t *testing.T) {
	t.Parallel()

	tr := newRecordingTransport()
	d := New(tr)
	closeErr := errors.New("session closed")

	const n = 5
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			_, err := d.Call(context.Background(), "ping", nil)
			errs <- err
		}()
	}
	for i := 0; i < n; i++ {
		tr.nextRequest(t)
	}
	if _, _, ok := d.Oldest(); !ok {
		t.Fatalf("expected an oldest pending call")
	}

	d.Close(closeErr)
	d.Close(errors.New("second close is ignored"))

	for i := 0; i < n; i++ {
		select {
		case err := <-errs:
			if !errors.Is(err, closeErr) {
				t.Fatalf("expected close error, got %v", err)
			}
		case <-time.After(time.Second):
			t.Fatalf("caller %d still waiting after close", i)
		}
	}

	if _, err := d.Call(context.Background(), "ping", nil); !errors.Is(err, closeErr) {
		t.Fatalf("calls after close must fail with close error, got %v", err)
	}
}

func TestDispatcher_SendFailureRemovesPending(t *testing.T) {
	t.Parallel()

	tr := newRecordingTransport()
	tr.sendErr = errors.New("broken pipe")
	d := New(tr)
	if _, err := d.Call(context.Background(), "ping", nil); !errors.Is(err, tr.sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}
	if d.Pending() != 0 {
		t.Fatalf("failed send must not leave a pending entry")
	}
}
