// Package outbound correlates client-initiated JSON-RPC requests with the
// responses the peer eventually sends back.
package outbound

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/mcp-client-go/internal/jsonrpc"
)

// Transport abstracts how requests and cancellations are written to the peer.
type Transport interface {
	// SendRequest writes the request carrying the pre-allocated id. The
	// pending entry is registered before SendRequest is called so a fast
	// response can never be missed.
	SendRequest(ctx context.Context, req *jsonrpc.Request) error
	// SendCancelled emits a notifications/cancelled for the given id.
	SendCancelled(ctx context.Context, id *jsonrpc.RequestID, reason string) error
}

var (
	// ErrDispatcherClosed indicates the dispatcher is closed.
	ErrDispatcherClosed = errors.New("dispatcher closed")
	// ErrRemoteCancelled indicates the peer cancelled the request.
	ErrRemoteCancelled = errors.New("remote cancelled")
)

type pendingCall struct {
	method    string
	createdAt time.Time
	respCh    chan *jsonrpc.Response
	errCh     chan error
}

// Dispatcher allocates request ids, tracks pending calls and resolves them.
// It is transport-agnostic and safe for concurrent use.
type Dispatcher struct {
	t Transport

	mu       sync.Mutex
	pending  map[string]*pendingCall // id.String() -> call
	closed   bool
	closeErr error

	nextID atomic.Int64
}

// New constructs a Dispatcher using the provided transport.
func New(t Transport) *Dispatcher {
	return &Dispatcher{t: t, pending: make(map[string]*pendingCall)}
}

// Call sends a JSON-RPC request and waits for its response, a peer
// cancellation, Close, or ctx being done. A response carrying a JSON-RPC
// error is returned as a response, not as an error.
func (d *Dispatcher) Call(ctx context.Context, method string, params any) (*jsonrpc.Response, error) {
	id := jsonrpc.NewRequestID(d.nextID.Add(1))
	key := id.String()

	req, err := jsonrpc.NewRequest(id, method, params)
	if err != nil {
		return nil, err
	}

	pc := &pendingCall{
		method:    method,
		createdAt: time.Now(),
		respCh:    make(chan *jsonrpc.Response, 1),
		errCh:     make(chan error, 1),
	}
	d.mu.Lock()
	if d.closed {
		err := d.closeErr
		d.mu.Unlock()
		return nil, err
	}
	d.pending[key] = pc
	d.mu.Unlock()

	if err := d.t.SendRequest(ctx, req); err != nil {
		d.remove(key)
		return nil, err
	}

	select {
	case resp := <-pc.respCh:
		return resp, nil
	case err := <-pc.errCh:
		return nil, err
	case <-ctx.Done():
		// Only notify the peer if we still own the entry; otherwise a result
		// or Close raced us and there is nothing left to cancel.
		if d.remove(key) {
			_ = d.t.SendCancelled(context.WithoutCancel(ctx), id, ctx.Err().Error())
		}
		return nil, ctx.Err()
	}
}

// OnResponse delivers an incoming response to its waiting call. It reports
// false when no call with that id is pending.
func (d *Dispatcher) OnResponse(resp *jsonrpc.Response) bool {
	if resp == nil || resp.ID.IsNil() {
		return false
	}
	key := resp.ID.String()
	d.mu.Lock()
	pc, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	d.mu.Unlock()
	if ok {
		pc.respCh <- resp
	}
	return ok
}

// OnCancelled fails the pending call with the given id with
// ErrRemoteCancelled. It reports whether a call was pending.
func (d *Dispatcher) OnCancelled(id string) bool {
	d.mu.Lock()
	pc, ok := d.pending[id]
	if ok {
		delete(d.pending, id)
	}
	d.mu.Unlock()
	if ok {
		pc.errCh <- ErrRemoteCancelled
	}
	return ok
}

// Pending returns the number of calls awaiting a response.
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Oldest returns the method and age of the longest-waiting call.
func (d *Dispatcher) Oldest() (method string, age time.Duration, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var oldest *pendingCall
	for _, pc := range d.pending {
		if oldest == nil || pc.createdAt.Before(oldest.createdAt) {
			oldest = pc
		}
	}
	if oldest == nil {
		return "", 0, false
	}
	return oldest.method, time.Since(oldest.createdAt), true
}

// Close fails all pending calls with err and rejects future calls with it.
// Only the first call has any effect.
func (d *Dispatcher) Close(err error) {
	if err == nil {
		err = ErrDispatcherClosed
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	d.closeErr = err
	for key, pc := range d.pending {
		delete(d.pending, key)
		pc.errCh <- err
	}
}

func (d *Dispatcher) remove(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.pending[key]; !ok {
		return false
	}
	delete(d.pending, key)
	return true
}
