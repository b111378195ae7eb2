package bridge

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/avika-ai/avika-bff/bff/internal/analytics"
)

type item struct {
	msg *structpb.Struct
	err error
}

// fakeStream is a channel-driven Stream that counts Cancel calls.
type fakeStream struct {
	items   chan item
	done    chan struct{}
	once    sync.Once
	cancels atomic.Int32
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		items: make(chan item, 256),
		done:  make(chan struct{}),
	}
}

func (f *fakeStream) push(t *testing.T, m map[string]any) {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build message: %v", err)
	}
	f.items <- item{msg: s}
}

func (f *fakeStream) pushStruct(s *structpb.Struct) { f.items <- item{msg: s} }
func (f *fakeStream) fail(err error)                { f.items <- item{err: err} }
func (f *fakeStream) finish()                       { close(f.items) }

func (f *fakeStream) Next() (*structpb.Struct, error) {
	select {
	case <-f.done:
		return nil, context.Canceled
	default:
	}
	select {
	case it, ok := <-f.items:
		if !ok {
			return nil, io.EOF
		}
		return it.msg, it.err
	case <-f.done:
		return nil, context.Canceled
	}
}

func (f *fakeStream) Cancel() {
	f.cancels.Add(1)
	f.once.Do(func() { close(f.done) })
}

// fixedOpener hands out one prepared stream, or an error.
type fixedOpener struct {
	stream *fakeStream
	err    error
	calls  atomic.Int32
	filter atomic.Pointer[analytics.Filter]
}

func (o *fixedOpener) Open(_ context.Context, f analytics.Filter) (Stream, error) {
	o.calls.Add(1)
	o.filter.Store(&f)
	if o.err != nil {
		return nil, o.err
	}
	return o.stream, nil
}

// flushRecorder is a concurrency-safe ResponseWriter that signals every flush.
type flushRecorder struct {
	mu      sync.Mutex
	header  http.Header
	code    int
	body    bytes.Buffer
	flushes chan struct{}
}

func newFlushRecorder() *flushRecorder {
	return &flushRecorder{header: make(http.Header), flushes: make(chan struct{}, 256)}
}

func (r *flushRecorder) Header() http.Header { return r.header }

func (r *flushRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.code == 0 {
		r.code = code
	}
}

func (r *flushRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.code == 0 {
		r.code = http.StatusOK
	}
	return r.body.Write(p)
}

func (r *flushRecorder) Flush() { r.flushes <- struct{}{} }

func (r *flushRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

// plainWriter cannot flush.
type plainWriter struct {
	header http.Header
	code   int
	body   bytes.Buffer
}

func (p *plainWriter) Header() http.Header {
	if p.header == nil {
		p.header = make(http.Header)
	}
	return p.header
}
func (p *plainWriter) WriteHeader(code int)        { p.code = code }
func (p *plainWriter) Write(b []byte) (int, error) { return p.body.Write(b) }

type recordingObserver struct {
	mu     sync.Mutex
	opened []Summary
	closed []Summary
}

func (o *recordingObserver) StreamOpened(_ context.Context, s Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opened = append(o.opened, s)
}

func (o *recordingObserver) StreamClosed(_ context.Context, s Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = append(o.closed, s)
}

func (o *recordingObserver) snapshot() (opened, closed []Summary) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Summary(nil), o.opened...), append([]Summary(nil), o.closed...)
}
