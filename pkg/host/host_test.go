package host

import (
	"context"
	stderrors "errors"
	"net"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, s)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) hook(name string, err error) Hook {
	return func(context.Context) error {
		r.add(name)
		return err
	}
}

type blockingService struct {
	name    string
	rec     *recorder
	started chan struct{}
	stop    chan struct{}
	failErr error
}

func newBlockingService(name string, rec *recorder) *blockingService {
	return &blockingService{name: name, rec: rec, started: make(chan struct{}), stop: make(chan struct{})}
}

func (s *blockingService) Start(ctx context.Context) error {
	close(s.started)
	if s.failErr != nil {
		return s.failErr
	}
	<-s.stop
	return nil
}

func (s *blockingService) Stop(context.Context) error {
	s.rec.add("stop " + s.name)
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	return nil
}

func TestStart_HooksRunInOrder(t *testing.T) {
	rec := &recorder{}
	h := New(Config{})
	h.OnStart("first", rec.hook("first", nil))
	h.OnStart("second", rec.hook("second", nil))

	require.NoError(t, h.Start(context.Background()))
	assert.Equal(t, []string{"first", "second"}, rec.get())
}

func TestRun_StartupFailureAbortsAndRunsStopHooks(t *testing.T) {
	rec := &recorder{}
	boom := stderrors.New("migration exploded")

	h := New(Config{})
	h.OnStart("migrate", rec.hook("migrate", boom))
	h.OnStart("never", rec.hook("never", nil))
	h.OnStop("cleanup", rec.hook("cleanup", nil))
	svc := newBlockingService("api", rec)
	h.AddService("api", svc)

	err := h.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "startup hook migrate")
	assert.Equal(t, []string{"migrate", "cleanup"}, rec.get())

	select {
	case <-svc.started:
		t.Fatal("service must not start when startup fails")
	default:
	}
}

func TestRun_CancelStopsServicesInReverse(t *testing.T) {
	rec := &recorder{}
	h := New(Config{ShutdownTimeout: time.Second})
	a := newBlockingService("a", rec)
	b := newBlockingService("b", rec)
	h.AddService("a", a)
	h.AddService("b", b)
	h.OnStop("close provider", rec.hook("close provider", nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	<-a.started
	<-b.started
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("host did not stop")
	}
	assert.Equal(t, []string{"stop b", "stop a", "close provider"}, rec.get())
}

func TestRun_ServiceFailureStopsOthers(t *testing.T) {
	rec := &recorder{}
	h := New(Config{ShutdownTimeout: time.Second})
	healthy := newBlockingService("healthy", rec)
	broken := newBlockingService("broken", rec)
	broken.failErr = stderrors.New("port in use")
	h.AddService("healthy", healthy)
	h.AddService("broken", broken)

	err := h.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "service broken")
	assert.Contains(t, rec.get(), "stop healthy")
}

func TestHTTPService_ServesUntilStopped(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := New(Config{ShutdownTimeout: time.Second})
	h.AddService("http", HTTPService(&http.Server{Addr: addr, Handler: mux}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Run(ctx) }()

	client := &http.Client{Timeout: time.Second}
	require.Eventually(t, func() bool {
		resp, err := client.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	client.CloseIdleConnections()
}
