package fetch

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/Sternrassler/unitools/internal/testutil"
	"github.com/Sternrassler/unitools/pkg/dispatch"
)

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()

	cfg := DefaultConfig("unitools-test/1.0")
	cfg.Timeout = 2 * time.Second
	cfg.Retry = fastRetry(3)

	f, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return f
}

func TestNew_RequiresUserAgent(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() should fail without a user agent")
	}
}

func TestFetcher_Get(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()

	mock.SetResponse("/ok", testutil.NewOKResponse(`{"value": 1}`))
	mock.SetResponse("/missing", testutil.NewNotFoundResponse())
	mock.SetSequence("/flaky",
		testutil.NewServerErrorResponse(),
		testutil.NewOKResponse(`{"value": 2}`),
	)
	mock.SetResponse("/down", testutil.NewServerErrorResponse())

	f := newTestFetcher(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		path      string
		wantBody  string
		wantClass ErrorClass
		wantCalls int
	}{
		{name: "ok", path: "/ok", wantBody: `{"value": 1}`, wantCalls: 1},
		{name: "client error not retried", path: "/missing", wantClass: ErrorClassClient, wantCalls: 1},
		{name: "server error retried", path: "/flaky", wantBody: `{"value": 2}`, wantCalls: 2},
		{name: "server error exhausted", path: "/down", wantClass: ErrorClassServer, wantCalls: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := f.Get(ctx, mock.URL()+tt.path)

			if tt.wantClass != "" {
				var reqErr *RequestError
				if !errors.As(err, &reqErr) {
					t.Fatalf("error = %v, want RequestError", err)
				}
				if reqErr.Class != tt.wantClass {
					t.Errorf("Class = %q, want %q", reqErr.Class, tt.wantClass)
				}
			} else {
				if err != nil {
					t.Fatalf("Get() error = %v", err)
				}
				if string(body) != tt.wantBody {
					t.Errorf("body = %q, want %q", body, tt.wantBody)
				}
			}

			if got := mock.PathCount(tt.path); got != tt.wantCalls {
				t.Errorf("requests to %s = %d, want %d", tt.path, got, tt.wantCalls)
			}
		})
	}

	if got := mock.LastUserAgent(); got != "unitools-test/1.0" {
		t.Errorf("User-Agent = %q, want %q", got, "unitools-test/1.0")
	}
}

func TestFetcher_NetworkError(t *testing.T) {
	mock := testutil.NewMockServer()
	url := mock.URL() + "/gone"
	mock.Close()

	f := newTestFetcher(t)
	_, err := f.Get(context.Background(), url)

	if !errors.Is(err, ErrRetryExhausted) {
		t.Errorf("error = %v, want ErrRetryExhausted", err)
	}
	if classOf(err) != ErrorClassNetwork {
		t.Errorf("classOf(err) = %q, want network", classOf(err))
	}
}

func TestWorker_WithDispatch(t *testing.T) {
	mock := testutil.NewMockServer()
	defer mock.Close()
	mock.SetResponse("/bad", testutil.MockResponse{StatusCode: http.StatusBadRequest})

	urls := []string{
		mock.URL() + "/a",
		mock.URL() + "/b",
		mock.URL() + "/bad",
		mock.URL() + "/c",
	}

	cfg := dispatch.DefaultConfig()
	cfg.Concurrency = 2
	cfg.PollInterval = 10 * time.Millisecond

	var succeeded, failed []string
	report, err := dispatch.Dispatch(context.Background(), Worker, newTestFetcher(t), urls,
		func(env dispatch.Envelope[string, []byte]) {
			if env.Success {
				succeeded = append(succeeded, env.Task)
			} else {
				failed = append(failed, env.Task)
			}
		}, cfg)
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}

	sort.Strings(succeeded)
	if len(succeeded) != 3 || len(failed) != 1 || failed[0] != mock.URL()+"/bad" {
		t.Errorf("succeeded = %v, failed = %v", succeeded, failed)
	}
	if report.Delivered() != len(urls) {
		t.Errorf("Delivered() = %d, want %d", report.Delivered(), len(urls))
	}
}
