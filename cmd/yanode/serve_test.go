package main

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/2025-SMHRD-SW-LangIntelligence/yanode/internal/logging"
)

func TestMain(m *testing.M) {
	logging.InitDefault()
	m.Run()
}

func TestServeHTTP_DrainsBeforeReturning(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	entered := make(chan struct{})
	release := make(chan struct{})
	handlerDone := make(chan struct{})
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.WriteHeader(http.StatusOK)
		close(handlerDone)
	})}

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- serveHTTP(ctx, srv, ln, 5*time.Second) }()

	reqDone := make(chan int, 1)
	go func() {
		resp, err := http.Get("http://" + ln.Addr().String() + "/")
		if err != nil {
			reqDone <- 0
			return
		}
		resp.Body.Close()
		reqDone <- resp.StatusCode
	}()

	<-entered
	cancel()

	select {
	case err := <-served:
		t.Fatalf("serveHTTP returned with a request in flight: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	if err := <-served; err != nil {
		t.Fatalf("serveHTTP: %v", err)
	}
	select {
	case <-handlerDone:
	default:
		t.Error("serveHTTP returned before the handler finished")
	}
	if code := <-reqDone; code != http.StatusOK {
		t.Errorf("in-flight request got %d", code)
	}
}
