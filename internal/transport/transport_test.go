// ABOUTME: Tests for the HTTP streaming transport
// ABOUTME: Covers status handling, headers and cross-goroutine close
package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOpenSendsHeadersAndReads(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Dynamic-Key")
		w.Write([]byte("audio-bytes"))
	}))
	defer srv.Close()

	tr := NewHTTP()
	err := tr.Open(context.Background(), srv.URL, map[string]string{"X-Dynamic-Key": "k"})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer tr.Close()

	if gotKey != "k" {
		t.Errorf("header not forwarded, got %q", gotKey)
	}
	if tr.StatusCode() != http.StatusOK {
		t.Errorf("StatusCode = %d", tr.StatusCode())
	}

	data, err := io.ReadAll(tr)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if string(data) != "audio-bytes" {
		t.Errorf("read %q", data)
	}
}

func TestOpenAcceptsPartialContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("tail"))
	}))
	defer srv.Close()

	tr := NewHTTP()
	if err := tr.Open(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("Open(206): %v", err)
	}
	tr.Close()
}

func TestOpenRejectsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	tr := NewHTTP()
	err := tr.Open(context.Background(), srv.URL, nil)
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Open(403) = %v, want StatusError", err)
	}
	if se.Code != http.StatusForbidden {
		t.Errorf("Code = %d", se.Code)
	}
	if tr.StatusCode() != http.StatusForbidden {
		t.Errorf("StatusCode = %d", tr.StatusCode())
	}
}

func TestReadBeforeOpen(t *testing.T) {
	tr := NewHTTP()
	if _, err := tr.Read(make([]byte, 8)); err != ErrNotOpen {
		t.Errorf("Read = %v, want ErrNotOpen", err)
	}
}

func TestCloseUnblocksRead(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
		w.(http.Flusher).Flush()
		<-release
	}))
	defer srv.Close()
	defer close(release)

	tr := NewHTTP()
	if err := tr.Open(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("Open: %v", err)
	}

	buf := make([]byte, 8)
	if _, err := tr.Read(buf); err != nil {
		t.Fatalf("first Read: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := tr.Read(buf)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	tr.Close()

	select {
	case err := <-done:
		if err == nil {
			t.Error("blocked Read should fail after Close")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Read still blocked after Close")
	}
}

func TestCloseBeforeOpenPreventsLeak(t *testing.T) {
	tr := NewHTTP()
	tr.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("x"))
	}))
	defer srv.Close()

	if err := tr.Open(context.Background(), srv.URL, nil); err != ErrNotOpen {
		t.Errorf("Open after Close = %v, want ErrNotOpen", err)
	}
}
