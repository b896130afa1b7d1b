package utils

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCookieHeader(t *testing.T) {
	assert.Equal(t, "", CookieHeader(nil))
	assert.Equal(t, "a=1; b=2; c=3", CookieHeader(map[string]string{"c": "3", "a": "1", "b": "2"}))
}

func TestParseArgs(t *testing.T) {
	h := ParseHeaderArgs([]string{"X-A: 1", "Authorization: Basic a:b", "bad"})
	assert.Equal(t, map[string]string{"X-A": "1", "Authorization": "Basic a:b"}, h)

	c := ParseCookieArgs([]string{"session=abc=def", " id = 7", "=x", "novalue"})
	assert.Equal(t, map[string]string{"session": "abc=def", "id": "7"}, c)
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "unknown", FormatBytes(-1))
	assert.Equal(t, "1.0 KiB", FormatBytes(1024))
}

func TestCleanArtifacts(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "video.mp4")
	for _, name := range []string{"video.mp4", "video.mp4.part", "video.mp4.abcd1234.tmp", "video.mp4.bak", "other.mp4.part"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	removed, err := CleanArtifacts(target)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{target + ".part", target + ".abcd1234.tmp"}, removed)

	var left []string
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		left = append(left, e.Name())
	}
	assert.ElementsMatch(t, []string{"video.mp4", "video.mp4.bak", "other.mp4.part"}, left)
}

type countingObserver struct {
	NopObserver
	events []string
}

func (c *countingObserver) Completed(url, path string) { c.events = append(c.events, "completed "+path) }
func (c *countingObserver) Errored(url string, err error) { c.events = append(c.events, "errored "+err.Error()) }

func TestMultiObserver(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	m := MultiObserver{a, b}
	m.Started("u")
	m.Completed("u", "/p")
	m.Errored("u", errors.New("boom"))
	m.LimitReached()
	assert.Equal(t, []string{"completed /p", "errored boom"}, a.events)
	assert.Equal(t, a.events, b.events)
}

func TestHTTPClient_Headers(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPClientConfig{
		Headers:     map[string]string{"X-Extra": "1", "User-Agent": "ignored"},
		BearerToken: "tok",
	})
	req, _ := http.NewRequest(http.MethodGet, srv.URL, nil)
	req.Header.Set("X-Extra", "explicit")
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, ToolUserAgent, got.Get("User-Agent"))
	assert.Equal(t, "explicit", got.Get("X-Extra"))
	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
}

func TestHTTPClient_NoRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/from" {
			http.Redirect(w, r, "/to", http.StatusFound)
			return
		}
		w.Write([]byte("landed"))
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPClientConfig{UserAgent: "custom"})
	assert.Equal(t, "custom", c.UserAgent())

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/from", nil)
	resp, err := c.NoRedirects().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	req, _ = http.NewRequest(http.MethodGet, srv.URL+"/from", nil)
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHTTPClient_SilentPeerTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		time.Sleep(2 * time.Second)
	}()

	c := NewHTTPClient(HTTPClientConfig{ReadTimeout: 200 * time.Millisecond})
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "http://"+ln.Addr().String(), nil)
	start := time.Now()
	_, err = c.Do(req)
	assert.Error(t, err)
	assert.Less(t, time.Since(start), 1500*time.Millisecond)
}
