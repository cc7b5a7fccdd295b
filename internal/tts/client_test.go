package tts

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseSpeechMarks(t *testing.T) {
	data := []byte(`{"time":0,"type":"word","value":"once"}
{"time":320,"type":"word","value":"upon"}
{"time":700,"type":"word","value":"a"}`)

	marks, skipped := ParseSpeechMarks(data)
	require.Len(t, marks, 3)
	assert.Zero(t, skipped)
	assert.Equal(t, int64(320), marks[1].TimeMs)
	assert.Equal(t, "upon", marks[1].Value)
}

func TestParseSpeechMarks_QuarantinesMalformed(t *testing.T) {
	data := []byte(`{"time":0,"type":"word","value":"good"}
not json at all
{"time":100,"type":"sentence","value":"skip me"}
{"time":-5,"type":"word","value":"negative"}
{"time":200,"type":"word","value":""}

{"time":300,"type":"word","value":"kept"}`)

	marks, skipped := ParseSpeechMarks(data)
	require.Len(t, marks, 2)
	assert.Equal(t, 4, skipped)
	assert.Equal(t, "good", marks[0].Value)
	assert.Equal(t, "kept", marks[1].Value)
}

func TestParseSpeechMarks_Empty(t *testing.T) {
	marks, skipped := ParseSpeechMarks(nil)
	assert.Empty(t, marks)
	assert.Zero(t, skipped)
}

func TestSynthesize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/speech":
			w.Write([]byte("MP3DATA"))
		case "/v1/speech-marks":
			w.Write([]byte(`{"time":0,"type":"word","value":"hi"}` + "\n"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		RatePerSec: 1000,
	}, discardLogger())
	require.NoError(t, err)

	res, err := client.Synthesize(context.Background(), "voice-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte("MP3DATA"), res.Audio)
	require.Len(t, res.Marks, 1)
	assert.Equal(t, "hi", res.Marks[0].Value)
}

func TestSynthesize_EmptyText(t *testing.T) {
	client, err := NewClient(ClientConfig{BaseURL: "http://localhost:1"}, discardLogger())
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "voice-1", "   ")
	require.Error(t, err)
}

func TestSynthesize_EmptyAudio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, RatePerSec: 1000}, discardLogger())
	require.NoError(t, err)

	_, err = client.Synthesize(context.Background(), "voice-1", "hi")
	assert.ErrorIs(t, err, ErrEmptyAudio)
}

func TestDoRequest_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RatePerSec: 1000,
	}, discardLogger())
	require.NoError(t, err)

	data, err := client.doRequest(context.Background(), "/v1/speech", "voice-1", "hi")
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoRequest_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		MaxRetries: 3,
		RatePerSec: 1000,
	}, discardLogger())
	require.NoError(t, err)

	_, err = client.doRequest(context.Background(), "/v1/speech", "voice-1", "hi")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoRequest_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewClient(ClientConfig{
		BaseURL:    srv.URL,
		MaxRetries: 2,
		RatePerSec: 1000,
	}, discardLogger())
	require.NoError(t, err)

	_, err = client.doRequest(context.Background(), "/v1/speech", "voice-1", "hi")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, int32(3), calls.Load())
}
