package cardclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvelope(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{"success": status < 400, "message": "ok", "data": data})
}

func TestLoginKeepsSessionCookie(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "auth_token", Value: "tok", Path: "/"})
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"user_id": 1})
	})
	mux.HandleFunc("/api/business-card", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("auth_token")
		if err != nil || cookie.Value != "tok" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"success":false,"message":"ログインが必要です"}`))
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"url_slug": "00001"})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.GetCard(ctx)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "ログインが必要です", apiErr.Message)

	require.NoError(t, c.Login(ctx, "a@example.com", "password123"))
	card, err := c.GetCard(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"url_slug":"00001"}`, string(card))
}

func TestUploadRetriesOnceAfterAbort(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			if conn, _, err := w.(http.Hijacker).Hijack(); err == nil {
				_ = conn.Close()
			}
			return
		}
		if r.FormValue("file_type") != "photo" {
			writeEnvelope(w, http.StatusBadRequest, nil)
			return
		}
		writeEnvelope(w, http.StatusOK, map[string]interface{}{"file_path": "backend/uploads/photo/a.png", "was_resized": false})
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	res, err := c.Upload(context.Background(), "photo", "a.png", []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, "backend/uploads/photo/a.png", res.FilePath)
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestUploadGivesUpAfterSecondTimeout(t *testing.T) {
	var calls int32
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := New(srv.URL)
	require.NoError(t, err)
	c.uploadTimeout = 50 * time.Millisecond

	_, err = c.Upload(context.Background(), "logo", "a.png", []byte("img"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded) || retryable(err))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestUpdateIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"テックツールは2つ以上選択してください"}`))
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)

	_, err = c.UpdateCard(context.Background(), map[string]interface{}{"tech_tools": []interface{}{}})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "テックツールは2つ以上選択してください", apiErr.Message)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
