// Copyright (c) 2025 The preheat authors.
// SPDX-License-Identifier: Apache-2.0

package origin

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPOrigin_Fetch(t *testing.T) {
	var gotAuth, gotAccept, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotUA = r.Header.Get("User-Agent")

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("ETag", `"abc123"`)
		w.Header().Set("Last-Modified", "Mon, 02 Jan 2006 15:04:05 GMT")
		_, _ = w.Write([]byte(`{"views":[]}`))
	}))
	defer srv.Close()

	o := NewHTTPOrigin(WithToken("sekrit"))

	body, meta, err := o.Fetch(context.Background(), srv.URL, nil)
	require.NoError(t, err)

	assert.JSONEq(t, `{"views":[]}`, string(body))
	assert.Equal(t, http.StatusOK, meta.StatusCode)
	assert.Equal(t, "application/json", meta.ContentType)
	assert.Equal(t, "abc123", meta.ETag)
	assert.Equal(t, 2006, meta.LastModified.Year())
	assert.Equal(t, "https", meta.Source)

	assert.Equal(t, "Bearer sekrit", gotAuth)
	assert.Equal(t, "application/json", gotAccept)
	assert.Equal(t, "preheat", gotUA)
}

func TestHTTPOrigin_FetchCallerHeadersWin(t *testing.T) {
	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	o := NewHTTPOrigin()

	hdr := http.Header{}
	hdr.Set("Accept", "application/vnd.api+json")

	_, _, err := o.Fetch(context.Background(), srv.URL, hdr)
	require.NoError(t, err)
	assert.Equal(t, "application/vnd.api+json", gotAccept)
}

func TestHTTPOrigin_FetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	o := NewHTTPOrigin()

	_, meta, err := o.Fetch(context.Background(), srv.URL+"/missing", nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusNotFound, statusErr.Code)
	assert.False(t, statusErr.Retryable())
	assert.Equal(t, http.StatusNotFound, meta.StatusCode)
}

func TestHTTPOrigin_FetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	o := NewHTTPOrigin()

	_, _, err := o.Fetch(context.Background(), srv.URL, nil)
	require.Error(t, err)

	var statusErr *StatusError
	assert.False(t, errors.As(err, &statusErr))
}
