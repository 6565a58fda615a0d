package portal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/wifi-provisioning-portal/assets"
	"github.com/ruteri/wifi-provisioning-portal/radio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockCredentialSink implements CredentialSink for testing
type MockCredentialSink struct {
	mock.Mock
}

func (m *MockCredentialSink) SubmitCredentials(ctx context.Context, ssid, passphrase string) error {
	args := m.Called(ctx, ssid, passphrase)
	return args.Error(0)
}

func (m *MockCredentialSink) AbandonAttempt() {
	m.Called()
}

func noSleep(context.Context, time.Duration) error { return nil }

func setupHandler(t *testing.T, r *radio.Simulated, sink CredentialSink) *chi.Mux {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := assets.NewStore("")
	require.NoError(t, store.Mount())

	handler := NewHandler(r, store, sink, Config{Sleep: noSleep}, logger)
	mux := chi.NewRouter()
	handler.RegisterRoutes(mux)
	return mux
}

func newRadio(t *testing.T, networks string, scanPolls int) *radio.Simulated {
	t.Helper()
	parsed, err := radio.ParseNetworks(networks)
	require.NoError(t, err)
	return radio.NewSimulated(radio.SimulatedConfig{Networks: parsed, ScanPolls: scanPolls},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/save", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestHandleRoot_ListsScannedNetworks(t *testing.T) {
	r := newRadio(t, "HomeNet:secret123,Cafe,HomeNet:other,<b>Evil</b>", 3)
	mux := setupHandler(t, r, &MockCredentialSink{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Equal(t, 1, strings.Count(body, "<option>HomeNet</option>"))
	assert.Contains(t, body, "<option>Cafe</option>")
	assert.Contains(t, body, "<option>&lt;b&gt;Evil&lt;/b&gt;</option>")
	assert.Contains(t, body, "<option>Select your Wi-Fi</option>")
	assert.Contains(t, body, "name='password'")

	// Results are consumed by the render
	assert.Empty(t, r.ScanResults())
	assert.Equal(t, 1, r.ScanStarts())
}

func TestHandleRoot_ScanTimeoutRendersEmptyList(t *testing.T) {
	r := newRadio(t, "HomeNet:secret123", 1000)
	mux := setupHandler(t, r, &MockCredentialSink{})

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "HomeNet")
	assert.Contains(t, w.Body.String(), "wifi-reload")
}

func TestHandleSave_Success(t *testing.T) {
	sink := &MockCredentialSink{}
	sink.On("SubmitCredentials", mock.Anything, "HomeNet", "secret123").Return(nil)
	mux := setupHandler(t, newRadio(t, "", 0), sink)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, postForm(url.Values{"ssid": {"HomeNet"}, "password": {"secret123"}}))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/save", w.Header().Get("Location"))
	sink.AssertExpectations(t)
}

func TestHandleSave_EmptyPasswordIsPresent(t *testing.T) {
	sink := &MockCredentialSink{}
	sink.On("SubmitCredentials", mock.Anything, "Cafe", "").Return(nil)
	mux := setupHandler(t, newRadio(t, "", 0), sink)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, postForm(url.Values{"ssid": {"Cafe"}, "password": {""}}))

	assert.Equal(t, http.StatusSeeOther, w.Code)
	sink.AssertExpectations(t)
}

func TestHandleSave_MissingField(t *testing.T) {
	tests := []struct {
		name   string
		values url.Values
	}{
		{"missing password", url.Values{"ssid": {"HomeNet"}}},
		{"missing ssid", url.Values{"password": {"secret123"}}},
		{"empty form", url.Values{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &MockCredentialSink{}
			mux := setupHandler(t, newRadio(t, "", 0), sink)

			w := httptest.NewRecorder()
			mux.ServeHTTP(w, postForm(tt.values))

			assert.Equal(t, http.StatusNoContent, w.Code)
			sink.AssertNotCalled(t, "SubmitCredentials", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestHandleSave_QueryParamsDoNotCount(t *testing.T) {
	sink := &MockCredentialSink{}
	mux := setupHandler(t, newRadio(t, "", 0), sink)

	req := httptest.NewRequest(http.MethodPost, "/save?ssid=HomeNet&password=secret123", nil)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	sink.AssertNotCalled(t, "SubmitCredentials", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleSave_StorageError(t *testing.T) {
	sink := &MockCredentialSink{}
	sink.On("SubmitCredentials", mock.Anything, "HomeNet", "secret123").Return(errors.New("disk full"))
	mux := setupHandler(t, newRadio(t, "", 0), sink)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, postForm(url.Values{"ssid": {"HomeNet"}, "password": {"secret123"}}))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	sink.AssertExpectations(t)
}

func TestHandleSaved_AbandonsAttempt(t *testing.T) {
	sink := &MockCredentialSink{}
	sink.On("AbandonAttempt").Return().Once()
	mux := setupHandler(t, newRadio(t, "", 0), sink)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/save", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "<html>")
	sink.AssertExpectations(t)
}

func TestStaticAssets(t *testing.T) {
	mux := setupHandler(t, newRadio(t, "", 0), &MockCredentialSink{})

	tests := []struct {
		path        string
		contentType string
	}{
		{"/favicon.ico", "image/x-icon"},
		{"/style.css", "text/css"},
		{"/refresh.png", "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, tt.contentType, w.Header().Get("Content-Type"))
			assert.NotZero(t, w.Body.Len())
		})
	}
}

func TestStaticAssets_Missing(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(newRadio(t, "", 0), fstest.MapFS{}, &MockCredentialSink{}, Config{Sleep: noSleep}, logger)
	mux := chi.NewRouter()
	handler.RegisterRoutes(mux)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/style.css", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRenderPage_NoNetworks(t *testing.T) {
	page := renderPage(nil)
	assert.True(t, strings.HasPrefix(page, "<!DOCTYPE html>"))
	assert.Equal(t, 1, strings.Count(page, "<option>"))
	assert.True(t, strings.HasSuffix(page, "</html>"))
}
