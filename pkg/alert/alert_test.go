// SPDX-License-Identifier: Apache-2.0
package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestWebhookSinkDelivers(t *testing.T) {
	var got Alert
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	a := Alert{Severity: "high", Category: "external_api", Frequency: 10, Threshold: 10, FiredAt: time.Now()}
	if err := sink.Send(context.Background(), a); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Severity != "high" || got.Frequency != 10 {
		t.Errorf("unexpected delivered alert: %+v", got)
	}
}

func TestWebhookSinkReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sink := NewWebhookSink(srv.URL)
	if err := sink.Send(context.Background(), Alert{}); err == nil {
		t.Errorf("expected error on non-2xx response")
	}
}

func TestLogSinkNeverFails(t *testing.T) {
	if err := (LogSink{}).Send(context.Background(), Alert{Severity: "low"}); err != nil {
		t.Errorf("log sink must not fail: %v", err)
	}
}
