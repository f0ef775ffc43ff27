package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/wilhg/metadata/pkg/config"
	"github.com/wilhg/metadata/pkg/store/entstore"
)

func post(t *testing.T, url, body string) {
	t.Helper()
	res, err := http.Post(url, "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		b, _ := io.ReadAll(res.Body)
		t.Fatalf("POST %s status=%d body=%s", url, res.StatusCode, b)
	}
}

func TestDryRunLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = entstore.SQLiteMemoryDSN("cmd_lifecycle")
	log := logrus.New()
	log.SetOutput(io.Discard)

	a, err := build(t.Context(), cfg, log)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(a.close)

	srv := httptest.NewServer(a.handler)
	defer srv.Close()

	post(t, srv.URL+"/organizations", `{"name":"algebra","warehouse_project":"client-project"}`)
	post(t, srv.URL+"/apps", `{"app_id":"game","organization":"algebra"}`)

	if err := a.driver.RunOnce(t.Context()); err != nil {
		t.Fatalf("round: %v", err)
	}

	res, err := http.Get(srv.URL + "/apps/game")
	if err != nil {
		t.Fatal(err)
	}
	defer res.Body.Close()
	var app struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&app); err != nil {
		t.Fatal(err)
	}
	if app.Status != "SUCCESS" {
		t.Fatalf("app status=%s want SUCCESS", app.Status)
	}
}

func TestBuildRejectsBadDatabaseURL(t *testing.T) {
	cfg := config.Default()
	cfg.DatabaseURL = "mysql://nope"
	if _, err := build(t.Context(), cfg, logrus.New()); err == nil {
		t.Fatal("expected error")
	}
}
