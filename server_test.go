package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv, _ := newTestServerApp(t)
	return srv
}

func newTestServerApp(t *testing.T) (*httptest.Server, *App) {
	t.Helper()
	app := NewApp(Options{Density: testDensity, MaxPoints: 100000, MaxEvals: 2})
	srv := httptest.NewServer(NewServer(app, 1000).Router())
	t.Cleanup(srv.Close)
	return srv, app
}

func post(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", &buf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("got %d %v, want 200 ok", resp.StatusCode, body)
	}
}

func TestEvaluateEndpoint(t *testing.T) {
	srv := newTestServer(t)
	resp := post(t, srv.URL+"/api/evaluate", Request{
		Name:   "ball.scene",
		Source: "sphere (1,0,0,1) (0,0,0) (0,0,0) (1,1,1)\n",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}
	if res.Cloud == nil || res.Cloud.Count == 0 {
		t.Fatal("expected a cloud")
	}
	if res.ID == "" {
		t.Error("missing id")
	}
}

func TestEvaluateEndpointErrors(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		req  Request
		want int
	}{
		{"parse error", Request{Name: "x.scene", Source: "prism\n"}, http.StatusUnprocessableEntity},
		{"lisp error", Request{Name: "x.lisp", Source: "(union (sphere)"}, http.StatusUnprocessableEntity},
		{"unknown density", Request{Name: "x.scene", Source: "cube\n", Density: "huge"}, http.StatusBadRequest},
		{"density over limit", Request{Name: "x.scene", Source: "cube\n", Density: "high"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := post(t, srv.URL+"/api/evaluate", tt.req)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestEvaluateEndpointBadBody(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Post(srv.URL+"/api/evaluate", "application/json", strings.NewReader("{"))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestExportEndpoint(t *testing.T) {
	srv := newTestServer(t)
	req := Request{Name: "ball.scene", Source: "sphere (1,0,0,1) (0,0,0) (0,0,0) (1,1,1)\n"}

	resp := post(t, srv.URL+"/api/export/ply", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "ply\n") {
		t.Errorf("body does not start with a PLY header: %q", buf.String()[:min(20, buf.Len())])
	}
	if resp.Header.Get("X-Eval-Id") == "" {
		t.Error("missing X-Eval-Id header")
	}

	resp = post(t, srv.URL+"/api/export/obj", req)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown format status = %d, want 404", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/api/evaluate", "/api/export/ply", "/health"} {
		method := http.MethodGet
		if path == "/health" {
			method = http.MethodPost
		}
		req, err := http.NewRequest(method, srv.URL+path, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: status = %d, want 405", method, path, resp.StatusCode)
		}
	}
}

func TestPointLimit(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name, scale string
		want        int
	}{
		{"within limit", "2,2,2", http.StatusOK},
		{"over limit", "1000,1000,1000", http.StatusBadRequest},
		{"overflowing count", "1e12,1e12,1e12", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{
				Name:   "big.scene",
				Source: "sphere (1,0,0,1) (0,0,0) (0,0,0) (" + tt.scale + ")\n",
			}
			for _, path := range []string{"/api/evaluate", "/api/export/xyz"} {
				resp := post(t, srv.URL+path, req)
				if resp.StatusCode != tt.want {
					t.Errorf("%s: status = %d, want %d", path, resp.StatusCode, tt.want)
				}
			}
		})
	}
}

func TestInterpreterPoolFull(t *testing.T) {
	srv, app := newTestServerApp(t)
	if !app.limiter.TryAcquire(2) {
		t.Fatal("could not take every interpreter slot")
	}
	req := Request{Name: "ball.lisp", Source: "(sphere)"}
	resp := post(t, srv.URL+"/api/evaluate", req)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}

	app.limiter.Release(2)
	resp = post(t, srv.URL+"/api/evaluate", req)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("after release: status = %d, want 200", resp.StatusCode)
	}
}
