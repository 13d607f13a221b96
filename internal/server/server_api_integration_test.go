package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yok-tottii/EzRecorder/internal/api"
	"github.com/yok-tottii/EzRecorder/internal/config"
	"github.com/yok-tottii/EzRecorder/internal/library"
	"github.com/yok-tottii/EzRecorder/internal/scheduler"
	"github.com/yok-tottii/EzRecorder/internal/waveform"
)

// TestServerAPIIntegration registers the API on the server mux before Start
// and drives it over real HTTP, with a real library and waveform view.
func TestServerAPIIntegration(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"recording_1.wav", "recording_2.mp3", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatalf("Failed to create %s: %v", name, err)
		}
	}

	lib := library.New(library.Config{Dir: dir}, nil, nil, nil)
	if err := lib.Refresh(); err != nil {
		t.Fatalf("Failed to scan recordings: %v", err)
	}

	loop := scheduler.NewLoop(16)
	loop.Start()
	defer loop.Stop()
	view := waveform.NewView(10, 100, waveform.NewCanvas(100, 40))

	appConfig := config.DefaultConfig()
	apiHandler := api.New(api.Deps{
		Config:     appConfig,
		ConfigPath: filepath.Join(t.TempDir(), "config.json"),
		Library:    lib,
		Waveform:   view,
	}, nil)
	defer apiHandler.Close()

	serverConfig := DefaultConfig()
	serverConfig.Port = 0 // Use random port
	server := New(serverConfig, nil)

	// Register API routes BEFORE starting the server
	apiHandler.RegisterRoutes(server.GetMux())

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	resp, err := http.Get(server.URL() + "/api/recordings")
	if err != nil {
		t.Fatalf("Failed to make request to API: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}

	var snapshot library.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("Failed to decode recordings response: %v", err)
	}
	if len(snapshot.Recordings) != 2 {
		t.Errorf("Expected 2 recordings (txt filtered), got %d", len(snapshot.Recordings))
	}

	// Delete over HTTP removes the file
	req, _ := http.NewRequest(http.MethodDelete, server.URL()+"/api/recordings/recording_2.mp3", nil)
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to execute DELETE request: %v", err)
	}
	delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", delResp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(dir, "recording_2.mp3")); !os.IsNotExist(err) {
		t.Error("Expected recording_2.mp3 to be removed")
	}

	// A file removed outside the app still deletes cleanly
	if err := os.Remove(filepath.Join(dir, "recording_1.wav")); err != nil {
		t.Fatalf("Failed to remove recording_1.wav: %v", err)
	}
	req, _ = http.NewRequest(http.MethodDelete, server.URL()+"/api/recordings/recording_1.wav", nil)
	goneResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to execute DELETE request: %v", err)
	}
	goneResp.Body.Close()
	if goneResp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200 for an already removed file, got %d", goneResp.StatusCode)
	}
	if n := len(lib.Snapshot().Recordings); n != 0 {
		t.Errorf("Expected empty list, got %d recordings", n)
	}

	// Settings round trip
	updates := map[string]interface{}{
		"ui_language": "en",
	}
	bodyBytes, _ := json.Marshal(updates)
	putReq, err := http.NewRequest(http.MethodPut, server.URL()+"/api/settings", bytes.NewReader(bodyBytes))
	if err != nil {
		t.Fatalf("Failed to create PUT request: %v", err)
	}
	putReq.Header.Set("Content-Type", "application/json")

	resp2, err := http.DefaultClient.Do(putReq)
	if err != nil {
		t.Fatalf("Failed to execute PUT request: %v", err)
	}
	defer resp2.Body.Close()

	if resp2.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp2.StatusCode)
	}
	if appConfig.UILanguage != "en" {
		t.Errorf("Expected UILanguage 'en', got '%s'", appConfig.UILanguage)
	}

	// Waveform updates reach WebSocket clients
	wsURL := "ws" + strings.TrimPrefix(server.URL(), "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial WebSocket: %v", err)
	}
	defer conn.Close()

	loop.Post(func() { view.Append(50) })

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		var msg struct {
			Type  string          `json:"type"`
			Frame *waveform.Frame `json:"frame"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("Failed to read waveform message: %v", err)
		}
		if msg.Type == "waveform" && msg.Frame != nil && len(msg.Frame.Lines) == 1 {
			if msg.Frame.Lines[0].Y0 != 10 || msg.Frame.Lines[0].Y1 != 30 {
				t.Errorf("Expected line from 10 to 30, got %+v", msg.Frame.Lines[0])
			}
			break
		}
	}
}

// TestRegisterAPIHandlerBeforeStart demonstrates registering routes before server starts
func TestRegisterAPIHandlerBeforeStart(t *testing.T) {
	server := New(DefaultConfig(), nil)
	server.port = 0

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test ok"))
	})

	if err := server.RegisterAPIHandler("/api/test/handler", testHandler); err != nil {
		t.Fatalf("Failed to register handler before start: %v", err)
	}

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	resp, err := http.Get(server.URL() + "/api/test/handler")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "test ok" {
		t.Errorf("Expected response 'test ok', got '%s'", string(body))
	}
}

// TestRegisterAPIHandlerAfterStart verifies late registration is rejected
func TestRegisterAPIHandlerAfterStart(t *testing.T) {
	server := New(DefaultConfig(), nil)
	server.port = 0

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	if err := server.RegisterAPIHandler("/api/late", testHandler); err == nil {
		t.Error("Expected error when registering after start")
	}
}

// TestRegisterAPIHandlerPath verifies handlers cannot shadow the frontend
func TestRegisterAPIHandlerPath(t *testing.T) {
	server := New(DefaultConfig(), nil)
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		path    string
		wantErr bool
	}{
		{"/api/ok", false},
		{"/ws", false},
		{"/", true},
		{"/index.html", true},
	}

	for _, tt := range tests {
		err := server.RegisterAPIHandler(tt.path, handler)
		if (err != nil) != tt.wantErr {
			t.Errorf("RegisterAPIHandler(%q): expected error=%v, got %v", tt.path, tt.wantErr, err)
		}
	}
}

// TestGetMux verifies direct mux access works correctly
func TestGetMux(t *testing.T) {
	server := New(DefaultConfig(), nil)
	server.port = 0

	mux := server.GetMux()
	if mux == nil {
		t.Fatal("Expected GetMux to return non-nil mux")
	}

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("direct mux ok"))
	})
	mux.Handle("/api/direct/test", testHandler)

	if err := server.Start(); err != nil {
		t.Fatalf("Failed to start server: %v", err)
	}
	defer server.Stop()

	resp, err := http.Get(server.URL() + "/api/direct/test")
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	if string(body) != "direct mux ok" {
		t.Errorf("Expected response 'direct mux ok', got '%s'", string(body))
	}
}
