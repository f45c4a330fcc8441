package main

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/textproto"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/RanjanPM/potato-disease-classification/internal/config"
	"github.com/RanjanPM/potato-disease-classification/internal/predict"
)

func TestServerFinishesSubmissionOnShutdown(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	requestStarted := make(chan struct{})
	releaseRequest := make(chan struct{})
	defer func() {
		select {
		case <-releaseRequest:
		default:
			close(releaseRequest)
		}
	}()

	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict" {
			http.NotFound(w, r)
			return
		}
		close(requestStarted)
		<-releaseRequest
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"class":"Late Blight","confidence":0.47}`)
	}))
	defer remote.Close()

	cfg := &config.Config{
		PredictAPIURL: remote.URL,
		SessionSecret: "integration-secret",
		SessionTTL:    time.Hour,
	}
	router, _ := newRouter(cfg, predict.NewClient(predict.ClientOpts{BaseURL: remote.URL, Logger: logger}), logger)

	t.Log("creating listener")
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	server := &http.Server{Handler: router}

	signalCh := make(chan os.Signal, 1)
	done := make(chan error, 1)
	go func() {
		done <- serveHTTPServerWithOptions(server, 2*time.Second, logger, listener, signalCh)
	}()

	base := "http://" + listener.Addr().String()
	t.Logf("listening on %s", base)
	waitForServer(t, listener.Addr().String())

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}
	client := &http.Client{Timeout: 5 * time.Second, Jar: jar}

	selectResp := postImage(t, client, base+"/image")
	selectResp.Body.Close()
	if selectResp.StatusCode != http.StatusOK {
		t.Fatalf("image selection failed with status %d", selectResp.StatusCode)
	}

	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		req, _ := http.NewRequest(http.MethodPost, base+"/predict", nil)
		req.Header.Set("Accept", "application/json")
		resp, err := client.Do(req)
		if err != nil {
			errCh <- err
			return
		}
		respCh <- resp
	}()

	select {
	case <-requestStarted:
		t.Log("remote prediction started")
	case <-time.After(2 * time.Second):
		t.Fatal("prediction did not reach the remote service in time")
	}

	t.Log("sending signal")
	signalCh <- syscall.SIGTERM

	time.Sleep(50 * time.Millisecond)
	close(releaseRequest)

	select {
	case resp := <-respCh:
		t.Cleanup(func() { resp.Body.Close() })
		body, _ := io.ReadAll(resp.Body)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("unexpected status: %d body: %s", resp.StatusCode, string(body))
		}
		var state struct {
			Result struct {
				ConfidencePercent int    `json:"confidence_percent"`
				Tier              string `json:"tier"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &state); err != nil {
			t.Fatalf("invalid response %s: %v", body, err)
		}
		if state.Result.ConfidencePercent != 47 || state.Result.Tier != "low" {
			t.Fatalf("unexpected result: %s", body)
		}
	case err := <-errCh:
		t.Fatalf("request failed: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("request did not complete")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("server did not shutdown cleanly: %v", err)
		}
		t.Log("server shutdown complete")
	case <-time.After(2 * time.Second):
		t.Fatal("server did not exit after shutdown")
	}
}

func postImage(t *testing.T, client *http.Client, url string) *http.Response {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="file"; filename="leaf.jpg"`)
	header.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("failed to create part: %v", err)
	}
	if _, err := part.Write([]byte("\xff\xd8\xff\xe0jpeg")); err != nil {
		t.Fatalf("failed to write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed to close writer: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func waitForServer(t *testing.T, addr string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("server %s did not become ready", addr)
}
