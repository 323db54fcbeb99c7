package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// End-to-end smoke check against a running instance: login, mint an
// API key, submit a task with it, and confirm the task is visible.
func main() {
	base := os.Getenv("INVOICEHUB_SMOKE_ADDR")
	if base == "" {
		base = "http://localhost:8004"
	}
	email := os.Getenv("INVOICEHUB_SMOKE_EMAIL")
	password := os.Getenv("INVOICEHUB_SMOKE_PASSWORD")
	if email == "" || password == "" {
		log.Fatal("set INVOICEHUB_SMOKE_EMAIL and INVOICEHUB_SMOKE_PASSWORD")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	resp, err := client.Get(base + "/healthz")
	if err != nil || resp.StatusCode != http.StatusOK {
		log.Fatalf("healthz: %v (status %v)", err, status(resp))
	}
	resp.Body.Close()

	var login struct {
		AccessToken string `json:"access_token"`
	}
	post(client, base+"/v1/auth/login", "", map[string]any{
		"email":    email,
		"password": password,
	}, http.StatusOK, &login)
	if login.AccessToken == "" {
		log.Fatal("login returned no access token")
	}

	var key struct {
		Plaintext string `json:"plaintext"`
	}
	post(client, base+"/v1/apikeys", login.AccessToken, map[string]any{
		"name":   fmt.Sprintf("smoke-%d", time.Now().Unix()),
		"scopes": []string{"invoices:read", "queue:write"},
	}, http.StatusCreated, &key)
	if !strings.HasPrefix(key.Plaintext, "inv_") {
		log.Fatalf("unexpected key format %q", key.Plaintext)
	}

	var task struct {
		ID       string `json:"id"`
		ClientID string `json:"client_id"`
		Status   string `json:"status"`
	}
	body, _ := json.Marshal(map[string]any{
		"client_id": "smoke-client",
		"task_type": "ocr",
		"file_path": "/tmp/smoke.pdf",
		"source":    "upload",
	})
	req, _ := http.NewRequest(http.MethodPost, base+"/v1/queue/tasks", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", key.Plaintext)
	taskResp, err := client.Do(req)
	if err != nil {
		log.Fatalf("submit task: %v", err)
	}
	defer taskResp.Body.Close()
	if taskResp.StatusCode != http.StatusAccepted {
		log.Fatalf("submit task: status %d", taskResp.StatusCode)
	}
	if err := json.NewDecoder(taskResp.Body).Decode(&task); err != nil {
		log.Fatalf("decode task: %v", err)
	}
	if task.Status != "pending" {
		log.Fatalf("task status %q, want pending", task.Status)
	}

	fmt.Printf("smoke test passed: task=%s\n", task.ID)
}

func post(client *http.Client, url, token string, payload any, wantStatus int, out any) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Fatalf("marshal %s: %v", url, err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("post %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("post %s: status %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", url, err)
		}
	}
}

func status(resp *http.Response) any {
	if resp == nil {
		return "no response"
	}
	return resp.StatusCode
}
