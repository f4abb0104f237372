//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
)

type taskResponse struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

func TestTaskLifecycle(t *testing.T) {
	var ids []int
	for _, title := range []string{"one", "two", "three"} {
		var created taskResponse
		doJSON(t, http.MethodPost, "/tasks/", map[string]string{
			"title": title, "description": title + " details", "status": "open",
		}, http.StatusCreated, &created)
		ids = append(ids, created.ID)
	}

	doJSON(t, http.MethodDelete, fmt.Sprintf("/tasks/%d", ids[1]), nil, http.StatusOK, nil)

	var fourth taskResponse
	doJSON(t, http.MethodPost, "/tasks/", map[string]string{
		"title": "four", "description": "d", "status": "open",
	}, http.StatusCreated, &fourth)
	if fourth.ID != ids[2]+1 {
		t.Fatalf("expected id %d, got %d", ids[2]+1, fourth.ID)
	}

	var updated taskResponse
	doJSON(t, http.MethodPut, fmt.Sprintf("/tasks/%d", ids[0]), map[string]string{"status": "done"}, http.StatusOK, &updated)
	if updated.Title != "one" || updated.Status != "done" {
		t.Fatalf("unexpected update result: %+v", updated)
	}

	doJSON(t, http.MethodGet, fmt.Sprintf("/tasks/%d", ids[1]), nil, http.StatusNotFound, nil)
}

func doJSON(t *testing.T, method, path string, payload any, wantStatus int, out any) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	req, err := http.NewRequest(method, baseURL+path, &body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		t.Fatalf("%s %s: expected %d, got %d", method, path, wantStatus, resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode: %v", err)
		}
	}
}
