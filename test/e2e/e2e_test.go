//go:build e2e
// +build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stemsi/exstem-mock/internal/model"
)

const defaultBaseURL = "http://localhost:8080/api/v1"

var baseURL string

func TestMain(m *testing.M) {
	// Load .env if present (ignore error)
	_ = godotenv.Load("../../.env")

	baseURL = os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	resp, err := http.Get(baseURL + "/programs")
	if err != nil {
		fmt.Printf("Server not reachable at %s: %v\n", baseURL, err)
		os.Exit(1)
	}
	resp.Body.Close()

	os.Exit(m.Run())
}

func TestE2EFlow(t *testing.T) {
	var (
		sessionID string
		attemptID string
	)

	t.Run("ListPrograms", func(t *testing.T) {
		resp, err := do(http.MethodGet, "/programs", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Programs []struct {
					ID string `json:"id"`
				} `json:"programs"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		found := false
		for _, p := range body.Data.Programs {
			found = found || p.ID == "cat"
		}
		if !found {
			t.Fatalf("cat program missing: %+v", body.Data.Programs)
		}
	})

	t.Run("StartSectionMock", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/sessions", model.StartSessionRequest{
			ProgramID: "cat", Variant: "section", SectionID: "qa",
		})
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Session struct {
					ID     string `json:"id"`
					Locked bool   `json:"forward_lock"`
				} `json:"session"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		sessionID = body.Data.Session.ID
		if sessionID == "" || body.Data.Session.Locked {
			t.Fatalf("session = %+v", body.Data.Session)
		}
	})

	t.Run("AnswerAndNavigate", func(t *testing.T) {
		zero, one := 0, 1
		steps := []struct {
			path string
			body interface{}
		}{
			{"/answer", model.SelectAnswerRequest{QuestionIndex: &zero, OptionIndex: &zero}},
			{"/flag", model.ToggleFlagRequest{QuestionIndex: &zero}},
			{"/navigate", model.NavigateRequest{Action: "goto", QuestionIndex: &one}},
			{"/answer", model.SelectAnswerRequest{QuestionIndex: &one, OptionIndex: &one}},
		}
		for _, s := range steps {
			resp, err := do(http.MethodPost, "/sessions/"+sessionID+s.path, s.body)
			if err != nil {
				t.Fatalf("%s: %v", s.path, err)
			}
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("%s status %d: %s", s.path, resp.StatusCode, readBody(resp))
			}
			resp.Body.Close()
		}
	})

	t.Run("Submit", func(t *testing.T) {
		resp, err := do(http.MethodPost, "/sessions/"+sessionID+"/submit", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}

		var body struct {
			Data struct {
				Outcome struct {
					Saved     bool              `json:"saved"`
					AttemptID string            `json:"attempt_id"`
					Result    model.ScoreResult `json:"result"`
				} `json:"outcome"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		out := body.Data.Outcome
		if !out.Saved || out.AttemptID == "" {
			t.Fatalf("outcome = %+v", out)
		}
		if got := out.Result.Correct + out.Result.Incorrect; got != 2 {
			t.Fatalf("answered = %d, want 2", got)
		}
		attemptID = out.AttemptID
	})

	t.Run("ReviewUnanswered", func(t *testing.T) {
		resp, err := do(http.MethodGet, "/attempts/"+attemptID+"/review?filter=unanswered", nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d: %s", resp.StatusCode, readBody(resp))
		}
		var body struct {
			Data struct {
				Review struct {
					Items []struct {
						Index int `json:"index"`
					} `json:"items"`
				} `json:"review"`
			} `json:"data"`
		}
		decodeJSON(t, resp, &body)
		for _, it := range body.Data.Review.Items {
			if it.Index < 2 {
				t.Fatalf("answered question %d listed as unanswered", it.Index)
			}
		}
	})

	t.Run("DeleteAttempt", func(t *testing.T) {
		resp, err := do(http.MethodDelete, "/attempts/"+attemptID, nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status %d", resp.StatusCode)
		}

		resp, err = do(http.MethodGet, "/attempts/"+attemptID, nil)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status after delete = %d, want 404", resp.StatusCode)
		}
	})
}

// Helpers

func do(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBytes, _ := json.Marshal(body)
		bodyReader = bytes.NewBuffer(jsonBytes)
	}

	req, err := http.NewRequest(method, baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

func decodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("json decode: %v", err)
	}
}
