package gmail

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"MailTracker/internal/config"
	"MailTracker/internal/domain"
)

type fakeGmail struct {
	mu       sync.Mutex
	labels   map[string]string
	modified map[string][2][]string
	created  []string
}

func (f *fakeGmail) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		var out []map[string]string
		for name, id := range f.labels {
			out = append(out, map[string]string{"id": id, "name": name})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"labels": out})
	})
	mux.HandleFunc("POST /gmail/v1/users/me/labels", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Name string `json:"name"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		id := "Label_" + strings.ReplaceAll(body.Name, " ", "")
		f.labels[body.Name] = id
		f.created = append(f.created, body.Name)
		f.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"id": id, "name": body.Name})
	})
	mux.HandleFunc("GET /gmail/v1/users/me/threads", func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("labelIds"); got != "Label_todo" {
			t.Errorf("unexpected label filter %q", got)
		}
		_, _ = w.Write([]byte(`{"threads":[{"id":"t1"},{"id":"gone"}]}`))
	})
	mux.HandleFunc("GET /gmail/v1/users/me/threads/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "t1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		plain := base64.URLEncoding.EncodeToString([]byte("Hi,\r\n\r\nThanks   for applying.\r\n"))
		html := base64.RawURLEncoding.EncodeToString([]byte("<html><body><p>Interview   invite</p><script>x()</script><div>Acme</div></body></html>"))
		resp := map[string]any{
			"id": "t1",
			"messages": []map[string]any{
				{
					"id":           "m1",
					"threadId":     "t1",
					"internalDate": "1709285400000",
					"payload": map[string]any{
						"mimeType": "multipart/alternative",
						"headers": []map[string]string{
							{"name": "Subject", "value": " Thank you for applying to Acme "},
							{"name": "From", "value": "Acme Careers <jobs@acme.com>"},
						},
						"parts": []map[string]any{
							{"mimeType": "text/html", "body": map[string]string{"data": html}},
							{"mimeType": "text/plain", "body": map[string]string{"data": plain}},
						},
					},
				},
				{
					"id":           "m2",
					"threadId":     "t1",
					"internalDate": "1709371800000",
					"payload": map[string]any{
						"mimeType": "text/html",
						"headers":  []map[string]string{{"name": "subject", "value": "Next steps"}},
						"body":     map[string]string{"data": html},
					},
				},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("POST /gmail/v1/users/me/threads/{id}/modify", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "gone" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Add    []string `json:"addLabelIds"`
			Remove []string `json:"removeLabelIds"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		f.mu.Lock()
		f.modified[id] = [2][]string{body.Remove, body.Add}
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	})
	return mux
}

func newTestClient(t *testing.T) (*Client, *fakeGmail) {
	t.Helper()
	fake := &fakeGmail{
		labels:   map[string]string{"Tracker/To Process": "Label_todo"},
		modified: map[string][2][]string{},
	}
	srv := httptest.NewServer(fake.handler(t))
	t.Cleanup(srv.Close)
	client := NewClient(config.GmailConfig{Endpoint: srv.URL, AccessToken: "token"}, nil)
	return client, fake
}

func TestFetchThreads(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	threads, err := client.FetchThreads(context.Background(), "Tracker/To Process", 10)
	if err != nil {
		t.Fatalf("FetchThreads returned error: %v", err)
	}
	if len(threads) != 1 {
		t.Fatalf("expected vanished thread to be skipped, got %d threads", len(threads))
	}

	msgs := threads[0].Messages
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	first := msgs[0]
	if first.Subject != "Thank you for applying to Acme" {
		t.Fatalf("unexpected subject %q", first.Subject)
	}
	if first.Body != "Hi,\nThanks for applying." {
		t.Fatalf("expected plain part to win, got %q", first.Body)
	}
	if first.From != "Acme Careers <jobs@acme.com>" || first.ThreadID != "t1" {
		t.Fatalf("unexpected message %+v", first)
	}
	if want := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC); !first.Timestamp.Equal(want) {
		t.Fatalf("unexpected timestamp %s", first.Timestamp)
	}
	if !strings.HasSuffix(first.Permalink, "#all/m1") {
		t.Fatalf("unexpected permalink %q", first.Permalink)
	}

	second := msgs[1]
	if second.Subject != "Next steps" {
		t.Fatalf("header lookup should be case-insensitive, got %q", second.Subject)
	}
	if second.Body != "Interview invite\nAcme" {
		t.Fatalf("unexpected html rendering %q", second.Body)
	}
}

func TestFetchThreadsMissingLabel(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	threads, err := client.FetchThreads(context.Background(), "Nope", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(threads) != 0 {
		t.Fatalf("expected no threads, got %d", len(threads))
	}
}

func TestModifyLabels(t *testing.T) {
	t.Parallel()

	client, fake := newTestClient(t)
	ctx := context.Background()

	if err := client.ModifyLabels(ctx, "t1", []string{"Tracker/To Process"}, []string{"Tracker/Processed"}); err != nil {
		t.Fatalf("ModifyLabels returned error: %v", err)
	}

	fake.mu.Lock()
	got := fake.modified["t1"]
	created := append([]string(nil), fake.created...)
	fake.mu.Unlock()

	if len(got[0]) != 1 || got[0][0] != "Label_todo" {
		t.Fatalf("unexpected removed labels %v", got[0])
	}
	if len(got[1]) != 1 || got[1][0] != "Label_Tracker/Processed" {
		t.Fatalf("unexpected added labels %v", got[1])
	}
	if len(created) != 1 || created[0] != "Tracker/Processed" {
		t.Fatalf("expected outcome label to be created once, got %v", created)
	}

	// second call reuses the cached label id
	if err := client.ModifyLabels(ctx, "t1", []string{"Tracker/To Process"}, []string{"Tracker/Processed"}); err != nil {
		t.Fatalf("second ModifyLabels returned error: %v", err)
	}
	fake.mu.Lock()
	defer fake.mu.Unlock()
	if len(fake.created) != 1 {
		t.Fatalf("label created twice: %v", fake.created)
	}
}

func TestModifyLabelsVanishedThread(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t)
	err := client.ModifyLabels(context.Background(), "gone", []string{"Tracker/To Process"}, []string{"Tracker/Processed"})
	if !errors.Is(err, domain.ErrThreadNotFound) {
		t.Fatalf("expected ErrThreadNotFound, got %v", err)
	}
}

func TestExtractBodyDecodesPaddedAndRawData(t *testing.T) {
	t.Parallel()

	padded := base64.URLEncoding.EncodeToString([]byte("ab"))
	if got := extractBody(messagePart{MimeType: "text/plain", Body: partBody{Data: padded}}); got != "ab" {
		t.Fatalf("padded decode: got %q", got)
	}
	if got := extractBody(messagePart{MimeType: "multipart/mixed"}); got != "" {
		t.Fatalf("expected empty body, got %q", got)
	}
}
