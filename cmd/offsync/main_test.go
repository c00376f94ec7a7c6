package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/offsync/pkg/offsync"
)

func TestReadPayload(t *testing.T) {
	tests := []struct {
		name    string
		stdin   string
		args    []string
		want    string
		wantErr bool
	}{
		{"argument", "", []string{`{"a":1}`}, `{"a":1}`, false},
		{"stdin dash", `{"b":2}`, []string{"-"}, `{"b":2}`, false},
		{"stdin implicit", `[1,2]`, nil, `[1,2]`, false},
		{"empty", "", nil, "", false},
		{"invalid", "", []string{`{nope`}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readPayload(strings.NewReader(tt.stdin), tt.args)
			if tt.wantErr {
				if !errors.Is(err, offsync.ErrInvalidOperation) {
					t.Errorf("readPayload() error = %v, want ErrInvalidOperation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("readPayload() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("readPayload() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestPrintOperations(t *testing.T) {
	ops := []offsync.Operation{{
		ID:           "op-1",
		EntityType:   "attendance",
		Kind:         offsync.KindCreate,
		Status:       offsync.StatusFailed,
		AttemptCount: 2,
		EnqueuedAt:   time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		LastError:    "http_422",
	}}

	var buf bytes.Buffer
	if err := printOperations(&buf, ops, false); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"ID", "op-1", "attendance", "failed", "http_422"} {
		if !strings.Contains(out, want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := printOperations(&buf, ops, true); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"entity_type": "attendance"`) {
		t.Errorf("json output = %s", buf.String())
	}
}

// schoolAPI accepts every entity except ledger, which it rejects.
type schoolAPI struct {
	mu       sync.Mutex
	requests []string
}

func (a *schoolAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.requests = append(a.requests, r.Method+" "+r.URL.Path)
	a.mu.Unlock()

	if r.URL.Path == "/v1/ledger" {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"code":"negative_amount"}`))
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *schoolAPI) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

// execute runs one offsync invocation with a fresh command tree.
func execute(t *testing.T, base []string, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newCLI().rootCmd()
	root.SetArgs(append(append([]string{}, base...), args...))
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&out)
	root.SetErr(&out)
	err := root.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	for _, backend := range []string{"file", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			api := &schoolAPI{}
			ts := httptest.NewServer(api)
			defer ts.Close()

			dir := t.TempDir()
			base := []string{
				"--config", filepath.Join(dir, "missing.toml"),
				"--state-dir", dir,
				"--backend", backend,
				"--session", "account-7",
			}
			remote := []string{"--service-url", ts.URL}

			// ids captured from earlier steps, referenced as $name in args
			ids := map[string]string{}

			steps := []struct {
				name    string
				args    []string
				stdin   string
				capture string
				check   func(t *testing.T, out string)
				wantErr error
			}{
				{
					name:    "enqueue offline",
					args:    []string{"enqueue", "attendance", "create", `{"student":"s1"}`},
					capture: "attendance",
				},
				{
					name:  "cache set from stdin",
					args:  []string{"cache", "set", "profile", "-"},
					stdin: `{"name":"Hillside"}`,
				},
				{
					name: "cache get",
					args: []string{"cache", "get", "profile"},
					check: func(t *testing.T, out string) {
						if strings.TrimSpace(out) != `{"name":"Hillside"}` {
							t.Errorf("output = %q", out)
						}
					},
				},
				{
					name:    "direct does not overtake queued work",
					args:    append([]string{"enqueue", "--direct", "ledger", "create", `{"amount":-5}`}, remote...),
					capture: "ledger",
					check: func(t *testing.T, out string) {
						if !strings.HasSuffix(strings.TrimSpace(out), "queued") {
							t.Errorf("output = %q, want queued", out)
						}
					},
				},
				{
					name: "pending json",
					args: []string{"pending", "--json"},
					check: func(t *testing.T, out string) {
						var ops []offsync.Operation
						if err := json.Unmarshal([]byte(out), &ops); err != nil {
							t.Fatalf("decode %q: %v", out, err)
						}
						if len(ops) != 2 || ops[0].EntityType != "attendance" || ops[1].EntityType != "ledger" {
							t.Errorf("pending = %+v, want attendance then ledger", ops)
						}
					},
				},
				{
					name: "drain",
					args: append([]string{"drain"}, remote...),
					check: func(t *testing.T, out string) {
						if !strings.Contains(out, "applied=1 rejected=1 remaining=0") {
							t.Errorf("output = %q", out)
						}
					},
				},
				{
					name: "failed json",
					args: []string{"failed", "--json"},
					check: func(t *testing.T, out string) {
						var ops []offsync.Operation
						if err := json.Unmarshal([]byte(out), &ops); err != nil {
							t.Fatalf("decode %q: %v", out, err)
						}
						if len(ops) != 1 || ops[0].ID != ids["ledger"] || ops[0].LastError != "http_422:negative_amount" {
							t.Errorf("failed = %+v", ops)
						}
					},
				},
				{
					name: "direct applies once nothing is unsent",
					args: append([]string{"enqueue", "--direct", "student", "create", `{"name":"Ada"}`}, remote...),
					check: func(t *testing.T, out string) {
						if !strings.HasSuffix(strings.TrimSpace(out), "applied") {
							t.Errorf("output = %q, want applied", out)
						}
					},
				},
				{
					name: "discard rejected",
					args: []string{"discard", "$ledger"},
				},
				{
					name:    "discard unknown",
					args:    []string{"discard", "$ledger"},
					wantErr: offsync.ErrNotFound,
				},
				{
					name: "failed empty",
					args: []string{"failed", "--json"},
					check: func(t *testing.T, out string) {
						if strings.TrimSpace(out) != "[]" {
							t.Errorf("output = %q, want []", out)
						}
					},
				},
				{
					name: "cache rm",
					args: []string{"cache", "rm", "profile"},
				},
				{
					name:    "cache get removed",
					args:    []string{"cache", "get", "profile"},
					wantErr: offsync.ErrNotFound,
				},
				{
					name:    "invalid kind",
					args:    []string{"enqueue", "student", "upsert", `{}`},
					wantErr: offsync.ErrInvalidOperation,
				},
			}

			for _, step := range steps {
				args := make([]string, len(step.args))
				for i, a := range step.args {
					if strings.HasPrefix(a, "$") {
						a = ids[a[1:]]
					}
					args[i] = a
				}

				out, err := execute(t, base, step.stdin, args...)
				if step.wantErr != nil {
					if !errors.Is(err, step.wantErr) {
						t.Fatalf("%s: error = %v, want %v", step.name, err, step.wantErr)
					}
					continue
				}
				if err != nil {
					t.Fatalf("%s: error = %v\n%s", step.name, err, out)
				}
				if step.capture != "" {
					fields := strings.Fields(out)
					if len(fields) == 0 {
						t.Fatalf("%s: no id in output", step.name)
					}
					ids[step.capture] = fields[0]
				}
				if step.check != nil {
					step.check(t, out)
				}
			}

			want := []string{"POST /v1/attendance", "POST /v1/ledger", "POST /v1/student"}
			got := api.Requests()
			if strings.Join(got, ",") != strings.Join(want, ",") {
				t.Errorf("backend requests = %v, want %v", got, want)
			}
		})
	}
}
