package http

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/vovakirdan/tensor-server/internal/core"
	"github.com/vovakirdan/tensor-server/internal/store"
)

func listClients(t *testing.T, env *testEnv, method, path, token string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, env.http.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("authorization", token)
	}
	resp, err := env.http.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestListClientsRequiresConnectedToken(t *testing.T) {
	env := startTestEnv(t)
	_, token := env.register(t, "alice")

	if resp := listClients(t, env, http.MethodGet, "/list_clients", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing header: expected 401, got %d", resp.StatusCode)
	}
	// registered but not connected
	if resp := listClients(t, env, http.MethodGet, "/list_clients", token); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("offline token: expected 401, got %d", resp.StatusCode)
	}
	if resp := listClients(t, env, http.MethodGet, "/list_clients", "ZZZZZZZZZZZZZZZZ"); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unknown token: expected 401, got %d", resp.StatusCode)
	}
}

func TestListClientsPartitionsOnlineAndOffline(t *testing.T) {
	env := startTestEnv(t)
	alice, aliceToken := env.register(t, "alice")
	bob, _ := env.register(t, "bob")
	ctx := testContext(t)

	conn := env.dial(ctx, t, aliceToken)
	readServerMessage(ctx, t, conn)

	resp := listClients(t, env, http.MethodGet, "/list_clients", aliceToken)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("missing CORS header, got %q", got)
	}

	var raw map[string][]map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(raw["online"]) != 1 || raw["online"][0]["uuid"] != alice.UUID {
		t.Fatalf("unexpected online list: %+v", raw["online"])
	}
	if len(raw["offline"]) != 1 || raw["offline"][0]["uuid"] != bob.UUID {
		t.Fatalf("unexpected offline list: %+v", raw["offline"])
	}
	for _, group := range raw {
		for _, rec := range group {
			if _, leaked := rec["token"]; leaked {
				t.Fatalf("token leaked in listing: %+v", rec)
			}
			if rec["username"] == nil || rec["display_name"] == nil {
				t.Fatalf("record missing fields: %+v", rec)
			}
		}
	}
}

func TestListingGatewayNotFound(t *testing.T) {
	env := startTestEnv(t)

	cases := []struct{ method, path string }{
		{http.MethodGet, "/"},
		{http.MethodGet, "/nope"},
		{http.MethodGet, "/list_clients/extra"},
		{http.MethodPost, "/list_clients"},
		{http.MethodDelete, "/list_clients"},
	}
	for _, tc := range cases {
		if resp := listClients(t, env, tc.method, tc.path, ""); resp.StatusCode != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, resp.StatusCode)
		}
	}
}

func TestListingGatewayPreflight(t *testing.T) {
	env := startTestEnv(t)

	for _, path := range []string{"/list_clients", "/", "/nope"} {
		resp := listClients(t, env, http.MethodOptions, path, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("OPTIONS %s: expected 200, got %d", path, resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Headers"); got == "" {
			t.Fatalf("OPTIONS %s: expected CORS allow headers", path)
		}
	}
}

func TestPartitionClientsDeduplicatesAndKeepsOrder(t *testing.T) {
	registered := []store.ClientRecord{{UUID: "a"}, {UUID: "b"}, {UUID: "c"}}
	conns := []core.LiveConnection{
		{Addr: "1", Client: store.ClientRecord{UUID: "c"}},
		{Addr: "2", Client: store.ClientRecord{UUID: "a"}},
		{Addr: "3", Client: store.ClientRecord{UUID: "c"}},
	}

	got := partitionClients(registered, conns)
	if len(got.Online) != 2 || got.Online[0].UUID != "a" || got.Online[1].UUID != "c" {
		t.Fatalf("unexpected online: %+v", got.Online)
	}
	if len(got.Offline) != 1 || got.Offline[0].UUID != "b" {
		t.Fatalf("unexpected offline: %+v", got.Offline)
	}

	empty := partitionClients(nil, nil)
	if empty.Online == nil || empty.Offline == nil {
		t.Fatal("expected non-nil slices so JSON encodes []")
	}
}
