package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestServer(t *testing.T) (*MiaServer, *httptest.Server) {
	t.Helper()
	s := New(WithWorkers(1), WithMaxFrames(64))
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		s.Stop()
	})
	return s, ts
}

func TestServer_ConnectClient(t *testing.T) {
	_, ts := newTestServer(t)

	for _, opts := range [][]connect.ClientOption{
		nil,
		{connect.WithProtoJSON()},
		{connect.WithGRPCWeb()},
	} {
		client := connect.NewClient[structpb.Struct, structpb.Struct](ts.Client(), ts.URL+EvaluateProcedure, opts...)
		resp, err := client.CallUnary(bg(), structReq(map[string]string{"source": "pub let main = [1, 2];"}))
		if err != nil {
			t.Fatalf("CallUnary: %v", err)
		}
		if got := getString(t, resp.Msg, "formatted"); got != "[1,2]" {
			t.Errorf("formatted = %s, want [1,2]", got)
		}
	}
}

func TestServer_PlainJSON(t *testing.T) {
	_, ts := newTestServer(t)

	body := strings.NewReader(`{"source": "pub let main = 'a' + 'b';"}`)
	resp, err := http.Post(ts.URL+EvaluateProcedure, "application/json", body)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out["success"] != true || out["formatted"] != `"ab"` || out["result"] != "ab" {
		t.Errorf("response = %v", out)
	}
}

func TestServer_InvalidArgumentOverHTTP(t *testing.T) {
	_, ts := newTestServer(t)

	resp, err := http.Post(ts.URL+CheckProcedure, "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_SessionFlow(t *testing.T) {
	s, ts := newTestServer(t)

	call := func(procedure string, kv map[string]string) *structpb.Struct {
		t.Helper()
		client := connect.NewClient[structpb.Struct, structpb.Struct](ts.Client(), ts.URL+procedure)
		resp, err := client.CallUnary(bg(), structReq(kv))
		if err != nil {
			t.Fatalf("%s: %v", procedure, err)
		}
		return resp.Msg
	}

	id := getString(t, call(CreateSessionProcedure, map[string]string{"name": "flow"}), "id")
	if s.Sessions().Len() != 1 {
		t.Fatalf("sessions = %d, want 1", s.Sessions().Len())
	}

	call(DefineProcedure, map[string]string{"session": id, "source": "struct P { n: Number }\nlet p = P { n: 9 };"})
	out := call(EvaluateProcedure, map[string]string{"session": id, "source": "pub let main = [p];"})
	if got := getString(t, out, "formatted"); got != `[{"n":9}]` {
		t.Errorf("formatted = %s", got)
	}

	listing := getString(t, call(DisassembleProcedure, map[string]string{"session": id, "source": "pub let main = p;"}), "listing")
	if !strings.Contains(listing, "MAKE_STRUCT") {
		t.Errorf("listing should include the prelude:\n%s", listing)
	}

	call(DestroySessionProcedure, map[string]string{"session": id})
	if s.Sessions().Len() != 0 {
		t.Errorf("sessions = %d, want 0", s.Sessions().Len())
	}
}
