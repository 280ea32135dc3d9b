package server

import (
	"reflect"
	"strings"
	"testing"

	"connectrpc.com/connect"
)

// ---------------------------------------------------------------------------
// Create
// ---------------------------------------------------------------------------

func TestCreateSession_WithName(t *testing.T) {
	svc := newTestSessionService()

	resp, err := svc.Create(bg(), structReq(map[string]string{"name": "my-workspace"}))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	id := getString(t, resp.Msg, "id")
	if id == "" {
		t.Fatal("Create should return a non-empty session ID")
	}
	defer testSessions.Destroy(id)

	session, ok := testSessions.Get(id)
	if !ok {
		t.Fatal("session should be retrievable after creation")
	}
	if session.Name != "my-workspace" {
		t.Errorf("Session.Name = %q, want %q", session.Name, "my-workspace")
	}
}

func TestCreateSession_UniqueIDs(t *testing.T) {
	svc := newTestSessionService()

	resp1, err := svc.Create(bg(), structReq(nil))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	resp2, err := svc.Create(bg(), structReq(nil))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	id1, id2 := getString(t, resp1.Msg, "id"), getString(t, resp2.Msg, "id")
	defer testSessions.Destroy(id1)
	defer testSessions.Destroy(id2)

	if id1 == id2 {
		t.Error("two sessions should have different IDs")
	}
}

// ---------------------------------------------------------------------------
// Define
// ---------------------------------------------------------------------------

func newSession(t *testing.T) string {
	t.Helper()
	session := testSessions.Create("test")
	t.Cleanup(func() { testSessions.Destroy(session.ID) })
	return session.ID
}

func define(t *testing.T, svc *SessionServiceImpl, id, source string) map[string]any {
	t.Helper()
	resp, err := svc.Define(bg(), structReq(map[string]string{"session": id, "source": source}))
	if err != nil {
		t.Fatalf("Define(%q) returned error: %v", source, err)
	}
	return resp.Msg.AsMap()
}

func TestDefine_ThenEvaluate(t *testing.T) {
	sessions := newTestSessionService()
	eval := newTestEvalService()
	id := newSession(t)

	if got := define(t, sessions, id, "let base = 40;"); got["success"] != true {
		t.Fatalf("Define failed: %v", got)
	}
	got := define(t, sessions, id, "fn bump(n): Number { return n + base; }")
	if got["success"] != true {
		t.Fatalf("Define failed: %v", got)
	}
	if want := []any{"base", "bump"}; !reflect.DeepEqual(got["bindings"], want) {
		t.Errorf("bindings = %v, want %v", got["bindings"], want)
	}

	resp, err := eval.Evaluate(bg(), structReq(map[string]string{
		"session": id,
		"source":  "pub let main = bump(2);",
	}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if got := getString(t, resp.Msg, "formatted"); got != "42" {
		t.Errorf("formatted = %s, want 42", got)
	}
}

func TestDefine_ErrorLinesRelativeToSource(t *testing.T) {
	sessions := newTestSessionService()
	eval := newTestEvalService()
	id := newSession(t)

	define(t, sessions, id, "let a = 1;\nlet b = 2;")

	resp, err := eval.Evaluate(bg(), structReq(map[string]string{
		"session": id,
		"source":  "pub let main = missing;",
	}))
	if err != nil {
		t.Fatalf("Evaluate returned error: %v", err)
	}
	if got := getString(t, resp.Msg, "error"); got != "<eval>:1: Variable 'missing' not found" {
		t.Errorf("error = %q", got)
	}
}

func TestDefine_RejectsBadDefinitions(t *testing.T) {
	svc := newTestSessionService()
	id := newSession(t)

	got := define(t, svc, id, "let x = 1 + 'a';")
	if got["success"] != false {
		t.Fatalf("Define should fail: %v", got)
	}
	if got["errorKind"] != "operator" {
		t.Errorf("errorKind = %v, want operator", got["errorKind"])
	}

	session, _ := testSessions.Get(id)
	if session.Prelude() != "" {
		t.Errorf("failed definition should not change the prelude, got %q", session.Prelude())
	}
}

func TestDefine_InvalidArgument(t *testing.T) {
	svc := newTestSessionService()
	id := newSession(t)

	tests := []struct {
		name   string
		source string
	}{
		{"entry", "pub let main = 1;"},
		{"expression", "1 + 2;"},
		{"return", "return 1;"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Define(bg(), structReq(map[string]string{"session": id, "source": tt.source}))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}
}

func TestDefine_UnknownSession(t *testing.T) {
	svc := newTestSessionService()

	_, err := svc.Define(bg(), structReq(map[string]string{"session": "nope", "source": "let a = 1;"}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestDefine_Check(t *testing.T) {
	sessions := newTestSessionService()
	eval := newTestEvalService()
	id := newSession(t)

	define(t, sessions, id, "let unusedInPrelude = 1;")

	resp, err := eval.Check(bg(), structReq(map[string]string{
		"session": id,
		"source":  "let alsoUnused = 2;",
	}))
	if err != nil {
		t.Fatalf("Check returned error: %v", err)
	}
	warnings := getStrings(resp.Msg, "warnings")
	if len(warnings) != 1 || !strings.Contains(warnings[0], "alsoUnused") || !strings.Contains(warnings[0], "line 1") {
		t.Errorf("warnings = %v, want only the submitted binding on line 1", warnings)
	}
}

// ---------------------------------------------------------------------------
// Destroy
// ---------------------------------------------------------------------------

func TestDestroySession(t *testing.T) {
	svc := newTestSessionService()
	session := testSessions.Create("doomed")

	if _, err := svc.Destroy(bg(), structReq(map[string]string{"session": session.ID})); err != nil {
		t.Fatalf("Destroy returned error: %v", err)
	}
	if _, ok := testSessions.Get(session.ID); ok {
		t.Error("session should be gone after Destroy")
	}

	_, err := svc.Destroy(bg(), structReq(map[string]string{"session": session.ID}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestDestroySession_MissingID(t *testing.T) {
	svc := newTestSessionService()

	_, err := svc.Destroy(bg(), structReq(nil))
	assertCode(t, err, connect.CodeInvalidArgument)
}
