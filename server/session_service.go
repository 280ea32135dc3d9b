package server

import (
	"context"
	"fmt"
	"strings"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sadraskol/mia/compiler"
)

// SessionServiceImpl implements the SessionService Connect handler.
type SessionServiceImpl struct {
	sessions *SessionStore
	entry    string
}

// NewSessionServiceImpl creates a SessionServiceImpl.
func NewSessionServiceImpl(sessions *SessionStore, entry string) *SessionServiceImpl {
	if entry == "" {
		entry = compiler.DefaultEntry
	}
	return &SessionServiceImpl{sessions: sessions, entry: entry}
}

// Create creates a new workspace session.
func (s *SessionServiceImpl) Create(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	session := s.sessions.Create(stringField(req.Msg, "name"))
	return reply(fields{
		"id":   structpb.NewStringValue(session.ID),
		"name": structpb.NewStringValue(session.Name),
	}), nil
}

// Define adds declarations to a session. The session prelude followed by
// the new source must build; otherwise the session is left unchanged.
func (s *SessionServiceImpl) Define(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := requireString(req.Msg, "session")
	if err != nil {
		return nil, err
	}
	source, err := requireString(req.Msg, "source")
	if err != nil {
		return nil, err
	}
	session, ok := s.sessions.Get(id)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}

	f := fields{}
	prog, err := compiler.Parse(evalFile, source)
	if err != nil {
		diagnosticFields(f, err, 0)
		return reply(f), nil
	}
	names, err := s.declarations(prog)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	session.defining.Lock()
	defer session.defining.Unlock()
	prelude := session.Prelude()
	if _, err := compiler.Build(evalFile, prelude+source, compiler.Options{Entry: s.entry}); err != nil {
		diagnosticFields(f, err, strings.Count(prelude, "\n"))
		return reply(f), nil
	}

	session.define(source, names)
	serverLog.Debugf("session %s defines %v", session.ID, names)
	f["success"] = structpb.NewBoolValue(true)
	f["bindings"] = stringList(session.Bindings())
	return reply(f), nil
}

// declarations returns the names prog binds. Only declarations may enter a
// prelude, and none of them may be the entry binding, since that would end
// every later evaluation early.
func (s *SessionServiceImpl) declarations(prog *compiler.Program) ([]string, error) {
	var names []string
	for _, stmt := range prog.Statements {
		switch d := stmt.(type) {
		case *compiler.LetStmt:
			if d.Public && d.Name == s.entry {
				return nil, fmt.Errorf("line %d: a definition cannot bind the entry %q", d.NamePos.Line, s.entry)
			}
			names = append(names, d.Name)
		case *compiler.FnDecl:
			names = append(names, d.Name)
		case *compiler.StructDecl:
			names = append(names, d.Name)
		case *compiler.ImportStmt:
		default:
			return nil, fmt.Errorf("line %d: only declarations can be defined", stmt.Span().Start.Line)
		}
	}
	return names, nil
}

// Destroy destroys a session.
func (s *SessionServiceImpl) Destroy(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	id, err := requireString(req.Msg, "session")
	if err != nil {
		return nil, err
	}
	if !s.sessions.Destroy(id) {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
	}
	return reply(fields{}), nil
}
