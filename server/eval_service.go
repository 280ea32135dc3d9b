package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sadraskol/mia/compiler"
	"github.com/sadraskol/mia/compiler/hash"
	"github.com/sadraskol/mia/format"
	"github.com/sadraskol/mia/store"
	"github.com/sadraskol/mia/vm"
	"github.com/sadraskol/mia/vm/dist"
)

// evalFile names submitted source in diagnostics.
const evalFile = "<eval>"

// EvalService implements the EvaluationService Connect handler.
type EvalService struct {
	sessions  *SessionStore
	pool      *RunPool
	store     *store.Store // optional compile cache
	entry     string
	maxFrames int
	memo      *resultMemo
}

// NewEvalService creates an EvalService. st may be nil.
func NewEvalService(sessions *SessionStore, pool *RunPool, st *store.Store, entry string, maxFrames int) *EvalService {
	if entry == "" {
		entry = compiler.DefaultEntry
	}
	return &EvalService{
		sessions:  sessions,
		pool:      pool,
		store:     st,
		entry:     entry,
		maxFrames: maxFrames,
		memo:      newResultMemo(defaultMemoSize),
	}
}

// unit is one request's source after the session prelude was prepended.
type unit struct {
	source       string
	preludeLines int
	entry        string
}

func (s *EvalService) prepare(msg *structpb.Struct) (*unit, error) {
	source, err := requireString(msg, "source")
	if err != nil {
		return nil, err
	}
	u := &unit{source: source, entry: s.entry}
	if entry := stringField(msg, "entry"); entry != "" {
		u.entry = entry
	}
	if id := stringField(msg, "session"); id != "" {
		session, ok := s.sessions.Get(id)
		if !ok {
			return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("session %q not found", id))
		}
		prelude := session.Prelude()
		u.source = prelude + source
		u.preludeLines = strings.Count(prelude, "\n")
	}
	return u, nil
}

// Evaluate type-checks, compiles and runs a program. Build and runtime
// failures are reported in the response; only malformed requests and
// cancelled runs are RPC errors.
func (s *EvalService) Evaluate(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	u, err := s.prepare(req.Msg)
	if err != nil {
		return nil, err
	}

	f := fields{}
	prog, err := compiler.Parse(evalFile, u.source)
	if err != nil {
		diagnosticFields(f, err, u.preludeLines)
		return reply(f), nil
	}

	key := memoKey{sum: hash.HashProgram(prog), entry: u.entry}
	if value, ok := s.memo.get(key); ok {
		serverLog.Debugf("memo hit %s", key.sum.Short())
		resultFields(f, value)
		f["cached"] = structpb.NewBoolValue(true)
		return reply(f), nil
	}

	chunk, err := s.compile(ctx, prog, u)
	if err != nil {
		diagnosticFields(f, err, u.preludeLines)
		return reply(f), nil
	}

	value, err := s.pool.Do(ctx, chunk, vm.WithMaxFrames(s.maxFrames))
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, connect.NewError(connect.CodeCanceled, err)
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, connect.NewError(connect.CodeDeadlineExceeded, err)
		}
		if errors.Is(err, errPoolStopped) {
			return nil, connect.NewError(connect.CodeUnavailable, err)
		}
		diagnosticFields(f, err, u.preludeLines)
		return reply(f), nil
	}

	s.memo.put(key, value)
	resultFields(f, value)
	return reply(f), nil
}

func resultFields(f fields, value vm.Value) {
	f["success"] = structpb.NewBoolValue(true)
	f["exitCode"] = structpb.NewNumberValue(0)
	if value == nil {
		return
	}
	f["formatted"] = structpb.NewStringValue(format.JSON(value))
	f["result"] = protoValue(value)
}

// compile checks and compiles prog, going through the image store when the
// server has one.
func (s *EvalService) compile(ctx context.Context, prog *compiler.Program, u *unit) (*vm.Chunk, error) {
	sourceHash := dist.HashSource(u.source)
	if s.store != nil {
		img, err := s.store.Get(ctx, sourceHash, u.entry)
		if err == nil {
			return img.VMChunk()
		}
		if !errors.Is(err, store.ErrImageNotFound) {
			serverLog.Warningf("image store: %s", err)
		}
	}

	opts := compiler.Options{File: evalFile, Entry: u.entry}
	res, err := compiler.Check(prog, opts)
	if err != nil {
		return nil, err
	}
	chunk, err := compiler.Compile(prog, res, opts)
	if err != nil {
		return nil, err
	}

	if s.store != nil {
		img, err := dist.NewImage(chunk, sourceHash, u.entry)
		if err == nil {
			err = s.store.Put(ctx, img)
		}
		if err != nil {
			serverLog.Warningf("image store: %s", err)
		}
	}
	return chunk, nil
}

// Check parses and type-checks a program and lists its warnings.
func (s *EvalService) Check(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	u, err := s.prepare(req.Msg)
	if err != nil {
		return nil, err
	}

	f := fields{}
	opts := compiler.Options{Entry: u.entry}
	result, err := compiler.CheckSource(evalFile, u.source, opts)
	if err != nil {
		diagnosticFields(f, err, u.preludeLines)
		return reply(f), nil
	}

	var warnings []string
	for _, w := range compiler.Analyze(result.Program, result.Resolution, opts) {
		if w.Pos.Line <= u.preludeLines {
			continue
		}
		w.Pos.Line -= u.preludeLines
		warnings = append(warnings, w.String())
	}
	f["success"] = structpb.NewBoolValue(true)
	f["exitCode"] = structpb.NewNumberValue(0)
	f["warnings"] = stringList(warnings)
	return reply(f), nil
}

// Disassemble compiles a program and returns its bytecode listing.
func (s *EvalService) Disassemble(
	ctx context.Context,
	req *connect.Request[structpb.Struct],
) (*connect.Response[structpb.Struct], error) {
	u, err := s.prepare(req.Msg)
	if err != nil {
		return nil, err
	}

	f := fields{}
	result, err := compiler.Build(evalFile, u.source, compiler.Options{Entry: u.entry})
	if err != nil {
		diagnosticFields(f, err, u.preludeLines)
		return reply(f), nil
	}
	f["success"] = structpb.NewBoolValue(true)
	f["listing"] = structpb.NewStringValue(result.Chunk.Disassemble())
	return reply(f), nil
}

// ---------------------------------------------------------------------------
// Result memo
// ---------------------------------------------------------------------------

const defaultMemoSize = 1024

// memoKey identifies a program by the hash of its normalized syntax tree.
// Programs have no effects, so equal trees yield equal results.
type memoKey struct {
	sum   hash.Sum
	entry string
}

type resultMemo struct {
	mu      sync.Mutex
	entries map[memoKey]vm.Value
	limit   int
}

func newResultMemo(limit int) *resultMemo {
	return &resultMemo{entries: make(map[memoKey]vm.Value), limit: limit}
}

func (m *resultMemo) get(key memoKey) (vm.Value, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[key]
	return v, ok
}

// put stores a result, starting over once the memo is full.
func (m *resultMemo) put(key memoKey, value vm.Value) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.entries) >= m.limit {
		m.entries = make(map[memoKey]vm.Value)
	}
	m.entries[key] = value
}
