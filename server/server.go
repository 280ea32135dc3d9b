package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/sadraskol/mia/compiler"
	"github.com/sadraskol/mia/store"
	"github.com/sadraskol/mia/vm"
)

var serverLog = commonlog.GetLogger("mia.server")

var errPoolStopped = errors.New("server is shutting down")

// Procedure paths. Both services speak Connect, gRPC and gRPC-Web on the
// same port; messages are google.protobuf.Struct.
const (
	EvaluateProcedure    = "/mia.v1.EvaluationService/Evaluate"
	CheckProcedure       = "/mia.v1.EvaluationService/Check"
	DisassembleProcedure = "/mia.v1.EvaluationService/Disassemble"

	CreateSessionProcedure  = "/mia.v1.SessionService/Create"
	DefineProcedure         = "/mia.v1.SessionService/Define"
	DestroySessionProcedure = "/mia.v1.SessionService/Destroy"
)

// MiaServer is the evaluation server.
type MiaServer struct {
	pool     *RunPool
	sessions *SessionStore
	mux      *http.ServeMux
	http     *http.Server

	stopSweeper func()
}

// ServerOption configures a MiaServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	store         *store.Store
	entry         string
	maxFrames     int
	workers       int
	sessionTTL    time.Duration
	sweepInterval time.Duration
}

// WithStore makes the server cache compiled images in st.
func WithStore(st *store.Store) ServerOption {
	return func(c *serverConfig) { c.store = st }
}

// WithEntry sets the default entry binding.
func WithEntry(entry string) ServerOption {
	return func(c *serverConfig) { c.entry = entry }
}

// WithMaxFrames sets the call depth limit of every run.
func WithMaxFrames(n int) ServerOption {
	return func(c *serverConfig) { c.maxFrames = n }
}

// WithWorkers sets how many programs may run at once.
func WithWorkers(n int) ServerOption {
	return func(c *serverConfig) { c.workers = n }
}

// WithSessionTTL sets how long an idle session lives.
func WithSessionTTL(ttl time.Duration) ServerOption {
	return func(c *serverConfig) {
		if ttl > 0 {
			c.sessionTTL = ttl
		}
	}
}

// New creates a MiaServer.
func New(opts ...ServerOption) *MiaServer {
	cfg := &serverConfig{
		entry:         compiler.DefaultEntry,
		maxFrames:     vm.DefaultMaxFrames,
		sessionTTL:    30 * time.Minute,
		sweepInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sweepInterval > cfg.sessionTTL {
		cfg.sweepInterval = cfg.sessionTTL
	}

	s := &MiaServer{
		pool:     NewRunPool(cfg.workers),
		sessions: NewSessionStore(),
		mux:      http.NewServeMux(),
	}

	evalSvc := NewEvalService(s.sessions, s.pool, cfg.store, cfg.entry, cfg.maxFrames)
	sessionSvc := NewSessionServiceImpl(s.sessions, cfg.entry)

	s.handle(EvaluateProcedure, evalSvc.Evaluate)
	s.handle(CheckProcedure, evalSvc.Check)
	s.handle(DisassembleProcedure, evalSvc.Disassemble)
	s.handle(CreateSessionProcedure, sessionSvc.Create)
	s.handle(DefineProcedure, sessionSvc.Define)
	s.handle(DestroySessionProcedure, sessionSvc.Destroy)

	s.stopSweeper = s.sessions.StartSweeper(cfg.sweepInterval, cfg.sessionTTL)

	return s
}

type unaryFunc func(context.Context, *connect.Request[structpb.Struct]) (*connect.Response[structpb.Struct], error)

func (s *MiaServer) handle(procedure string, fn unaryFunc) {
	s.mux.Handle(procedure, connect.NewUnaryHandler[structpb.Struct, structpb.Struct](procedure, fn))
}

// Handler returns the HTTP handler serving every procedure.
func (s *MiaServer) Handler() http.Handler {
	return s.mux
}

// Sessions returns the server's session store.
func (s *MiaServer) Sessions() *SessionStore {
	return s.sessions
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *MiaServer) ListenAndServe(addr string) error {
	fmt.Printf("mia evaluation server listening on %s\n", addr)
	fmt.Printf("  Connect (HTTP/JSON): http://%s%s\n", addr, EvaluateProcedure)
	fmt.Printf("  gRPC (binary):       grpc://%s\n", addr)
	s.http = &http.Server{Addr: addr, Handler: s.mux}
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop shuts down the server.
func (s *MiaServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	if s.http != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(ctx); err != nil {
			serverLog.Errorf("shutdown: %s", err)
		}
	}
	s.pool.Stop()
}
