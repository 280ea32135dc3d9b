package server

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/sadraskol/mia/compiler"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "mia-lsp"

var lspLog = commonlog.GetLogger("mia.lsp")

// LspServer provides diagnostics, hover, completion and navigation for mia
// documents. Every change rebuilds the whole document.
type LspServer struct {
	entry string

	mu   sync.Mutex
	docs map[string]*document // URI → last analysis

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server. entry is the entry binding exempt from
// unused warnings.
func NewLSP(entry string) *LspServer {
	if entry == "" {
		entry = compiler.DefaultEntry
	}
	s := &LspServer{
		entry:   entry,
		docs:    make(map[string]*document),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	lspLog.Info("mia LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	doc := s.update(params.TextDocument.URI, params.TextDocument.Text)
	s.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) == 0 {
		return nil
	}
	last := params.ContentChanges[len(params.ContentChanges)-1]
	if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
		doc := s.update(params.TextDocument.URI, whole.Text)
		s.publishDiagnostics(ctx, params.TextDocument.URI, doc)
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) update(uri protocol.DocumentUri, text string) *document {
	doc := analyzeDocument(uriPath(uri), text, s.entry)
	s.mu.Lock()
	s.docs[string(uri)] = doc
	s.mu.Unlock()
	return doc
}

func (s *LspServer) document(uri protocol.DocumentUri) *document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.docs[string(uri)]
}

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, doc *document) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: doc.diagnostics(),
	})
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	prefix := extractPrefix(doc.text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return doc.complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.hover(params.Position), nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	loc, ok := doc.definition(params.TextDocument.URI, params.Position)
	if !ok {
		return nil, nil
	}
	return loc, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	doc := s.document(params.TextDocument.URI)
	if doc == nil {
		return nil, nil
	}
	return doc.references(params.TextDocument.URI, params.Position, params.Context.IncludeDeclaration), nil
}

// ---------------------------------------------------------------------------
// Document analysis
// ---------------------------------------------------------------------------

// document is the outcome of building one version of a file. The
// resolution is kept even when the build failed part way.
type document struct {
	text     string
	result   *compiler.Result
	err      error
	warnings []compiler.Warning
}

func analyzeDocument(file, text, entry string) *document {
	opts := compiler.Options{Entry: entry}
	result, err := compiler.Build(file, text, opts)
	doc := &document{text: text, result: result, err: err}
	if err == nil {
		doc.warnings = compiler.Analyze(result.Program, result.Resolution, opts)
	}
	lspLog.Debugf("analyzed %s: err=%v, %d warnings", file, err, len(doc.warnings))
	return doc
}

func (d *document) resolution() *compiler.Resolution {
	if d.result == nil {
		return nil
	}
	return d.result.Resolution
}

func (d *document) diagnostics() []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}
	source := lspName

	if d.err != nil {
		severity := protocol.DiagnosticSeverityError
		msg := d.err.Error()
		var pos compiler.Position
		var te *compiler.TypeError
		if errors.As(d.err, &te) {
			msg = te.Msg
			pos = te.Pos
		}
		code := protocol.IntegerOrString{Value: protocol.Integer(compiler.ExitCode(d.err))}
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    d.wordRange(pos),
			Severity: &severity,
			Code:     &code,
			Source:   &source,
			Message:  msg,
		})
	}

	for _, w := range d.warnings {
		severity := protocol.DiagnosticSeverityWarning
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    d.wordRange(w.Pos),
			Severity: &severity,
			Source:   &source,
			Message:  w.Msg,
		})
	}
	return diagnostics
}

// wordRange spans the identifier or token starting at pos, or a single
// character when there is none. An unknown position maps to the file start.
func (d *document) wordRange(pos compiler.Position) protocol.Range {
	if pos.Line == 0 {
		return protocol.Range{}
	}
	start := protocol.Position{Line: protocol.UInteger(pos.Line - 1), Character: protocol.UInteger(pos.Column - 1)}
	end := start
	for off := pos.Offset; off < len(d.text) && isIdentChar(rune(d.text[off])); off++ {
		end.Character++
	}
	if end == start {
		end.Character++
	}
	return protocol.Range{Start: start, End: end}
}

func (d *document) hover(pos protocol.Position) *protocol.Hover {
	res := d.resolution()
	if res == nil {
		return nil
	}
	offset, ok := offsetAt(d.text, pos)
	if !ok {
		return nil
	}

	var label string
	if sym := declarationAt(res, offset); sym != nil {
		label = fmt.Sprintf("%s %s: %s", sym.Kind, sym.Name, sym.Type)
	} else if expr, t, ok := res.TypeAt(offset); ok {
		if v, isVar := expr.(*compiler.Variable); isVar {
			if ref, found := res.Refs[v]; found {
				label = fmt.Sprintf("%s %s: %s", ref.Symbol.Kind, v.Name, t)
			}
		}
		if label == "" {
			label = t.String()
		}
	} else {
		return nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: "```mia\n" + label + "\n```",
		},
	}
}

// symbolAt returns the symbol declared or referenced at offset.
func (d *document) symbolAt(offset int) *compiler.Symbol {
	res := d.resolution()
	if res == nil {
		return nil
	}
	if sym := declarationAt(res, offset); sym != nil {
		return sym
	}
	if expr, _, ok := res.TypeAt(offset); ok {
		if v, isVar := expr.(*compiler.Variable); isVar {
			if ref, found := res.Refs[v]; found {
				return ref.Symbol
			}
		}
	}
	return nil
}

func (d *document) definition(uri protocol.DocumentUri, pos protocol.Position) (protocol.Location, bool) {
	offset, ok := offsetAt(d.text, pos)
	if !ok {
		return protocol.Location{}, false
	}
	sym := d.symbolAt(offset)
	if sym == nil {
		return protocol.Location{}, false
	}
	return protocol.Location{URI: uri, Range: d.wordRange(sym.Pos)}, true
}

func (d *document) references(uri protocol.DocumentUri, pos protocol.Position, includeDecl bool) []protocol.Location {
	offset, ok := offsetAt(d.text, pos)
	if !ok {
		return nil
	}
	sym := d.symbolAt(offset)
	if sym == nil {
		return nil
	}

	var positions []compiler.Position
	if includeDecl {
		positions = append(positions, sym.Pos)
	}
	for v, ref := range d.resolution().Refs {
		if ref.Symbol == sym {
			positions = append(positions, v.SpanVal.Start)
		}
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Offset < positions[j].Offset })

	locations := make([]protocol.Location, len(positions))
	for i, p := range positions {
		locations[i] = protocol.Location{URI: uri, Range: d.wordRange(p)}
	}
	return locations
}

func (d *document) complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	seen := make(map[string]bool)

	if res := d.resolution(); res != nil {
		for i := len(res.Symbols) - 1; i >= 0; i-- {
			sym := res.Symbols[i]
			if seen[sym.Name] || !strings.HasPrefix(sym.Name, prefix) {
				continue
			}
			seen[sym.Name] = true
			kind := protocol.CompletionItemKindVariable
			switch sym.Kind {
			case compiler.SymFunction:
				kind = protocol.CompletionItemKindFunction
			case compiler.SymStruct:
				kind = protocol.CompletionItemKindStruct
			}
			detail := sym.Type.String()
			items = append(items, protocol.CompletionItem{
				Label:  sym.Name,
				Kind:   &kind,
				Detail: &detail,
			})
		}
	}

	for _, kw := range compiler.Keywords() {
		if seen[kw] || !strings.HasPrefix(kw, prefix) {
			continue
		}
		kind := protocol.CompletionItemKindKeyword
		items = append(items, protocol.CompletionItem{Label: kw, Kind: &kind})
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Label < items[j].Label })
	return items
}

// declarationAt returns the symbol whose name is declared at offset.
func declarationAt(res *compiler.Resolution, offset int) *compiler.Symbol {
	for _, sym := range res.Symbols {
		if sym.Pos.Line == 0 {
			continue
		}
		if offset >= sym.Pos.Offset && offset < sym.Pos.Offset+len(sym.Name) {
			return sym
		}
	}
	return nil
}

// --- Text extraction helpers ---

// offsetAt converts an LSP position to a byte offset in text.
func offsetAt(text string, pos protocol.Position) (int, bool) {
	line := 0
	start := 0
	for line < int(pos.Line) {
		i := strings.IndexByte(text[start:], '\n')
		if i < 0 {
			return 0, false
		}
		start += i + 1
		line++
	}
	end := strings.IndexByte(text[start:], '\n')
	if end < 0 {
		end = len(text) - start
	}
	col := int(pos.Character)
	if col > end {
		col = end
	}
	return start + col, true
}

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the identifier
	start := col
	for start > 0 && isIdentChar(rune(line[start-1])) {
		start--
	}

	return line[start:col]
}

func isIdentChar(ch rune) bool {
	return unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_'
}

// uriPath turns a file URI into the path used in diagnostics.
func uriPath(uri protocol.DocumentUri) string {
	return strings.TrimPrefix(string(uri), "file://")
}

func boolPtr(b bool) *bool {
	return &b
}
