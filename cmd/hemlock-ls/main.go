package main

import (
	"fmt"
	"sync"

	"hemlockc/hemlock"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	"github.com/tliron/glsp/server"

	_ "github.com/tliron/commonlog/simple"
)

const lsName = "hemlock-ls"

var (
	version string = "0.1.0"
	handler protocol.Handler

	documentsMutex sync.RWMutex
	documents      = make(map[string]string)
)

func main() {
	commonlog.Configure(1, nil)

	handler = protocol.Handler{
		Initialize:             initialize,
		Initialized:            initialized,
		Shutdown:               shutdown,
		SetTrace:               setTrace,
		TextDocumentDidOpen:    textDocumentDidOpen,
		TextDocumentDidChange:  textDocumentDidChange,
		TextDocumentDidClose:   textDocumentDidClose,
		TextDocumentDidSave:    textDocumentDidSave,
		TextDocumentCompletion: textDocumentCompletion,
	}

	s := server.NewServer(&handler, lsName, false)
	s.RunStdio()
}

func initialize(context *glsp.Context, params *protocol.InitializeParams) (interface{}, error) {
	capabilities := handler.CreateServerCapabilities()
	capabilities.CompletionProvider = &protocol.CompletionOptions{
		TriggerCharacters: []string{"."},
	}
	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: &[]bool{true}[0],
		Change:    &syncKind,
		Save:      &protocol.SaveOptions{IncludeText: &[]bool{false}[0]},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lsName,
			Version: &version,
		},
	}, nil
}

func initialized(context *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func shutdown(context *glsp.Context) error {
	return nil
}

func setTrace(context *glsp.Context, params *protocol.SetTraceParams) error {
	protocol.SetTraceValue(params.Value)
	return nil
}

func textDocumentDidOpen(context *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	documentsMutex.Lock()
	defer documentsMutex.Unlock()
	documents[params.TextDocument.URI] = params.TextDocument.Text
	go publishDiagnostics(context, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

func textDocumentDidChange(context *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}

	content := params.ContentChanges[0].(protocol.TextDocumentContentChangeEventWhole).Text

	documentsMutex.Lock()
	documents[params.TextDocument.URI] = content
	documentsMutex.Unlock()

	go publishDiagnostics(context, params.TextDocument.URI, content)
	return nil
}

func textDocumentDidClose(context *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	documentsMutex.Lock()
	defer documentsMutex.Unlock()
	delete(documents, params.TextDocument.URI)
	return nil
}

func textDocumentDidSave(context *glsp.Context, params *protocol.DidSaveTextDocumentParams) error {
	return nil
}

func textDocumentCompletion(context *glsp.Context, params *protocol.CompletionParams) (interface{}, error) {
	documentsMutex.RLock()
	content, ok := documents[params.TextDocument.URI]
	documentsMutex.RUnlock()

	if !ok {
		return protocol.CompletionList{IsIncomplete: false, Items: []protocol.CompletionItem{}}, nil
	}

	items := []protocol.CompletionItem{}
	seen := make(map[string]bool)

	kindFunc := protocol.CompletionItemKindFunction
	detailFunc := "built-in function"
	for _, name := range hemlock.BuiltinNames() {
		if !seen[name] {
			items = append(items, protocol.CompletionItem{
				Label:  name,
				Kind:   &kindFunc,
				Detail: &detailFunc,
			})
			seen[name] = true
		}
	}

	kindKeyword := protocol.CompletionItemKindKeyword
	detailKeyword := "keyword"
	for _, keyword := range hemlock.KeywordConsts {
		if !seen[keyword] {
			items = append(items, protocol.CompletionItem{
				Label:  keyword,
				Kind:   &kindKeyword,
				Detail: &detailKeyword,
			})
			seen[keyword] = true
		}
	}

	l := hemlock.NewLexer(params.TextDocument.URI, content)
	tokens, lexErr := l.Tokenize()
	if lexErr.IsErr() {
		return protocol.CompletionList{IsIncomplete: false, Items: items}, nil
	}

	p := hemlock.NewParser(tokens)
	astResult := p.Parse()
	ast := astResult.Value
	if ast != nil {
		kindVar := protocol.CompletionItemKindVariable
		hemlock.Walk(ast, hemlock.WalkFunc(func(node hemlock.ASTNode) {
			decl, ok := node.(*hemlock.VarDeclareStmt)
			if !ok || seen[decl.Name.Value] {
				return
			}
			beforeCursor := decl.Token.Loc.Line < int(params.Position.Line)+1 ||
				(decl.Token.Loc.Line == int(params.Position.Line)+1 &&
					decl.Name.Loc.ColStart-1 < int(params.Position.Character))
			if !beforeCursor {
				return
			}
			specifier := "let"
			if decl.IsConst {
				specifier = "const"
			}
			items = append(items, protocol.CompletionItem{
				Label: decl.Name.Value,
				Kind:  &kindVar,
				Documentation: protocol.MarkupContent{
					Kind:  protocol.MarkupKindMarkdown,
					Value: fmt.Sprintf("```hemlock\n%s %s\n```", specifier, decl.Name.Value),
				},
			})
			seen[decl.Name.Value] = true
		}))
	}

	return protocol.CompletionList{
		IsIncomplete: false,
		Items:        items,
	}, nil
}

func publishDiagnostics(context *glsp.Context, uri string, content string) {
	diagnostics := []protocol.Diagnostic{}
	severity := protocol.DiagnosticSeverityError

	l := hemlock.NewLexer(uri, content)
	tokens, lexErr := l.Tokenize()

	if lexErr.IsErr() {
		err := lexErr.Err
		source := "hemlock-ls (lexer)"
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    lspRangeFromLoc(err.GetLocation()),
			Severity: &severity,
			Source:   &source,
			Message:  err.Error(),
		})
	}

	if len(tokens) > 0 && len(diagnostics) == 0 {
		p := hemlock.NewParser(tokens)
		parseResult := p.Parse()
		if parseResult.IsErr() {
			err := parseResult.Err
			source := "hemlock-ls (parser)"
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range:    lspRangeFromLoc(err.GetLocation()),
				Severity: &severity,
				Source:   &source,
				Message:  err.Error(),
			})
		}
	}

	context.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func lspRangeFromLoc(loc hemlock.Loc) protocol.Range {
	startChar := loc.ColStart - 1
	if startChar < 0 {
		startChar = 0
	}
	endChar := startChar + 1
	if loc.ColEnd != nil {
		endChar = *loc.ColEnd
	}

	return protocol.Range{
		Start: protocol.Position{Line: protocol.UInteger(loc.Line - 1), Character: protocol.UInteger(startChar)},
		End:   protocol.Position{Line: protocol.UInteger(loc.Line - 1), Character: protocol.UInteger(endChar)},
	}
}
