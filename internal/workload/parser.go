package workload

import (
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/kdice/kdice/internal/errors"
	"github.com/kdice/kdice/pkg/log"
	"github.com/mattn/go-isatty"
)

const diagnosticsWidth = 100

// Parser wraps the HCL parser to handle diagnostics from one place.
type Parser struct {
	*hclparse.Parser
	logger      log.Logger
	diagsWriter io.Writer
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger of the parser.
func WithLogger(l log.Logger) Option {
	return func(parser *Parser) {
		parser.logger = l
	}
}

// WithDiagnosticsWriter prints the source snippets of HCL diagnostics to w.
func WithDiagnosticsWriter(w io.Writer) Option {
	return func(parser *Parser) {
		parser.diagsWriter = w
	}
}

func NewParser(opts ...Option) *Parser {
	parser := &Parser{
		Parser: hclparse.NewParser(),
		logger: log.Default(),
	}

	for _, opt := range opts {
		opt(parser)
	}

	return parser
}

// ParseFromFile parses an HCL or, with a .json extension, a JSON descriptor.
func (parser *Parser) ParseFromFile(path string) (*hcl.File, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New(err)
	}

	return parser.ParseFromBytes(content, path)
}

func (parser *Parser) ParseFromBytes(content []byte, path string) (file *hcl.File, err error) {
	// cty conversions panic on some malformed input.
	defer func() {
		if recovered := recover(); recovered != nil {
			err = errors.New(PanicWhileParsingError{RecoveredValue: recovered, File: path})
		}
	}()

	var diags hcl.Diagnostics

	switch filepath.Ext(path) {
	case ".json":
		file, diags = parser.ParseJSON(content, path)
	default:
		file, diags = parser.ParseHCL(content, path)
	}

	if err := parser.handleDiagnostics(diags); err != nil {
		return nil, err
	}

	return file, nil
}

// handleDiagnostics returns diags as an error when it holds errors. Warnings are logged.
func (parser *Parser) handleDiagnostics(diags hcl.Diagnostics) error {
	if len(diags) == 0 {
		return nil
	}

	if parser.diagsWriter != nil {
		color := false
		if f, ok := parser.diagsWriter.(*os.File); ok {
			color = isatty.IsTerminal(f.Fd())
		}

		writer := hcl.NewDiagnosticTextWriter(parser.diagsWriter, parser.Files(), diagnosticsWidth, color)
		if err := writer.WriteDiagnostics(diags); err != nil {
			return errors.New(err)
		}
	}

	if !diags.HasErrors() {
		for _, diag := range diags {
			parser.logger.Warnf("%s", diag)
		}

		return nil
	}

	return errors.New(diags)
}
