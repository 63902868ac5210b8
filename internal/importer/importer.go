package importer

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/cleared-dev/continuity/internal/id"
	"github.com/cleared-dev/continuity/internal/model"
)

// ErrBalancesUnsupported is returned by Document.ExtractStatementBalances when the
// source format has no opening or closing balance at all.
var ErrBalancesUnsupported = errors.New("statement format does not expose balances")

// Document is one opened source statement.
type Document interface {
	ExtractTransactions() ([]model.Transaction, error)
	ExtractStatementBalances() (start, end model.Money, err error)
	// ExtractStatementPeriod is best effort; zero times mean unknown.
	ExtractStatementPeriod() (start, end time.Time)
	ExtractAccountHolderName() string
}

// Parser opens documents of one source format.
type Parser interface {
	Format() string
	Extensions() []string // lower-case, with the dot
	Open(r io.Reader) (Document, error)
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// FileInfo describes a candidate statement file in a directory.
type FileInfo struct {
	Name string
	Path string
	Size int64
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	var names []string
	for k := range r.parsers {
		names = append(names, k)
	}
	slices.Sort(names)
	return names
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&ConverterParser{})
	r.Register(&Camt053Parser{})
	r.Register(&ExtractParser{})
	return r
}

// Build turns an opened document into a statement with the given ID.
func Build(stmtID string, doc Document) (model.Statement, error) {
	s := model.Statement{ID: stmtID}

	txns, err := doc.ExtractTransactions()
	if err != nil {
		return model.Statement{}, fmt.Errorf("extracting transactions: %w", err)
	}
	s.Transactions = txns

	start, end, err := doc.ExtractStatementBalances()
	switch {
	case errors.Is(err, ErrBalancesUnsupported):
		s.BalancesUnsupported = true
	case err != nil:
		return model.Statement{}, fmt.Errorf("extracting balances: %w", err)
	default:
		s.StartBalance, s.EndBalance = start, end
	}

	s.PeriodStart, s.PeriodEnd = doc.ExtractStatementPeriod()
	s.AccountHolder = doc.ExtractAccountHolderName()
	return s, nil
}

// Load opens r with p and builds the statement.
func Load(p Parser, stmtID string, r io.Reader) (model.Statement, error) {
	doc, err := p.Open(r)
	if err != nil {
		return model.Statement{}, err
	}
	return Build(stmtID, doc)
}

// LoadFile loads one file; the statement ID is the file's base name.
func LoadFile(p Parser, path string) (model.Statement, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.Statement{}, fmt.Errorf("opening statement: %w", err)
	}
	defer f.Close()

	s, err := Load(p, id.FromPath(path), f)
	if err != nil {
		return model.Statement{}, fmt.Errorf("loading %s: %w", path, err)
	}
	return s, nil
}

// LoadFiles loads every path with the parser for format. Directories are expanded to
// the files in them that carry one of the parser's extensions. The result is ordered
// by statement ID.
func LoadFiles(reg *Registry, format string, paths []string) ([]model.Statement, error) {
	p := reg.Get(format)
	if p == nil {
		return nil, fmt.Errorf("unknown format %q (known: %s)", format, strings.Join(reg.Formats(), ", "))
	}

	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		found, err := Scan(path, p.Extensions()...)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			files = append(files, f.Path)
		}
	}

	stmts := make([]model.Statement, 0, len(files))
	for _, f := range files {
		s, err := LoadFile(p, f)
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, s)
	}
	slices.SortFunc(stmts, func(a, b model.Statement) int { return id.Compare(a.ID, b.ID) })
	return stmts, nil
}

// Scan returns the files in dir whose extension is one of exts (any file when exts is
// empty), ordered by name. A missing directory yields no files.
func Scan(dir string, exts ...string) ([]FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading statement dir: %w", err)
	}

	var files []FileInfo
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if len(exts) > 0 && !slices.Contains(exts, strings.ToLower(filepath.Ext(e.Name()))) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", e.Name(), err)
		}
		files = append(files, FileInfo{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	slices.SortFunc(files, func(a, b FileInfo) int { return id.Compare(a.Name, b.Name) })
	return files, nil
}
