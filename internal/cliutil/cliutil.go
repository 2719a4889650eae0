// Package cliutil holds the helpers shared by the command line tools:
// opening the planning service from configuration and printing results.
package cliutil

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/martinsuchenak/lifecycled/internal/config"
	"github.com/martinsuchenak/lifecycled/internal/refresh"
	"github.com/martinsuchenak/lifecycled/internal/storage"
	"github.com/paularlott/cli"
	"golang.org/x/term"
)

// defaultWidth is used when stdout is not a terminal
const defaultWidth = 120

// Env is an opened service with its configuration
type Env struct {
	Config  *config.Config
	Service *refresh.Service
	store   *storage.SQLiteStorage
}

// Open loads the configuration from cmd and opens the SQLite store
func Open(cmd *cli.Command) (*Env, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		return nil, err
	}
	store, err := storage.NewSQLiteStorage(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage in %s: %w", cfg.DataDir, err)
	}
	return &Env{Config: cfg, Service: refresh.NewService(store, cfg.ServiceOptions()), store: store}, nil
}

// Close releases the store
func (e *Env) Close() error {
	return e.store.Close()
}

// OpenInput opens path for reading, or stdin when path is "-" or empty
func OpenInput(path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(path)
}

// JSON prints v as indented JSON
func JSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Width returns the terminal width of stdout
func Width() int {
	fd := int(os.Stdout.Fd())
	if !term.IsTerminal(fd) {
		return defaultWidth
	}
	w, _, err := term.GetSize(fd)
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Table is a simple column-aligned text table
type Table struct {
	header []string
	rows   [][]string
}

// NewTable creates a table with the given column headers
func NewTable(header ...string) *Table {
	return &Table{header: header}
}

// Add appends a row. Missing cells are left blank.
func (t *Table) Add(cells ...any) {
	row := make([]string, len(t.header))
	for i := range row {
		if i < len(cells) {
			row[i] = fmt.Sprint(cells[i])
		}
	}
	t.rows = append(t.rows, row)
}

// Len is the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Render writes the table. The last column is truncated to fit width.
func (t *Table) Render(w io.Writer, width int) {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = utf8.RuneCountInString(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			widths[i] = max(widths[i], utf8.RuneCountInString(c))
		}
	}

	last := len(widths) - 1
	used := 0
	for i := 0; i < last; i++ {
		used += widths[i] + 2
	}
	if room := width - used; last >= 0 && room > 3 && widths[last] > room {
		widths[last] = room
	}

	line := func(cells []string) {
		var b strings.Builder
		for i, c := range cells {
			if i == last {
				b.WriteString(truncate(c, widths[i]))
				break
			}
			b.WriteString(c)
			b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(c)+2))
		}
		fmt.Fprintln(w, strings.TrimRight(b.String(), " "))
	}
	line(t.header)
	for _, row := range t.rows {
		line(row)
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
