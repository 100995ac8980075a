package page

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
)

//go:embed templates/*.html
var templateFS embed.FS

// voteColumns orders the fields a vote usually carries; anything else
// follows alphabetically.
var voteColumns = []string{"id", "user_username", "project_title", "vote_type", "comment", "date"}

type votingView struct {
	Columns []string
	Rows    []map[string]any
	Empty   bool
	Raw     string
}

type errorView struct {
	Status  int
	Message string
}

func parseTemplates() (map[string]*template.Template, error) {
	funcs := template.FuncMap{"cell": formatCell}
	out := make(map[string]*template.Template, 2)
	for _, name := range []string{"voting", "error"} {
		t, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("parse %s template: %w", name, err)
		}
		out[name] = t
	}
	return out, nil
}

// newVotingView shapes the opaque votes value for display. A list of
// objects becomes a table; anything else is shown as indented JSON.
func newVotingView(votes json.RawMessage) votingView {
	var rows []map[string]any
	if err := json.Unmarshal(votes, &rows); err == nil && rows != nil {
		if len(rows) == 0 {
			return votingView{Empty: true}
		}
		return votingView{Columns: columnsOf(rows), Rows: rows}
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, votes, "", "  "); err != nil {
		return votingView{Raw: string(votes)}
	}
	return votingView{Raw: buf.String()}
}

func columnsOf(rows []map[string]any) []string {
	present := make(map[string]bool)
	for _, row := range rows {
		for k := range row {
			present[k] = true
		}
	}

	cols := make([]string, 0, len(present))
	for _, c := range voteColumns {
		if present[c] {
			cols = append(cols, c)
			delete(present, c)
		}
	}

	rest := make([]string, 0, len(present))
	for k := range present {
		rest = append(rest, k)
	}
	sort.Strings(rest)

	return append(cols, rest...)
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
