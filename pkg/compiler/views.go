package compiler

import (
	"fmt"
	"strings"

	"github.com/wilhg/metadata/pkg/adapters/warehouse"
	"github.com/wilhg/metadata/pkg/domain"
)

// ImportantAtomics keep their bare names in read views and lead the column list.
var ImportantAtomics = []string{"app_id", "date_", "event_tstamp", "user_id", "event_name"}

func isImportant(name string) bool {
	for _, n := range ImportantAtomics {
		if n == name {
			return true
		}
	}
	return false
}

// Column is one projected view column.
type Column struct {
	Expr  string
	Alias string
}

type aliases map[string]bool

// claim takes the first free candidate, then numbers the last one.
func (a aliases) claim(candidates ...string) string {
	for _, c := range candidates {
		if !a[c] {
			a[c] = true
			return c
		}
	}
	base := candidates[len(candidates)-1]
	for n := 2; ; n++ {
		c := fmt.Sprintf("%s%d", base, n)
		if !a[c] {
			a[c] = true
			return c
		}
	}
}

func atomicAlias(name string) string {
	if strings.HasSuffix(name, "_") {
		return name
	}
	return name + "_"
}

// ViewColumns lists expression/alias pairs of a read view in order:
// important atomics, own parameters, remaining atomics, embedded contexts.
func ViewColumns(params []*domain.SchemaParameter, contexts []*domain.EventContext, atomics []*domain.AtomicParameter) []Column {
	taken := aliases{}
	var cols []Column

	present := map[string]bool{}
	for _, a := range atomics {
		present[a.Name] = true
	}
	for _, name := range ImportantAtomics {
		if present[name] {
			cols = append(cols, Column{quote(name), taken.claim(name, name+"_")})
		}
	}
	for _, p := range params {
		cols = append(cols, Column{ParamsField + "." + quote(p.Name), taken.claim(p.Name, p.Name+"_")})
	}
	for _, a := range atomics {
		if isImportant(a.Name) {
			continue
		}
		alias := atomicAlias(a.Name)
		cols = append(cols, Column{quote(a.Name), taken.claim(alias, alias+"_")})
	}
	for _, c := range contexts {
		if len(c.Schema.Parameters) == 0 {
			continue
		}
		cleaned := c.CleanedName()
		cols = append(cols, Column{quote(c.Schema.Name), taken.claim(cleaned+"_", cleaned+"_context_")})
	}
	return cols
}

// ViewQuery is the select statement of a read view over source.
func ViewQuery(source warehouse.TableRef, params []*domain.SchemaParameter, contexts []*domain.EventContext, atomics []*domain.AtomicParameter) string {
	cols := ViewColumns(params, contexts, atomics)
	lines := make([]string, len(cols))
	for i, c := range cols {
		lines[i] = fmt.Sprintf("  %s AS %s", c.Expr, quote(c.Alias))
	}
	return "SELECT\n" + strings.Join(lines, ",\n") + "\nFROM " + quoteRef(source)
}

func quote(ident string) string { return "`" + ident + "`" }
