// Package ddl converts a change set into the ordered list of PostgreSQL
// statements that realizes it.
//
// The generator produces a two-part plan: Statements run sequentially inside
// the single migration transaction, while PostCommit holds the concurrent
// index builds, which cannot run inside a transaction block and are executed
// as a separate step after the main transaction commits.
package ddl

type (
	// Statement is one generated DDL statement together with a
	// human-readable description used in logs and error reports.
	Statement struct {
		SQL         string
		Description string
	}

	// Plan is the ordered output of the generator for one migration run.
	Plan struct {
		// Statements execute sequentially inside the migration transaction.
		Statements []Statement

		// PostCommit executes sequentially after the transaction commits;
		// currently only CREATE INDEX CONCURRENTLY builds.
		PostCommit []Statement
	}
)

// Empty reports whether the plan contains no statements at all.
func (p *Plan) Empty() bool {
	return len(p.Statements) == 0 && len(p.PostCommit) == 0
}

// SQL returns the transactional statement texts in order, the form persisted
// to the migration history log.
func (p *Plan) SQL() []string {
	out := make([]string, len(p.Statements))
	for i, s := range p.Statements {
		out[i] = s.SQL
	}
	return out
}

func (p *Plan) add(sql, description string) {
	p.Statements = append(p.Statements, Statement{SQL: sql, Description: description})
}

func (p *Plan) addPostCommit(sql, description string) {
	p.PostCommit = append(p.PostCommit, Statement{SQL: sql, Description: description})
}
