package ddl

import (
	"fmt"
	"strings"

	"github.com/tablekeeper/tablekeeper/pkg/differ"
	"github.com/tablekeeper/tablekeeper/pkg/mapper"
	"github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/tablekeeper/tablekeeper/pkg/utils"
)

// Generate converts a change set into an ordered statement plan.
//
// Statement ordering follows fixed phases so that drops precede incompatible
// alters and renames precede anything referring to the new names:
//
//  1. view drops (including the drop half of replaces)
//  2. table renames, view renames, column renames
//  3. table creates
//  4. column adds
//  5. column alterations: type changes, defaults, option sets, then
//     required/unique toggles (backfill before NOT NULL)
//  6. unique-constraint and index drops
//  7. column drops (cascading their dependents first) and table drops
//  8. unique-constraint adds and transactional index creates
//  9. view creates and materialized view refreshes
//
// Concurrent index builds are routed to the post-commit part of the plan.
// Any mapping failure (unknown cast, un-renderable default) aborts
// generation with a *model.ValidationError before anything executes.
func Generate(cs *differ.ChangeSet) (*Plan, error) {
	g := &generator{
		plan:         &Plan{},
		droppedIdx:   make(map[string]struct{}),
		droppedConst: make(map[string]struct{}),
	}

	if err := g.run(cs); err != nil {
		return nil, err
	}
	return g.plan, nil
}

type generator struct {
	plan *Plan

	// droppedIdx and droppedConst record names already dropped in this plan
	// so cascade drops and explicit drops never duplicate.
	droppedIdx   map[string]struct{}
	droppedConst map[string]struct{}
}

func (g *generator) run(cs *differ.ChangeSet) error {
	// Phase 1: drop views that are going away or being replaced, so no view
	// depends on a table or column mid-change.
	for _, vc := range cs.Views {
		if vc.Kind == differ.ViewDrop || vc.Kind == differ.ViewReplace {
			g.dropView(vc.Old)
		}
	}

	// Phase 2: renames. Emitted as single RENAME statements, never
	// drop-then-recreate, so dependents survive.
	for _, tc := range cs.Tables {
		if tc.Kind == differ.TableRename {
			g.plan.add(
				fmt.Sprintf("ALTER TABLE %s RENAME TO %s",
					utils.QuoteIdentifier(tc.OldName), utils.QuoteIdentifier(tc.Table.Name)),
				fmt.Sprintf("Rename table %q to %q", tc.OldName, tc.Table.Name))
		}
	}
	for _, vc := range cs.Views {
		if vc.Kind == differ.ViewRename {
			g.plan.add(
				fmt.Sprintf("ALTER %s %s RENAME TO %s",
					viewKeyword(vc.View), utils.QuoteIdentifier(vc.OldName), utils.QuoteIdentifier(vc.View.Name)),
				fmt.Sprintf("Rename view %q to %q", vc.OldName, vc.View.Name))
		}
	}
	for _, tc := range cs.Tables {
		if tc.Kind != differ.TableAlter {
			continue
		}
		for _, fc := range tc.Fields {
			if fc.Kind == differ.FieldRename {
				g.plan.add(
					fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s",
						utils.QuoteIdentifier(tc.Table.Name),
						utils.QuoteIdentifier(fc.Old.Name), utils.QuoteIdentifier(fc.New.Name)),
					fmt.Sprintf("Rename column %q to %q on %q", fc.Old.Name, fc.New.Name, tc.Table.Name))
			}
		}
	}

	// Phase 3: new tables.
	for _, tc := range cs.Tables {
		if tc.Kind == differ.TableCreate {
			if err := g.createTable(tc.Table); err != nil {
				return err
			}
		}
	}

	// Phase 4: new columns on existing tables.
	for _, tc := range cs.Tables {
		if tc.Kind != differ.TableAlter {
			continue
		}
		for _, fc := range tc.Fields {
			if fc.Kind == differ.FieldAdd {
				if err := g.addColumn(tc.Table, fc.New); err != nil {
					return err
				}
			}
		}
	}

	// Phase 5: column alterations.
	for _, tc := range cs.Tables {
		if tc.Kind != differ.TableAlter {
			continue
		}
		if err := g.alterColumns(tc); err != nil {
			return err
		}
	}

	// Phase 6: constraint and index drops.
	for _, tc := range cs.Tables {
		if tc.Kind != differ.TableAlter {
			continue
		}
		for _, uc := range tc.Uniques {
			if uc.Kind == differ.UniqueDrop {
				g.dropConstraint(tc.Table, tableUniqueName(tc.Table, uc.FieldIDs),
					fmt.Sprintf("Drop unique constraint on %q", tc.Table.Name))
			}
		}
		for _, ic := range tc.Indexes {
			if ic.Kind == differ.IndexDrop {
				g.dropIndex(indexName(tc.Table, ic.Index), tc.Table.Name)
			}
		}
	}

	// Phase 7: column drops (dependents first), then table drops.
	for _, tc := range cs.Tables {
		if tc.Kind != differ.TableAlter {
			continue
		}
		for _, fc := range tc.Fields {
			if fc.Kind == differ.FieldRemove {
				g.dropColumn(tc, fc.Old)
			}
		}
	}
	for _, tc := range cs.Tables {
		if tc.Kind == differ.TableDrop {
			g.plan.add(
				fmt.Sprintf("DROP TABLE IF EXISTS %s", utils.QuoteIdentifier(tc.Old.Name)),
				fmt.Sprintf("Drop table %q", tc.Old.Name))
		}
	}

	// Phase 8: constraint and index adds.
	for _, tc := range cs.Tables {
		switch tc.Kind {
		case differ.TableCreate:
			for _, idx := range tc.Table.Indexes {
				if err := g.createIndex(tc.Table, idx); err != nil {
					return err
				}
			}
		case differ.TableAlter:
			for _, uc := range tc.Uniques {
				if uc.Kind == differ.UniqueAdd {
					if err := g.addTableUnique(tc.Table, uc.FieldIDs); err != nil {
						return err
					}
				}
			}
			for _, ic := range tc.Indexes {
				if ic.Kind == differ.IndexCreate {
					if err := g.createIndex(tc.Table, ic.Index); err != nil {
						return err
					}
				}
			}
		}
	}

	// Phase 9: view creates and refreshes.
	for _, vc := range cs.Views {
		if vc.Kind == differ.ViewCreate || vc.Kind == differ.ViewReplace {
			g.createView(vc.View)
		}
	}
	for _, vc := range cs.Views {
		if vc.Kind == differ.ViewRefresh {
			g.plan.add(
				fmt.Sprintf("REFRESH MATERIALIZED VIEW %s", utils.QuoteIdentifier(vc.View.Name)),
				fmt.Sprintf("Refresh materialized view %q", vc.View.Name))
		}
	}

	return nil
}

func (g *generator) createTable(t model.TableSpec) error {
	var clauses []string

	for _, f := range t.StoredFields() {
		def, err := mapper.Map(f)
		if err != nil {
			return err
		}
		clauses = append(clauses, "    "+def.Clause())
	}

	// Named constraints so later drops and option rewrites can address them.
	for _, f := range t.StoredFields() {
		if f.Unique {
			clauses = append(clauses, fmt.Sprintf("    CONSTRAINT %s UNIQUE (%s)",
				utils.QuoteIdentifier(fieldUniqueName(t, f)), utils.QuoteIdentifier(f.Name)))
		}
		if check := mapper.OptionsCheck(f); check != "" {
			clauses = append(clauses, fmt.Sprintf("    CONSTRAINT %s CHECK (%s)",
				utils.QuoteIdentifier(optionsCheckName(t, f)), check))
		}
	}
	for _, uc := range t.UniqueConstraints {
		names, err := fieldNames(t, uc)
		if err != nil {
			return err
		}
		clauses = append(clauses, fmt.Sprintf("    CONSTRAINT %s UNIQUE (%s)",
			utils.QuoteIdentifier(tableUniqueName(t, uc)), utils.QuoteIdentifiers(names)))
	}

	g.plan.add(
		fmt.Sprintf("CREATE TABLE %s (\n%s\n)", utils.QuoteIdentifier(t.Name), strings.Join(clauses, ",\n")),
		fmt.Sprintf("Create table %q", t.Name))
	return nil
}

func (g *generator) addColumn(t model.TableSpec, f model.FieldSpec) error {
	def, err := mapper.Map(f)
	if err != nil {
		return err
	}

	g.plan.add(
		fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", utils.QuoteIdentifier(t.Name), def.Clause()),
		fmt.Sprintf("Add column %q to %q", f.Name, t.Name))

	if f.Unique {
		g.plan.add(
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
				utils.QuoteIdentifier(t.Name), utils.QuoteIdentifier(fieldUniqueName(t, f)), utils.QuoteIdentifier(f.Name)),
			fmt.Sprintf("Add unique constraint for %q.%q", t.Name, f.Name))
	}
	if check := mapper.OptionsCheck(f); check != "" {
		g.plan.add(
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)",
				utils.QuoteIdentifier(t.Name), utils.QuoteIdentifier(optionsCheckName(t, f)), check),
			fmt.Sprintf("Add options constraint for %q.%q", t.Name, f.Name))
	}
	return nil
}

func (g *generator) dropColumn(tc differ.TableChange, f model.FieldSpec) {
	t := tc.Table

	// Cascade-drop dependents before the column itself.
	for _, idx := range tc.Old.Indexes {
		if containsID(idx.FieldIDs, f.StableID) {
			g.dropIndex(indexName(t, idx), t.Name)
		}
	}
	for _, uc := range tc.Old.UniqueConstraints {
		if containsID(uc, f.StableID) {
			g.dropConstraint(t, tableUniqueName(t, uc),
				fmt.Sprintf("Drop unique constraint depending on %q.%q", t.Name, f.Name))
		}
	}
	if f.Unique {
		g.dropConstraint(t, fieldUniqueName(t, f),
			fmt.Sprintf("Drop unique constraint for %q.%q", t.Name, f.Name))
	}
	if len(f.Options) > 0 {
		g.dropConstraint(t, optionsCheckName(t, f),
			fmt.Sprintf("Drop options constraint for %q.%q", t.Name, f.Name))
	}

	g.plan.add(
		fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s", utils.QuoteIdentifier(t.Name), utils.QuoteIdentifier(f.Name)),
		fmt.Sprintf("Drop column %q from %q", f.Name, t.Name))
}

func (g *generator) addTableUnique(t model.TableSpec, fieldIDs []int64) error {
	names, err := fieldNames(t, fieldIDs)
	if err != nil {
		return err
	}
	g.plan.add(
		fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
			utils.QuoteIdentifier(t.Name), utils.QuoteIdentifier(tableUniqueName(t, fieldIDs)), utils.QuoteIdentifiers(names)),
		fmt.Sprintf("Add unique constraint on %q", t.Name))
	return nil
}

func (g *generator) createIndex(t model.TableSpec, idx model.IndexSpec) error {
	names, err := fieldNames(t, idx.FieldIDs)
	if err != nil {
		return err
	}

	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	name := indexName(t, idx)

	if idx.Concurrent {
		// Concurrent builds cannot run inside a transaction block; they are
		// scheduled after the main transaction commits.
		g.plan.addPostCommit(
			fmt.Sprintf("CREATE %sINDEX CONCURRENTLY IF NOT EXISTS %s ON %s (%s)",
				unique, utils.QuoteIdentifier(name), utils.QuoteIdentifier(t.Name), utils.QuoteIdentifiers(names)),
			fmt.Sprintf("Build index %q on %q concurrently", name, t.Name))
		return nil
	}

	g.plan.add(
		fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
			unique, utils.QuoteIdentifier(name), utils.QuoteIdentifier(t.Name), utils.QuoteIdentifiers(names)),
		fmt.Sprintf("Create index %q on %q", name, t.Name))
	return nil
}

func (g *generator) dropIndex(name, tableName string) {
	if _, done := g.droppedIdx[name]; done {
		return
	}
	g.droppedIdx[name] = struct{}{}
	g.plan.add(
		fmt.Sprintf("DROP INDEX IF EXISTS %s", utils.QuoteIdentifier(name)),
		fmt.Sprintf("Drop index %q on %q", name, tableName))
}

func (g *generator) dropConstraint(t model.TableSpec, name, description string) {
	if _, done := g.droppedConst[name]; done {
		return
	}
	g.droppedConst[name] = struct{}{}
	g.plan.add(
		fmt.Sprintf("ALTER TABLE %s DROP CONSTRAINT IF EXISTS %s",
			utils.QuoteIdentifier(t.Name), utils.QuoteIdentifier(name)),
		description)
}

func (g *generator) createView(v model.ViewSpec) {
	g.plan.add(
		fmt.Sprintf("CREATE %s %s AS %s", viewKeyword(v), utils.QuoteIdentifier(v.Name), v.Definition),
		fmt.Sprintf("Create view %q", v.Name))
}

func (g *generator) dropView(v model.ViewSpec) {
	g.plan.add(
		fmt.Sprintf("DROP %s IF EXISTS %s", viewKeyword(v), utils.QuoteIdentifier(v.Name)),
		fmt.Sprintf("Drop view %q", v.Name))
}

func viewKeyword(v model.ViewSpec) string {
	if v.Materialized {
		return "MATERIALIZED VIEW"
	}
	return "VIEW"
}

func fieldNames(t model.TableSpec, ids []int64) ([]string, error) {
	names := make([]string, len(ids))
	for i, id := range ids {
		f, ok := t.Field(id)
		if !ok {
			return nil, model.Validationf("table %q references unknown field stableId %d", t.Name, id)
		}
		names[i] = f.Name
	}
	return names, nil
}

func containsID(ids []int64, id int64) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
