package ddl

import (
	"fmt"

	"github.com/tablekeeper/tablekeeper/pkg/differ"
	"github.com/tablekeeper/tablekeeper/pkg/mapper"
	"github.com/tablekeeper/tablekeeper/pkg/model"
	"github.com/tablekeeper/tablekeeper/pkg/utils"
)

// alterColumns emits the column-level alterations of one table in a fixed
// internal order: type changes, then defaults, then option sets, then
// required/unique toggles. Defaults land before required toggles so the
// optional-to-required backfill always sees its default in place; NOT NULL
// is applied strictly after the backfill.
func (g *generator) alterColumns(tc differ.TableChange) error {
	defaultChanged := make(map[int64]struct{})

	for _, fc := range tc.Fields {
		if fc.Kind == differ.FieldTypeChange {
			if err := g.changeColumnType(tc.Table, fc.Old, fc.New); err != nil {
				return err
			}
		}
	}
	for _, fc := range tc.Fields {
		if fc.Kind == differ.FieldDefaultChange {
			if err := g.changeColumnDefault(tc.Table, fc.New); err != nil {
				return err
			}
			defaultChanged[fc.New.StableID] = struct{}{}
		}
	}
	for _, fc := range tc.Fields {
		if fc.Kind == differ.FieldOptionsChange {
			g.changeColumnOptions(tc.Table, fc.Old, fc.New)
		}
	}
	for _, fc := range tc.Fields {
		if fc.Kind == differ.FieldConstraintChange {
			_, hasNewDefault := defaultChanged[fc.New.StableID]
			if err := g.changeColumnConstraints(tc.Table, fc.Old, fc.New, hasNewDefault); err != nil {
				return err
			}
		}
	}
	return nil
}

// changeColumnType emits ALTER COLUMN ... TYPE with the mapper's USING cast
// expression. The old options constraint (if any) is dropped first and the
// new one re-added afterwards, since a retype invalidates the rendered
// allowed-value expression.
func (g *generator) changeColumnType(t model.TableSpec, oldF, newF model.FieldSpec) error {
	cast, err := mapper.CastExpression(newF.Name, oldF.Type, newF.Type)
	if err != nil {
		return err
	}

	if len(oldF.Options) > 0 {
		g.dropConstraint(t, optionsCheckName(t, oldF),
			fmt.Sprintf("Drop options constraint for %q.%q before type change", t.Name, newF.Name))
	}

	stmt := fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s",
		utils.QuoteIdentifier(t.Name), utils.QuoteIdentifier(newF.Name), newF.Type.SQLType())
	if cast != "" {
		stmt += " USING " + cast
	}
	g.plan.add(stmt, fmt.Sprintf("Change type of %q.%q from %s to %s", t.Name, newF.Name, oldF.Type, newF.Type))

	if check := mapper.OptionsCheck(newF); check != "" {
		g.plan.add(
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)",
				utils.QuoteIdentifier(t.Name), utils.QuoteIdentifier(optionsCheckName(t, newF)), check),
			fmt.Sprintf("Add options constraint for %q.%q", t.Name, newF.Name))
	}
	return nil
}

func (g *generator) changeColumnDefault(t model.TableSpec, f model.FieldSpec) error {
	col := utils.QuoteIdentifier(f.Name)
	table := utils.QuoteIdentifier(t.Name)

	if f.Default == nil {
		g.plan.add(
			fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP DEFAULT", table, col),
			fmt.Sprintf("Drop default of %q.%q", t.Name, f.Name))
		return nil
	}

	lit, err := mapper.DefaultLiteral(f)
	if err != nil {
		return err
	}
	g.plan.add(
		fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, col, lit),
		fmt.Sprintf("Set default of %q.%q", t.Name, f.Name))
	return nil
}

// changeColumnOptions rewrites the allowed-value constraint as a drop
// followed by an add. Rows violating the narrowed set are not predicted
// here; the executor surfaces them as a constraint violation at execution
// time and rolls the migration back.
func (g *generator) changeColumnOptions(t model.TableSpec, oldF, newF model.FieldSpec) {
	if len(oldF.Options) > 0 {
		g.dropConstraint(t, optionsCheckName(t, oldF),
			fmt.Sprintf("Drop options constraint for %q.%q", t.Name, newF.Name))
	}
	if check := mapper.OptionsCheck(newF); check != "" {
		g.plan.add(
			fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s)",
				utils.QuoteIdentifier(t.Name), utils.QuoteIdentifier(optionsCheckName(t, newF)), check),
			fmt.Sprintf("Add options constraint for %q.%q", t.Name, newF.Name))
	}
}

// changeColumnConstraints toggles NOT NULL and the single-column unique
// constraint. Optional-to-required with a configured default backfills NULL
// rows with that default before NOT NULL is applied; without a default the
// toggle is attempted directly and existing NULLs surface as a constraint
// violation at execution time.
func (g *generator) changeColumnConstraints(t model.TableSpec, oldF, newF model.FieldSpec, defaultAlreadySet bool) error {
	col := utils.QuoteIdentifier(newF.Name)
	table := utils.QuoteIdentifier(t.Name)

	if oldF.Required != newF.Required {
		if newF.Required {
			if newF.Default != nil {
				lit, err := mapper.DefaultLiteral(newF)
				if err != nil {
					return err
				}
				if !defaultAlreadySet {
					g.plan.add(
						fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET DEFAULT %s", table, col, lit),
						fmt.Sprintf("Set default of %q.%q", t.Name, newF.Name))
				}
				g.plan.add(
					fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s IS NULL", table, col, lit, col),
					fmt.Sprintf("Backfill NULL rows of %q.%q with default", t.Name, newF.Name))
			}
			g.plan.add(
				fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s SET NOT NULL", table, col),
				fmt.Sprintf("Make %q.%q required", t.Name, newF.Name))
		} else {
			g.plan.add(
				fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s DROP NOT NULL", table, col),
				fmt.Sprintf("Make %q.%q optional", t.Name, newF.Name))
		}
	}

	if oldF.Unique != newF.Unique {
		if newF.Unique {
			g.plan.add(
				fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s UNIQUE (%s)",
					table, utils.QuoteIdentifier(fieldUniqueName(t, newF)), col),
				fmt.Sprintf("Add unique constraint for %q.%q", t.Name, newF.Name))
		} else {
			g.dropConstraint(t, fieldUniqueName(t, newF),
				fmt.Sprintf("Drop unique constraint for %q.%q", t.Name, newF.Name))
		}
	}

	return nil
}
