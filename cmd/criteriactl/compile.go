package main

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"metaquery/internal/domain"
	"metaquery/internal/domain/criteria"
	"metaquery/internal/domain/query"
	"metaquery/internal/infrastructure/celeval"
	"metaquery/internal/infrastructure/storage/sqlrender"
	"metaquery/internal/metadata"
)

func newCompileCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "compile [query]",
		Short:   "Print the predicate a criteria query string compiles to",
		Example: `  criteriactl compile -e category 'sortOrder.greaterThan=1&productId.in=1,2'`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			def, c, err := opts.parse(args)
			if err != nil {
				return err
			}
			q, err := query.Compile(def, c, opts.compileOptions()...)
			if err != nil {
				return err
			}
			prg, err := celeval.New().Program(q)
			if err != nil {
				return err
			}

			relations := make([]string, 0)
			for _, rel := range q.Relations() {
				relations = append(relations, fmt.Sprintf("%s (%s)", rel.Name, rel.Cardinality))
			}

			w := cmd.OutOrStdout()
			printField(w, "entity", def.Name)
			printField(w, "criteria", c.String())
			printField(w, "where", q.Where.String())
			printField(w, "distinct", fmt.Sprint(q.NeedsDistinct()))
			printField(w, "relations", strings.Join(relations, ", "))
			printField(w, "fingerprint", q.Fingerprint())
			printField(w, "cel", prg.Source)
			return nil
		},
	}
}

func newSQLCmd(opts *options) *cobra.Command {
	var dialectName string
	cmd := &cobra.Command{
		Use:     "sql [query]",
		Short:   "Print the SELECT and COUNT statements of a criteria query string",
		Example: `  criteriactl sql --dialect mysql -e product 'title.contains=Phone&sort=rating,desc&size=5'`,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dialect, err := sqlrender.DialectByName(dialectName)
			if err != nil {
				return err
			}
			def, c, err := opts.parse(args)
			if err != nil {
				return err
			}
			page, err := domain.ParsePageRequest(def, opts.params(args))
			if err != nil {
				return err
			}
			q, err := query.Compile(def, c, opts.compileOptions()...)
			if err != nil {
				return err
			}

			r := sqlrender.New(dialect)
			sel, err := r.Select(q, nil, &page)
			if err != nil {
				return err
			}
			count, err := r.Count(q)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			for _, b := range []interface {
				ToSql() (string, []any, error)
			}{sel, count} {
				stmt, stmtArgs, err := b.ToSql()
				if err != nil {
					return err
				}
				fmt.Fprintln(w, stmt)
				if len(stmtArgs) > 0 {
					fmt.Fprintf(w, "  args: %v\n", stmtArgs)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dialectName, "dialect", "postgres", "SQL dialect: postgres, sqlite or mysql")
	return cmd
}

func (o *options) params(args []string) url.Values {
	if len(args) == 0 {
		return url.Values{}
	}
	values, _ := url.ParseQuery(strings.TrimPrefix(args[0], "?"))
	return values
}

func (o *options) parse(args []string) (metadata.EntityDef, *criteria.Criteria, error) {
	def, err := o.entityDef()
	if err != nil {
		return metadata.EntityDef{}, nil, err
	}
	if len(args) > 0 {
		if _, err := url.ParseQuery(strings.TrimPrefix(args[0], "?")); err != nil {
			return metadata.EntityDef{}, nil, fmt.Errorf("invalid query string: %w", err)
		}
	}
	c, err := criteria.Parse(def, o.params(args))
	if err != nil {
		return metadata.EntityDef{}, nil, err
	}
	return def, c, nil
}

func (o *options) compileOptions() []query.Option {
	if o.foldCase {
		return []query.Option{query.WithFoldCase()}
	}
	return nil
}

func printField(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%-12s %s\n", name+":", value)
}
