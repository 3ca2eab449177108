package handlers

import (
	"context"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/doug-martin/goqu/v9/exp"
)

// dialect builds the filtered listing queries; everything else is plain SQL.
var dialect = goqu.Dialect("sqlite3")

func (h *Handler) selectDS(ctx context.Context, dest any, ds *goqu.SelectDataset) error {
	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return err
	}
	return h.db.SelectContext(ctx, dest, query, args...)
}

// likeAny matches term anywhere in any of cols.
func likeAny(term string, cols ...string) exp.Expression {
	pattern := "%" + escapeLike(term) + "%"
	ors := make([]exp.Expression, 0, len(cols))
	for _, c := range cols {
		ors = append(ors, goqu.L("? LIKE ? ESCAPE '\\'", goqu.I(c), pattern))
	}
	return goqu.Or(ors...)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
