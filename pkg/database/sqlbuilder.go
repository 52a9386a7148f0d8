package database

import (
	"fmt"
	"strings"

	"github.com/huandu/go-sqlbuilder"
)

// InsertBuilder wraps the Postgres insert builder with upsert support.
type InsertBuilder struct {
	*sqlbuilder.InsertBuilder
}

func NewInsertBuilder() *InsertBuilder {
	return &InsertBuilder{
		sqlbuilder.PostgreSQL.NewInsertBuilder(),
	}
}

// OnConflictUpdate appends an upsert clause. Assignments are raw SQL so
// counter updates can reference both the existing row and EXCLUDED.
func (ib *InsertBuilder) OnConflictUpdate(columns []string, assignments ...string) *InsertBuilder {
	ib.SQL(fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s",
		strings.Join(columns, ", "), strings.Join(assignments, ", ")))
	return ib
}

func (ib *InsertBuilder) OnConflictDoNothing() *InsertBuilder {
	ib.SQL("ON CONFLICT DO NOTHING")
	return ib
}

func (ib *InsertBuilder) Cols(col ...string) *InsertBuilder {
	return &InsertBuilder{ib.InsertBuilder.Cols(col...)}
}

func (ib *InsertBuilder) InsertInto(table string) *InsertBuilder {
	return &InsertBuilder{ib.InsertBuilder.InsertInto(table)}
}

func (ib *InsertBuilder) Values(value ...interface{}) *InsertBuilder {
	return &InsertBuilder{ib.InsertBuilder.Values(value...)}
}
