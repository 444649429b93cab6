// Package ast defines the statement tree the analyzer produces and the
// engine consumes.
package ast

import (
	"github.com/MirseoDB/mirseodb/internal/planner"
	"github.com/MirseoDB/mirseodb/internal/table"
	"github.com/MirseoDB/mirseodb/internal/value"
)

// Statement is any parsed SQL statement.
type Statement interface {
	OperationName() string
	// RequiresTwoFactor reports whether the HTTP collaborator boundary
	// must gate this statement behind a verified 2FA token.
	RequiresTwoFactor() bool
}

type CreateDatabase struct{ DatabaseName string }

func (CreateDatabase) OperationName() string   { return "CREATE DATABASE" }
func (CreateDatabase) RequiresTwoFactor() bool { return false }

type CreateTable struct {
	TableName string
	Columns   []table.ColumnDefinition
}

func (CreateTable) OperationName() string   { return "CREATE TABLE" }
func (CreateTable) RequiresTwoFactor() bool { return false }

type Insert struct {
	TableName string
	Columns   []string // may be empty, meaning "all columns in schema order"
	Values    []value.Value
}

func (Insert) OperationName() string   { return "INSERT" }
func (Insert) RequiresTwoFactor() bool { return false }

type Select struct {
	TableName string
	Columns   []string // ["*"] means every column
	Where     []planner.Predicate
	Limit     *int
	Offset    *int
	Hint      planner.Hint
}

func (Select) OperationName() string   { return "SELECT" }
func (Select) RequiresTwoFactor() bool { return false }

type SetClause struct {
	Column string
	Value  value.Value
}

type Update struct {
	TableName string
	Set       []SetClause
	Where     []planner.Predicate
}

func (Update) OperationName() string { return "UPDATE" }

// RequiresTwoFactor: an UPDATE with no WHERE touches every row and is
// gated the same way as DELETE without WHERE.
func (u Update) RequiresTwoFactor() bool { return len(u.Where) == 0 }

type Delete struct {
	TableName string
	Where     []planner.Predicate
}

func (Delete) OperationName() string { return "DELETE" }

// RequiresTwoFactor: deleting every row is a dangerous operation; the
// boundary demands a verified token, the engine still executes it.
func (d Delete) RequiresTwoFactor() bool { return len(d.Where) == 0 }

type DropTable struct{ TableName string }

func (DropTable) OperationName() string   { return "DROP TABLE" }
func (DropTable) RequiresTwoFactor() bool { return true }

type DropDatabase struct{ DatabaseName string }

func (DropDatabase) OperationName() string   { return "DROP DATABASE" }
func (DropDatabase) RequiresTwoFactor() bool { return true }

// AlterAction is one ALTER TABLE sub-operation.
type AlterAction interface{ alterAction() }

type AddColumn struct{ Column table.ColumnDefinition }
type DropColumn struct{ ColumnName string }
type ModifyColumn struct{ Column table.ColumnDefinition }

func (AddColumn) alterAction()    {}
func (DropColumn) alterAction()   {}
func (ModifyColumn) alterAction() {}

type AlterTable struct {
	TableName string
	Action    AlterAction
}

func (AlterTable) OperationName() string   { return "ALTER TABLE" }
func (AlterTable) RequiresTwoFactor() bool { return true }

type CreateIndex struct {
	Name      string
	TableName string
	Columns   []string
	Unique    bool
}

func (CreateIndex) OperationName() string   { return "CREATE INDEX" }
func (CreateIndex) RequiresTwoFactor() bool { return false }

type DropIndex struct{ Name string }

func (DropIndex) OperationName() string   { return "DROP INDEX" }
func (DropIndex) RequiresTwoFactor() bool { return false }
