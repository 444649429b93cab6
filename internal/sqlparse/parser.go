package sqlparse

import (
	"strconv"

	"github.com/MirseoDB/mirseodb/internal/ast"
	"github.com/MirseoDB/mirseodb/internal/dberr"
	"github.com/MirseoDB/mirseodb/internal/logging"
	"github.com/MirseoDB/mirseodb/internal/planner"
	"github.com/MirseoDB/mirseodb/internal/table"
	"github.com/MirseoDB/mirseodb/internal/value"
)

var log = logging.GetLogger("analyzer")

// Analyzer ties dialect detection to statement dispatch. A single
// Analyzer is safe for concurrent use: its cache guards its own lock,
// independent of any caller's engine lock.
type Analyzer struct {
	cache *DialectCache
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{cache: NewDialectCache(DefaultCacheCapacity)}
}

// DetectDialect returns the (cached) dialect result for sql, for telemetry
// callers (the HTTP collaborator may want to report it); Parse itself
// never branches on the result; the dialect is a hint, never semantics.
func (a *Analyzer) DetectDialect(sql string) DialectResult {
	return a.cache.Detect(sql)
}

// Parse tokenizes sql, runs it through the (cache-backed, but
// semantics-neutral) dialect detector for telemetry, and dispatches to a
// statement-specific parser by the first (and where needed second) token.
func (a *Analyzer) Parse(sql string) (ast.Statement, error) {
	a.cache.Detect(sql) // warms/consults the cache; result is telemetry only
	stmt, err := Parse(sql)
	if err != nil {
		log.Warn("parse failed", "error", err)
	}
	return stmt, err
}

// Parse is the stateless entry point (no cache) for callers that do not
// need dialect telemetry.
func Parse(sql string) (ast.Statement, error) {
	toks := Tokenize(sql)
	toks = stripTrailingSemicolon(toks)
	if len(toks) == 0 {
		return nil, dberr.New(dberr.ParseError, "empty statement")
	}
	p := &parser{toks: toks}

	var stmt ast.Statement
	var err error
	switch p.peekText() {
	case "CREATE":
		stmt, err = p.parseCreate()
	case "DROP":
		stmt, err = p.parseDrop()
	case "ALTER":
		stmt, err = p.parseAlter()
	case "INSERT":
		stmt, err = p.parseInsert()
	case "SELECT":
		stmt, err = p.parseSelect()
	case "UPDATE":
		stmt, err = p.parseUpdate()
	case "DELETE":
		stmt, err = p.parseDelete()
	default:
		return nil, dberr.New(dberr.ParseError, "unknown statement kind %q", p.peekText())
	}
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, dberr.New(dberr.ParseError, "unexpected trailing input starting at %q", p.peek().Raw)
	}
	return stmt, nil
}

func stripTrailingSemicolon(toks []Token) []Token {
	if n := len(toks); n > 0 && toks[n-1].Text == ";" {
		return toks[:n-1]
	}
	return toks
}

type parser struct {
	toks []Token
	pos  int
}

func (p *parser) eof() bool { return p.pos >= len(p.toks) }

func (p *parser) peek() Token {
	if p.eof() {
		return Token{}
	}
	return p.toks[p.pos]
}

func (p *parser) peekText() string { return p.peek().Text }

func (p *parser) next() Token {
	t := p.peek()
	p.pos++
	return t
}

func (p *parser) expectText(text string) error {
	if p.eof() || p.peekText() != text {
		return dberr.New(dberr.ParseError, "expected %q at position %d, got %q", text, p.pos, p.peekText())
	}
	p.pos++
	return nil
}

func (p *parser) expectIdent() (Token, error) {
	if p.eof() {
		return Token{}, dberr.New(dberr.ParseError, "expected identifier, got end of statement")
	}
	t := p.next()
	if t.Text == "(" || t.Text == ")" || t.Text == "," {
		return Token{}, dberr.New(dberr.ParseError, "expected identifier, got %q", t.Raw)
	}
	return t, nil
}

// identName returns the lookup name for an identifier token: original
// case if quoted, uppercased Text otherwise (already uppercased by the
// tokenizer for bare words).
func identName(t Token) string {
	if t.IsQuoted {
		return t.Raw
	}
	return t.Text
}

// ---- CREATE ----

func (p *parser) parseCreate() (ast.Statement, error) {
	p.next() // CREATE
	switch p.peekText() {
	case "DATABASE":
		p.next()
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.CreateDatabase{DatabaseName: identName(name)}, nil
	case "TABLE":
		p.next()
		return p.parseCreateTable()
	case "UNIQUE", "INDEX":
		unique := false
		if p.peekText() == "UNIQUE" {
			unique = true
			p.next()
		}
		if err := p.expectText("INDEX"); err != nil {
			return nil, err
		}
		return p.parseCreateIndex(unique)
	default:
		return nil, dberr.New(dberr.ParseError, "expected DATABASE, TABLE, or INDEX after CREATE, got %q", p.peekText())
	}
}

func (p *parser) parseCreateTable() (ast.Statement, error) {
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectText("("); err != nil {
		return nil, err
	}
	var columns []table.ColumnDefinition
	for {
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
		if p.peekText() == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectText(")"); err != nil {
		return nil, err
	}
	return ast.CreateTable{TableName: identName(nameTok), Columns: columns}, nil
}

func (p *parser) parseColumnDef() (table.ColumnDefinition, error) {
	nameTok, err := p.expectIdent()
	if err != nil {
		return table.ColumnDefinition{}, err
	}
	typeTok, err := p.expectIdent()
	if err != nil {
		return table.ColumnDefinition{}, err
	}
	typeName := typeTok.Text
	if p.peekText() == "(" { // VARCHAR(255), DECIMAL(10,2)
		p.next()
		for p.peekText() != ")" && !p.eof() {
			p.next()
		}
		if err := p.expectText(")"); err != nil {
			return table.ColumnDefinition{}, err
		}
	}

	col := table.ColumnDefinition{
		Name:     identName(nameTok),
		DataType: ParseDataType(typeName),
		Nullable: true,
	}

	for {
		switch p.peekText() {
		case "NOT":
			p.next()
			if err := p.expectText("NULL"); err != nil {
				return table.ColumnDefinition{}, err
			}
			col.Nullable = false
		case "NULL":
			p.next()
			col.Nullable = true
		case "PRIMARY":
			p.next()
			if err := p.expectText("KEY"); err != nil {
				return table.ColumnDefinition{}, err
			}
			col.PrimaryKey = true
			col.Nullable = false
		case "UNIQUE", "DEFAULT", "AUTO_INCREMENT", "IDENTITY":
			p.next()
			if p.peekText() == "(" { // DEFAULT(expr) style guards
				depth := 0
				for !p.eof() {
					if p.peekText() == "(" {
						depth++
					} else if p.peekText() == ")" {
						depth--
						if depth == 0 {
							p.next()
							break
						}
					}
					p.next()
				}
			} else if !p.eof() && p.peekText() != "," && p.peekText() != ")" && p.peekText() != "NOT" && p.peekText() != "NULL" && p.peekText() != "PRIMARY" {
				p.next() // skip a single default-value token
			}
		default:
			return col, nil
		}
	}
}

func (p *parser) parseCreateIndex(unique bool) (ast.Statement, error) {
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectText("ON"); err != nil {
		return nil, err
	}
	tableTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectText("("); err != nil {
		return nil, err
	}
	var cols []string
	for {
		colTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		cols = append(cols, identName(colTok))
		if p.peekText() == "," {
			p.next()
			continue
		}
		break
	}
	if err := p.expectText(")"); err != nil {
		return nil, err
	}
	return ast.CreateIndex{Name: identName(nameTok), TableName: identName(tableTok), Columns: cols, Unique: unique}, nil
}

// ---- DROP ----

func (p *parser) parseDrop() (ast.Statement, error) {
	p.next() // DROP
	switch p.peekText() {
	case "TABLE":
		p.next()
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.DropTable{TableName: identName(nameTok)}, nil
	case "DATABASE":
		p.next()
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.DropDatabase{DatabaseName: identName(nameTok)}, nil
	case "INDEX":
		p.next()
		nameTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.DropIndex{Name: identName(nameTok)}, nil
	default:
		return nil, dberr.New(dberr.ParseError, "expected TABLE, DATABASE, or INDEX after DROP, got %q", p.peekText())
	}
}

// ---- ALTER ----

func (p *parser) parseAlter() (ast.Statement, error) {
	p.next() // ALTER
	if err := p.expectText("TABLE"); err != nil {
		return nil, err
	}
	nameTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	switch p.peekText() {
	case "ADD":
		p.next()
		if p.peekText() == "COLUMN" {
			p.next()
		}
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		return ast.AlterTable{TableName: identName(nameTok), Action: ast.AddColumn{Column: col}}, nil
	case "DROP":
		p.next()
		if p.peekText() == "COLUMN" {
			p.next()
		}
		colTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return ast.AlterTable{TableName: identName(nameTok), Action: ast.DropColumn{ColumnName: identName(colTok)}}, nil
	case "MODIFY":
		p.next()
		if p.peekText() == "COLUMN" {
			p.next()
		}
		col, err := p.parseColumnDef()
		if err != nil {
			return nil, err
		}
		return ast.AlterTable{TableName: identName(nameTok), Action: ast.ModifyColumn{Column: col}}, nil
	default:
		return nil, dberr.New(dberr.ParseError, "expected ADD, DROP, or MODIFY after ALTER TABLE %s, got %q", identName(nameTok), p.peekText())
	}
}

// ---- INSERT ----

func (p *parser) parseInsert() (ast.Statement, error) {
	p.next() // INSERT
	if err := p.expectText("INTO"); err != nil {
		return nil, err
	}
	tableTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	var columns []string
	if p.peekText() == "(" {
		p.next()
		for {
			colTok, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, identName(colTok))
			if p.peekText() == "," {
				p.next()
				continue
			}
			break
		}
		if err := p.expectText(")"); err != nil {
			return nil, err
		}
	}

	if err := p.expectText("VALUES"); err != nil {
		return nil, err
	}
	if err := p.expectText("("); err != nil {
		return nil, err
	}
	vals, err := p.parseValueList()
	if err != nil {
		return nil, err
	}
	if err := p.expectText(")"); err != nil {
		return nil, err
	}

	return ast.Insert{TableName: identName(tableTok), Columns: columns, Values: vals}, nil
}

func (p *parser) parseValueList() ([]value.Value, error) {
	var out []value.Value
	for {
		v, err := p.parseScalarValue()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if p.peekText() == "," {
			p.next()
			continue
		}
		break
	}
	return out, nil
}

// ---- SELECT ----

func (p *parser) parseSelect() (ast.Statement, error) {
	p.next() // SELECT
	var columns []string
	if p.peekText() == "*" {
		p.next()
		columns = []string{"*"}
	} else {
		for {
			colTok, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			columns = append(columns, identName(colTok))
			if p.peekText() == "," {
				p.next()
				continue
			}
			break
		}
	}

	if err := p.expectText("FROM"); err != nil {
		return nil, err
	}
	tableTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}

	sel := ast.Select{TableName: identName(tableTok), Columns: columns}

	if p.peekText() == "WHERE" {
		p.next()
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		sel.Where = where
	}
	if p.peekText() == "LIMIT" {
		p.next()
		n, err := p.expectInt()
		if err != nil {
			return nil, err
		}
		sel.Limit = &n
	}
	if p.peekText() == "OFFSET" {
		p.next()
		n, err := p.expectInt()
		if err != nil {
			return nil, err
		}
		sel.Offset = &n
	}
	return sel, nil
}

func (p *parser) expectInt() (int, error) {
	t := p.next()
	n, err := strconv.Atoi(t.Text)
	if err != nil {
		return 0, dberr.New(dberr.ParseError, "expected integer, got %q", t.Raw)
	}
	return n, nil
}

// ---- UPDATE ----

func (p *parser) parseUpdate() (ast.Statement, error) {
	p.next() // UPDATE
	tableTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectText("SET"); err != nil {
		return nil, err
	}
	var sets []ast.SetClause
	for {
		colTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectText("="); err != nil {
			return nil, err
		}
		v, err := p.parseScalarValue()
		if err != nil {
			return nil, err
		}
		sets = append(sets, ast.SetClause{Column: identName(colTok), Value: v})
		if p.peekText() == "," {
			p.next()
			continue
		}
		break
	}

	upd := ast.Update{TableName: identName(tableTok), Set: sets}
	if p.peekText() == "WHERE" {
		p.next()
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		upd.Where = where
	}
	return upd, nil
}

// ---- DELETE ----

func (p *parser) parseDelete() (ast.Statement, error) {
	p.next() // DELETE
	if err := p.expectText("FROM"); err != nil {
		return nil, err
	}
	tableTok, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	del := ast.Delete{TableName: identName(tableTok)}
	if p.peekText() == "WHERE" {
		p.next()
		where, err := p.parseWhere()
		if err != nil {
			return nil, err
		}
		del.Where = where
	}
	return del, nil
}

// ---- WHERE / values ----

func (p *parser) parseWhere() ([]planner.Predicate, error) {
	var preds []planner.Predicate
	for {
		colTok, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		opTok := p.next()
		op, err := parseComparisonOperator(opTok.Text)
		if err != nil {
			return nil, err
		}
		v, err := p.parseScalarValue()
		if err != nil {
			return nil, err
		}
		preds = append(preds, planner.Predicate{Column: identName(colTok), Op: op, Value: v})

		if p.peekText() == "AND" {
			p.next()
			continue
		}
		break
	}
	return preds, nil
}

func parseComparisonOperator(op string) (planner.Op, error) {
	switch op {
	case "=":
		return planner.Eq, nil
	case "!=", "<>":
		return planner.Ne, nil
	case "<":
		return planner.Lt, nil
	case "<=":
		return planner.Le, nil
	case ">":
		return planner.Gt, nil
	case ">=":
		return planner.Ge, nil
	default:
		return 0, dberr.New(dberr.ParseError, "unknown comparison operator %q", op)
	}
}

// parseScalarValue consumes one literal token. String literals are
// already unquoted by Tokenize, so they become Text values directly;
// every other token (bare words, numbers) goes through ParseValue for
// NULL/TRUE/FALSE/number/text classification.
func (p *parser) parseScalarValue() (value.Value, error) {
	if p.eof() {
		return value.Value{}, dberr.New(dberr.ParseError, "expected value, got end of statement")
	}
	t := p.next()
	if t.IsString {
		return value.Text(t.Raw), nil
	}
	return ParseValue(t.Raw), nil
}
