package collection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	_ "github.com/lib/pq"
)

// Dialect seleciona o estilo de placeholder e o driver esperado.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLConfig descreve uma coleção persistida em uma tabela.
type SQLConfig struct {
	DB       *sql.DB
	Table    string
	Dialect  Dialect
	Identity string
	// Records são inseridos na inicialização e em cada Reset.
	Records []Record
}

// SQLBackend mantém os registros em uma única tabela via database/sql.
// A tabela deve existir; a identidade pode ser atribuída pelo banco. A ordem
// de armazenamento é a ordem da identidade.
type SQLBackend struct {
	db       *sql.DB
	table    string
	dialect  Dialect
	identity string
	initial  []Record

	initOnce sync.Once
	initErr  error
}

var _ Backend = (*SQLBackend)(nil)

// NewSQLBackend valida a configuração. A tabela só é populada na primeira
// chamada a IsInitialized (ou a qualquer outra operação).
func NewSQLBackend(cfg SQLConfig) (*SQLBackend, error) {
	if cfg.DB == nil {
		return nil, fmt.Errorf("sql backend: conexão nula")
	}
	if cfg.Identity == "" {
		cfg.Identity = DefaultIdentity
	}
	if cfg.Dialect == "" {
		cfg.Dialect = DialectSQLite
	}
	if cfg.Dialect != DialectSQLite && cfg.Dialect != DialectPostgres {
		return nil, fmt.Errorf("%w: '%s'", ErrUnsupportedDialect, cfg.Dialect)
	}
	for _, name := range []string{cfg.Table, cfg.Identity} {
		if !identifierRegex.MatchString(name) {
			return nil, fmt.Errorf("%w: '%s'", ErrInvalidIdentifier, name)
		}
	}

	return &SQLBackend{
		db:       cfg.DB,
		table:    cfg.Table,
		dialect:  cfg.Dialect,
		identity: cfg.Identity,
		initial:  cloneRecords(cfg.Records),
	}, nil
}

// NewSQLCollection cria um Collection sobre uma tabela SQL. WithIdentity
// preenche cfg.Identity quando este estiver vazio.
func NewSQLCollection(cfg SQLConfig, opts ...Option) (*Collection, error) {
	o := buildOptions(opts)
	if cfg.Identity == "" {
		cfg.Identity = o.identity
	}
	b, err := NewSQLBackend(cfg)
	if err != nil {
		return nil, err
	}
	return New(b, opts...), nil
}

func (b *SQLBackend) Identity() string { return b.identity }

// IsInitialized popula a tabela uma única vez e retorna o resultado.
func (b *SQLBackend) IsInitialized(ctx context.Context) error {
	b.initOnce.Do(func() {
		b.initErr = b.populate(ctx)
	})
	return b.initErr
}

// Reset apaga a tabela e reinsere os registros iniciais. Geradores de
// identidade do banco (sequences, autoincrement) não são afetados.
func (b *SQLBackend) Reset(ctx context.Context) error {
	if err := b.IsInitialized(ctx); err != nil {
		return err
	}
	return b.populate(ctx)
}

func (b *SQLBackend) populate(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("falha ao iniciar transação: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+b.quote(b.table)); err != nil {
		return fmt.Errorf("falha ao limpar tabela %s: %w", b.table, err)
	}
	for _, r := range b.initial {
		if _, err := b.insert(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (b *SQLBackend) Clear(ctx context.Context) ([]Record, error) {
	removed, err := b.Find(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := b.db.ExecContext(ctx, "DELETE FROM "+b.quote(b.table)); err != nil {
		return nil, fmt.Errorf("falha ao limpar tabela %s: %w", b.table, err)
	}
	return removed, nil
}

func (b *SQLBackend) Count(ctx context.Context) (int, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return 0, err
	}
	var n int
	row := b.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+b.quote(b.table))
	if err := row.Scan(&n); err != nil {
		return 0, fmt.Errorf("falha ao contar registros de %s: %w", b.table, err)
	}
	return n, nil
}

func (b *SQLBackend) Find(ctx context.Context, q Query) ([]Record, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, err
	}
	where, args, ok := b.where(q)
	if !ok {
		// coluna inválida: casamento é total, logo nenhum registro
		return []Record{}, nil
	}
	return b.query(ctx, "SELECT * FROM "+b.quote(b.table)+where+b.orderBy(), args...)
}

func (b *SQLBackend) FindOne(ctx context.Context, c Criteria) (Record, bool, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, false, err
	}

	var (
		stmt = "SELECT * FROM " + b.quote(b.table)
		args []any
	)
	switch c.Kind() {
	case CriteriaIdentity:
		v, _ := c.Identity()
		stmt += " WHERE " + b.quote(b.identity) + " = " + b.placeholder(1)
		args = append(args, sqlValue(v))
	case CriteriaQuery:
		q, _ := c.Query()
		where, qargs, ok := b.where(q)
		if !ok {
			return nil, false, nil
		}
		stmt += where
		args = qargs
	}

	rows, err := b.query(ctx, stmt+b.orderBy()+" LIMIT 1", args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (b *SQLBackend) PerformInsert(ctx context.Context, r Record) (Record, error) {
	if err := b.IsInitialized(ctx); err != nil {
		return nil, err
	}
	return b.insert(ctx, b.db, r)
}

func (b *SQLBackend) PerformUpdateOne(ctx context.Context, c Criteria, patch Record) (Record, bool, error) {
	row, found, err := b.FindOne(ctx, c)
	if err != nil || !found {
		return nil, false, err
	}

	updated := row.Merge(patch)
	updated[b.identity] = row[b.identity]

	columns, err := b.columns(updated, true)
	if err != nil {
		return nil, false, err
	}
	if len(columns) == 0 {
		return updated, true, nil
	}

	sets := make([]string, len(columns))
	args := make([]any, 0, len(columns)+1)
	for i, col := range columns {
		sets[i] = b.quote(col) + " = " + b.placeholder(i+1)
		args = append(args, sqlValue(updated[col]))
	}
	args = append(args, row[b.identity])

	stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		b.quote(b.table), strings.Join(sets, ", "), b.quote(b.identity), b.placeholder(len(columns)+1))
	if _, err := b.db.ExecContext(ctx, stmt, args...); err != nil {
		return nil, false, fmt.Errorf("falha ao atualizar %s: %w", b.table, err)
	}
	return updated, true, nil
}

func (b *SQLBackend) PerformDeleteOne(ctx context.Context, c Criteria) (Record, bool, error) {
	row, found, err := b.FindOne(ctx, c)
	if err != nil || !found {
		return nil, false, err
	}

	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s = %s", b.quote(b.table), b.quote(b.identity), b.placeholder(1))
	if _, err := b.db.ExecContext(ctx, stmt, row[b.identity]); err != nil {
		return nil, false, fmt.Errorf("falha ao remover de %s: %w", b.table, err)
	}
	return row, true, nil
}

type execQuerier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// insert usa RETURNING * para obter a identidade atribuída pelo banco.
func (b *SQLBackend) insert(ctx context.Context, q execQuerier, r Record) (Record, error) {
	columns, err := b.columns(r, false)
	if err != nil {
		return nil, err
	}

	stmt := "INSERT INTO " + b.quote(b.table)
	args := make([]any, 0, len(columns))
	if len(columns) == 0 {
		stmt += " DEFAULT VALUES"
	} else {
		quoted := make([]string, len(columns))
		marks := make([]string, len(columns))
		for i, col := range columns {
			quoted[i] = b.quote(col)
			marks[i] = b.placeholder(i + 1)
			args = append(args, sqlValue(r[col]))
		}
		stmt += fmt.Sprintf(" (%s) VALUES (%s)", strings.Join(quoted, ", "), strings.Join(marks, ", "))
	}

	rows, err := q.QueryContext(ctx, stmt+" RETURNING *", args...)
	if err != nil {
		return nil, fmt.Errorf("falha ao inserir em %s: %w", b.table, err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("insert em %s não retornou linhas", b.table)
	}
	return records[0], nil
}

func (b *SQLBackend) query(ctx context.Context, stmt string, args ...any) ([]Record, error) {
	rows, err := b.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("falha na consulta a %s: %w", b.table, err)
	}
	return scanRecords(rows)
}

// where traduz a Query para SQL. ok=false quando algum campo não é um
// identificador válido.
func (b *SQLBackend) where(q Query) (string, []any, bool) {
	if len(q) == 0 {
		return "", nil, true
	}

	fields := make([]string, 0, len(q))
	for f := range q {
		if !identifierRegex.MatchString(f) {
			return "", nil, false
		}
		fields = append(fields, f)
	}
	sort.Strings(fields)

	var (
		clauses []string
		args    []any
	)
	for _, f := range fields {
		cond := q[f]
		if m, ok := cond.(*Membership); ok && m != nil {
			cond = *m
		}
		switch c := cond.(type) {
		case Membership:
			if len(c.Values) == 0 {
				clauses = append(clauses, "1 = 0")
				continue
			}
			marks := make([]string, len(c.Values))
			for i, v := range c.Values {
				args = append(args, sqlValue(v))
				marks[i] = b.placeholder(len(args))
			}
			clauses = append(clauses, fmt.Sprintf("%s IN (%s)", b.quote(f), strings.Join(marks, ", ")))
		case nil:
			clauses = append(clauses, b.quote(f)+" IS NULL")
		default:
			args = append(args, sqlValue(c))
			clauses = append(clauses, b.quote(f)+" = "+b.placeholder(len(args)))
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, true
}

// columns retorna as colunas de r em ordem determinística. Identidades nulas
// são omitidas no insert para que o banco as atribua; no update a identidade
// nunca entra no SET.
func (b *SQLBackend) columns(r Record, skipIdentity bool) ([]string, error) {
	cols := make([]string, 0, len(r))
	for k, v := range r {
		if k == b.identity && (skipIdentity || v == nil) {
			continue
		}
		if !identifierRegex.MatchString(k) {
			return nil, fmt.Errorf("%w: coluna '%s'", ErrInvalidIdentifier, k)
		}
		cols = append(cols, k)
	}
	sort.Strings(cols)
	return cols, nil
}

// orderBy fixa a ordem das leituras pela identidade. Sem ela o postgres
// devolve linhas atualizadas no fim da tabela.
func (b *SQLBackend) orderBy() string {
	return " ORDER BY " + b.quote(b.identity)
}

func (b *SQLBackend) placeholder(n int) string {
	if b.dialect == DialectPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (b *SQLBackend) quote(name string) string {
	return `"` + name + `"`
}

// sqlValue serializa valores compostos como JSON; drivers só aceitam escalares.
func sqlValue(v any) any {
	switch t := v.(type) {
	case map[string]any, Record, []any:
		raw, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(raw)
	case json.Number:
		return t.String()
	default:
		return v
	}
}

// scanRecords converte as linhas em registros, convertendo []byte em string.
func scanRecords(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("falha ao ler colunas: %w", err)
	}

	records := []Record{}
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("falha ao ler linha: %w", err)
		}

		r := make(Record, len(columns))
		for i, col := range columns {
			if raw, ok := values[i].([]byte); ok {
				r[col] = string(raw)
			} else {
				r[col] = values[i]
			}
		}
		records = append(records, r)
	}
	return records, rows.Err()
}
