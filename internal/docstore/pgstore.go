package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// --------------------- DBStore ---------------------

type DBStore struct {
	db *sql.DB
}

func NewDBStore(db *sql.DB) *DBStore {
	return &DBStore{db: db}
}

func (d *DBStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var raw []byte
	err := d.db.QueryRowContext(ctx,
		`SELECT data FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (d *DBStore) Set(ctx context.Context, collection, id string, doc Document) error {
	return setDocument(ctx, d.db, collection, id, doc)
}

func setDocument(ctx context.Context, ex execer, collection, id string, doc Document) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data
	`, collection, id, data)
	return err
}

func (d *DBStore) Merge(ctx context.Context, collection, id string, fields map[string]FieldValue) error {
	return mergeDocument(ctx, d.db, collection, id, fields)
}

// mergeDocument выполняет частичную запись одним запросом: при первой записи
// вставляется полный документ, при конфликте set-поля накладываются через ||,
// а инкременты вычисляются на стороне базы, что делает их атомарными.
func mergeDocument(ctx context.Context, ex execer, collection, id string, fields map[string]FieldValue) error {
	initial := make(Document, len(fields))
	setOnly := make(Document)

	type incField struct {
		name string
		by   float64
	}
	var incs []incField

	for name, f := range fields {
		if f.IsIncrement() {
			initial[name] = f.IncrementBy()
			incs = append(incs, incField{name: name, by: f.IncrementBy()})
		} else {
			initial[name] = f.SetValue()
			setOnly[name] = f.SetValue()
		}
	}
	sort.Slice(incs, func(i, j int) bool { return incs[i].name < incs[j].name })

	initialData, err := json.Marshal(initial)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}
	setData, err := json.Marshal(setOnly)
	if err != nil {
		return fmt.Errorf("failed to encode document %s/%s: %w", collection, id, err)
	}

	args := []any{collection, id, initialData, setData}
	expr := "documents.data || $4::jsonb"

	// Имена полей задаются кодом движка, не пользовательским вводом.
	for _, inc := range incs {
		args = append(args, inc.by)
		expr = fmt.Sprintf(
			"jsonb_set(%s, '{%s}', to_jsonb(COALESCE((documents.data->>'%s')::numeric, 0) + $%d::numeric))",
			expr, inc.name, inc.name, len(args),
		)
	}

	query := fmt.Sprintf(`
		INSERT INTO documents (collection, id, data) VALUES ($1, $2, $3::jsonb)
		ON CONFLICT (collection, id) DO UPDATE SET data = %s
	`, expr)

	_, err = ex.ExecContext(ctx, query, args...)
	return err
}

func (d *DBStore) Delete(ctx context.Context, collection, id string, recursive bool) error {
	if _, err := d.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = $1 AND id = $2`,
		collection, id,
	); err != nil {
		return err
	}

	if recursive {
		prefix := collection + "/" + id + "/"
		if _, err := d.db.ExecContext(ctx,
			`DELETE FROM documents WHERE collection LIKE $1`,
			prefix+"%",
		); err != nil {
			return err
		}
	}

	return nil
}

func (d *DBStore) List(ctx context.Context, collection string) (map[string]Document, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, data FROM documents WHERE collection = $1`,
		collection,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Document)
	for rows.Next() {
		var (
			id  string
			raw []byte
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, err
		}

		var doc Document
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s/%s: %w", collection, id, err)
		}
		out[id] = doc
	}

	return out, rows.Err()
}

func (d *DBStore) BatchWrite(ctx context.Context, ops []Operation) error {
	for start := 0; start < len(ops); start += MaxBatchOps {
		end := start + MaxBatchOps
		if end > len(ops) {
			end = len(ops)
		}

		if err := d.writeChunk(ctx, ops[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (d *DBStore) writeChunk(ctx context.Context, ops []Operation) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, op := range ops {
		switch op.Kind {
		case OpSet:
			err = setDocument(ctx, tx, op.Collection, op.ID, op.Doc)
		case OpMerge:
			err = mergeDocument(ctx, tx, op.Collection, op.ID, op.Fields)
		default:
			err = fmt.Errorf("unknown batch operation %q", op.Kind)
		}
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (d *DBStore) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}
