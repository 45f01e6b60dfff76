// Package docstore предоставляет контракт документного хранилища: именованные
// коллекции документов с операциями чтения, полной и частичной записи,
// атомарными числовыми инкрементами и пакетными записями.
package docstore

import (
	"context"
	"errors"
)

// ErrNotFound возвращается, когда документ отсутствует в коллекции.
var ErrNotFound = errors.New("document not found")

// MaxBatchOps ограничивает количество операций в одном коммите пакетной записи.
const MaxBatchOps = 500

// Document представляет содержимое одного документа.
type Document map[string]any

type fieldKind int

const (
	fieldSet fieldKind = iota
	fieldIncrement
)

// FieldValue описывает одно поле частичной записи: либо установку значения,
// либо атомарный числовой инкремент.
type FieldValue struct {
	kind fieldKind
	set  any
	inc  float64
}

// Set возвращает FieldValue, устанавливающее поле в значение v.
func Set(v any) FieldValue {
	return FieldValue{kind: fieldSet, set: v}
}

// Increment возвращает FieldValue, атомарно увеличивающее числовое поле на by.
func Increment(by float64) FieldValue {
	return FieldValue{kind: fieldIncrement, inc: by}
}

// IsIncrement сообщает, является ли поле инкрементом.
func (f FieldValue) IsIncrement() bool { return f.kind == fieldIncrement }

// SetValue возвращает устанавливаемое значение поля.
func (f FieldValue) SetValue() any { return f.set }

// IncrementBy возвращает величину инкремента.
func (f FieldValue) IncrementBy() float64 { return f.inc }

// Типы операций пакетной записи.
const (
	OpSet   = "set"
	OpMerge = "merge"
)

// Operation описывает одну операцию пакетной записи.
type Operation struct {
	Kind       string
	Collection string
	ID         string

	// Doc используется операцией OpSet.
	Doc Document

	// Fields используется операцией OpMerge.
	Fields map[string]FieldValue
}

// Store определяет контракт документного хранилища, потребляемый движком метрик.
type Store interface {
	Get(ctx context.Context, collection, id string) (Document, error)
	Set(ctx context.Context, collection, id string, doc Document) error
	Merge(ctx context.Context, collection, id string, fields map[string]FieldValue) error
	Delete(ctx context.Context, collection, id string, recursive bool) error
	List(ctx context.Context, collection string) (map[string]Document, error)
	BatchWrite(ctx context.Context, ops []Operation) error
	Ping(ctx context.Context) error
}
