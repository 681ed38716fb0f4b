package store

import (
	"fmt"
	"slices"
	"strings"

	"github.com/franz/music-ledger/internal/attr"
	"github.com/franz/music-ledger/internal/util"
)

// MetaRow is one Meta record: the latest static attribute values of a track
type MetaRow struct {
	PersistentID string
	Values       []attr.Value // in attr.Static order
}

// NewMetaRow returns a row with every attribute absent
func NewMetaRow(id string) MetaRow {
	return MetaRow{PersistentID: id, Values: make([]attr.Value, len(attr.Static))}
}

// Get returns the named attribute, Absent for unknown names
func (r MetaRow) Get(name string) attr.Value {
	i, ok := attr.Index(name)
	if !ok || i >= len(r.Values) {
		return attr.Absent()
	}
	return r.Values[i]
}

// ChangeEntry is one row of a change log
type ChangeEntry struct {
	PersistentID string
	Date         int64 // Unix seconds
	Value        int64
}

var metaColumns = strings.Join(append([]string{attr.PersistentIDColumn}, attr.Static...), ", ")

// GetMeta returns every Meta row in insertion order
func (s *Store) GetMeta() ([]MetaRow, error) {
	rows, err := s.Query("SELECT " + metaColumns + " FROM Meta ORDER BY rowid")
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", MetaTable, err)
	}

	result := make([]MetaRow, 0, len(rows))
	for _, row := range rows {
		id, ok := row[0].AsString()
		if !ok {
			util.WarnLog("Skipping %s row without %s", MetaTable, attr.PersistentIDColumn)
			continue
		}
		result = append(result, MetaRow{PersistentID: id, Values: []attr.Value(row[1:])})
	}

	return result, nil
}

// GetChangeLog returns every entry of the metric's change log in insertion
// order
func (s *Store) GetChangeLog(m attr.Metric) ([]ChangeEntry, error) {
	rows, err := s.Query(fmt.Sprintf(
		"SELECT PersistentID, Date, %s FROM %s ORDER BY rowid", m, m.Table()))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", m.Table(), err)
	}

	result := make([]ChangeEntry, 0, len(rows))
	for _, row := range rows {
		id, idOK := row[0].AsString()
		date, dateOK := row[1].AsInt()
		value, valueOK := row[2].AsInt()
		if !idOK || !dateOK || !valueOK {
			util.WarnLog("Skipping malformed %s row: %v", m.Table(), row)
			continue
		}
		result = append(result, ChangeEntry{PersistentID: id, Date: date, Value: value})
	}

	return result, nil
}

// SetMetaAttribute overwrites one static attribute of an existing Meta row
func (s *Store) SetMetaAttribute(id, name string, v attr.Value) (int64, error) {
	if !attr.IsStatic(name) {
		return 0, fmt.Errorf("%w: %q", util.ErrUnknownAttribute, name)
	}

	return s.Exec(fmt.Sprintf("UPDATE Meta SET %s = ? WHERE PersistentID = ?", name),
		attr.Coerce(name, v).SQL(), id)
}

// SetMeta inserts a full Meta row, or updates it in place if the id exists
func (s *Store) SetMeta(row MetaRow) (int64, error) {
	if len(row.Values) != len(attr.Static) {
		return 0, fmt.Errorf("meta row for %s has %d values, want %d",
			row.PersistentID, len(row.Values), len(attr.Static))
	}

	args := make([]any, 0, len(row.Values)+1)
	args = append(args, row.PersistentID)
	updates := make([]string, 0, len(attr.Static))
	for i, name := range attr.Static {
		args = append(args, attr.Coerce(name, row.Values[i]).SQL())
		updates = append(updates, fmt.Sprintf("%s = excluded.%s", name, name))
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")
	query := fmt.Sprintf(`INSERT INTO Meta (%s) VALUES (%s)
		ON CONFLICT(PersistentID) DO UPDATE SET %s`,
		metaColumns, placeholders, strings.Join(updates, ", "))

	return s.Exec(query, args...)
}

// AppendChange records an observation in the metric's change log. Rows the
// table's uniqueness rule rejects are ignored and report zero rows.
func (s *Store) AppendChange(m attr.Metric, id string, at int64, value int64) (int64, error) {
	return s.Exec(fmt.Sprintf(
		"INSERT OR IGNORE INTO %s (PersistentID, Date, %s) VALUES (?, ?, ?)", m.Table(), m),
		id, at, value)
}

// CountRows returns the number of rows in one of the store's tables
func (s *Store) CountRows(table string) (int64, error) {
	if !slices.Contains(Tables, table) {
		return 0, fmt.Errorf("%w: table %q", util.ErrNotFound, table)
	}

	v, err := s.Scalar("SELECT COUNT(*) FROM " + table)
	if err != nil {
		return 0, err
	}

	n, _ := v.AsInt()
	return n, nil
}
