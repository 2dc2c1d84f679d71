// Package rm implements the Relation Manager: a minimal catalog of named
// tables layered on top of internal/rbfm. Two bootstrap tables describe the
// catalog itself, mirroring a standard relational self-description trick:
//
//	Tables(table-id: Int, table-name: VarChar(50), file-name: VarChar(50))
//	Columns(table-id: Int, column-name: VarChar(50), column-type: Int,
//	        column-length: Int, column-position: Int)
//
// Tables lives in catalog.tbl, Columns lives in columns.tbl, and every user
// table created through CreateTable gets its own PFM-backed file named
// "<table-name>.tbl" in the same data directory. rm never interprets record
// bytes itself; every read or write is delegated to internal/rbfm using a
// tuple.Descriptor rm assembles from the catalog rows.
package rm

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pagedb/rbfm/internal/pfm"
	"github.com/pagedb/rbfm/internal/rbfm"
	"github.com/pagedb/rbfm/internal/tuple"
)

const (
	catalogFileName = "catalog.tbl"
	columnsFileName = "columns.tbl"

	tablesTableName  = "Tables"
	columnsTableName = "Columns"
)

var (
	// ErrReserved is returned when a caller tries to create or delete the
	// catalog's own reserved table names, or to insert, read, delete or scan
	// their tuples directly.
	ErrReserved = errors.New("rm: \"Tables\" and \"Columns\" are reserved")
	// ErrTableNotFound is returned when a named table has no Tables row.
	ErrTableNotFound = errors.New("rm: table not found")
	// ErrTableExists is returned by CreateTable when the name is already
	// registered in the catalog.
	ErrTableExists = errors.New("rm: table already exists")
)

// columnTypeCode maps tuple.AttrType to the catalog's stored encoding:
// 0=Int, 1=Float, 2=VarChar.
func columnTypeCode(t tuple.AttrType) (int32, error) {
	switch t {
	case tuple.TypeInt:
		return 0, nil
	case tuple.TypeFloat:
		return 1, nil
	case tuple.TypeVarChar:
		return 2, nil
	default:
		return 0, tuple.ErrUnknownType
	}
}

func codeToColumnType(code int32) (tuple.AttrType, error) {
	switch code {
	case 0:
		return tuple.TypeInt, nil
	case 1:
		return tuple.TypeFloat, nil
	case 2:
		return tuple.TypeVarChar, nil
	default:
		return 0, fmt.Errorf("rm: unknown column-type code %d", code)
	}
}

func tablesDescriptor() tuple.Descriptor {
	return tuple.Descriptor{
		{Name: "table-id", Type: tuple.TypeInt},
		{Name: "table-name", Type: tuple.TypeVarChar, MaxLength: 50},
		{Name: "file-name", Type: tuple.TypeVarChar, MaxLength: 50},
	}
}

func columnsDescriptor() tuple.Descriptor {
	return tuple.Descriptor{
		{Name: "table-id", Type: tuple.TypeInt},
		{Name: "column-name", Type: tuple.TypeVarChar, MaxLength: 50},
		{Name: "column-type", Type: tuple.TypeInt},
		{Name: "column-length", Type: tuple.TypeInt},
		{Name: "column-position", Type: tuple.TypeInt},
	}
}

// Store is an open catalog plus whichever user-table files have been
// touched so far. It is not safe for concurrent use, matching every other
// package in this module.
type Store struct {
	dir     string
	catalog *pfm.FileHandle
	columns *pfm.FileHandle
	open    map[string]*pfm.FileHandle
}

func tablePath(dir, fileName string) string {
	return filepath.Join(dir, fileName)
}

// Init creates dir if needed, creates fresh catalog.tbl/columns.tbl files
// in it, and bootstraps the catalog's self-describing rows. The returned
// Store is ready to use; the caller must Close it.
func Init(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("rm: create data dir %s: %w", dir, err)
	}
	if err := pfm.Create(tablePath(dir, catalogFileName)); err != nil {
		return nil, fmt.Errorf("rm: create catalog: %w", err)
	}
	if err := pfm.Create(tablePath(dir, columnsFileName)); err != nil {
		return nil, fmt.Errorf("rm: create columns catalog: %w", err)
	}
	store, err := Open(dir)
	if err != nil {
		return nil, err
	}
	if err := store.createCatalogTables(); err != nil {
		store.Close()
		return nil, err
	}
	return store, nil
}

// Open attaches to an existing data directory's catalog files. It does not
// open any user table files; those are opened lazily on first access.
func Open(dir string) (*Store, error) {
	catalog, err := pfm.Open(tablePath(dir, catalogFileName))
	if err != nil {
		return nil, fmt.Errorf("rm: open catalog: %w", err)
	}
	columns, err := pfm.Open(tablePath(dir, columnsFileName))
	if err != nil {
		catalog.Close()
		return nil, fmt.Errorf("rm: open columns catalog: %w", err)
	}
	return &Store{
		dir:     dir,
		catalog: catalog,
		columns: columns,
		open:    make(map[string]*pfm.FileHandle),
	}, nil
}

// Close flushes and closes the catalog files and every user table file
// opened during this Store's lifetime, returning the first error it hits
// while still attempting the rest.
func (s *Store) Close() error {
	var first error
	record := func(err error) {
		if err != nil && first == nil {
			first = err
		}
	}
	for _, fh := range s.open {
		record(fh.Close())
	}
	record(s.columns.Close())
	record(s.catalog.Close())
	return first
}

// createCatalogTables inserts the bootstrap rows describing Tables and
// Columns within themselves: two Tables rows and eight Columns rows (three
// for Tables' own attributes, five for Columns').
func (s *Store) createCatalogTables() error {
	td := tablesDescriptor()
	cd := columnsDescriptor()

	tablesRow, err := tuple.Encode(td, []any{int32(1), tablesTableName, tablesTableName})
	if err != nil {
		return err
	}
	if _, err := rbfm.Insert(s.catalog, td, tablesRow); err != nil {
		return fmt.Errorf("rm: bootstrap Tables row: %w", err)
	}
	columnsRow, err := tuple.Encode(td, []any{int32(2), columnsTableName, columnsTableName})
	if err != nil {
		return err
	}
	if _, err := rbfm.Insert(s.catalog, td, columnsRow); err != nil {
		return fmt.Errorf("rm: bootstrap Columns row: %w", err)
	}

	bootstrapColumns := []struct {
		tableID  int32
		name     string
		typeCode int32
		length   int32
		position int32
	}{
		{1, "table-id", 0, 0, 1},
		{1, "table-name", 2, 50, 2},
		{1, "file-name", 2, 50, 3},
		{2, "table-id", 0, 0, 1},
		{2, "column-name", 2, 50, 2},
		{2, "column-type", 0, 0, 3},
		{2, "column-length", 0, 0, 4},
		{2, "column-position", 0, 0, 5},
	}
	for _, c := range bootstrapColumns {
		row, err := tuple.Encode(cd, []any{c.tableID, c.name, c.typeCode, c.length, c.position})
		if err != nil {
			return err
		}
		if _, err := rbfm.Insert(s.columns, cd, row); err != nil {
			return fmt.Errorf("rm: bootstrap column row %s: %w", c.name, err)
		}
	}
	return nil
}

func isReserved(tableName string) bool {
	return tableName == tablesTableName || tableName == columnsTableName
}

type tableRow struct {
	rid      rbfm.RID
	tableID  int32
	fileName string
}

// scanTablesFor walks every Tables row looking for tableName, since Scanner
// only supports a single attribute/op/value predicate and EQ on a VarChar
// is exactly that.
func (s *Store) scanTablesFor(tableName string) (tableRow, bool, error) {
	td := tablesDescriptor()
	sc := rbfm.OpenScan(s.catalog, td, "table-name", tuple.EQ, tuple.VarCharValue(tableName), nil)
	defer sc.Close()

	var r rbfm.RID
	var data []byte
	err := sc.Next(&r, &data)
	if errors.Is(err, io.EOF) {
		return tableRow{}, false, nil
	}
	if err != nil {
		return tableRow{}, false, err
	}
	values, err := tuple.Decode(td, data)
	if err != nil {
		return tableRow{}, false, err
	}
	return tableRow{
		rid:      r,
		tableID:  values[0].(int32),
		fileName: values[2].(string),
	}, true, nil
}

func (s *Store) maxTableID() (int32, error) {
	td := tablesDescriptor()
	sc := rbfm.OpenScan(s.catalog, td, "", tuple.NoOp, tuple.Value{}, nil)
	defer sc.Close()

	var max int32
	for {
		var r rbfm.RID
		var data []byte
		err := sc.Next(&r, &data)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		values, err := tuple.Decode(td, data)
		if err != nil {
			return 0, err
		}
		if id := values[0].(int32); id > max {
			max = id
		}
	}
	return max, nil
}

// CreateTable registers tableName with the given attributes, creates its
// backing PFM file, and records one Tables row plus one Columns row per
// attribute (1-based column-position, in attrs order).
func (s *Store) CreateTable(tableName string, attrs []tuple.Attribute) error {
	if isReserved(tableName) {
		return ErrReserved
	}
	if _, found, err := s.scanTablesFor(tableName); err != nil {
		return err
	} else if found {
		return fmt.Errorf("%w: %s", ErrTableExists, tableName)
	}

	maxID, err := s.maxTableID()
	if err != nil {
		return err
	}
	tableID := maxID + 1
	fileName := tableName + ".tbl"

	if err := pfm.Create(tablePath(s.dir, fileName)); err != nil {
		return fmt.Errorf("rm: create table file for %s: %w", tableName, err)
	}

	td := tablesDescriptor()
	row, err := tuple.Encode(td, []any{tableID, tableName, fileName})
	if err != nil {
		return err
	}
	if _, err := rbfm.Insert(s.catalog, td, row); err != nil {
		return fmt.Errorf("rm: insert Tables row for %s: %w", tableName, err)
	}

	cd := columnsDescriptor()
	for i, a := range attrs {
		typeCode, err := columnTypeCode(a.Type)
		if err != nil {
			return err
		}
		crow, err := tuple.Encode(cd, []any{tableID, a.Name, typeCode, int32(a.MaxLength), int32(i + 1)})
		if err != nil {
			return err
		}
		if _, err := rbfm.Insert(s.columns, cd, crow); err != nil {
			return fmt.Errorf("rm: insert Columns row %s.%s: %w", tableName, a.Name, err)
		}
	}
	return nil
}

// DeleteTable removes tableName's Tables row, every matching Columns row,
// and deletes its backing file from disk.
func (s *Store) DeleteTable(tableName string) error {
	if isReserved(tableName) {
		return ErrReserved
	}
	row, found, err := s.scanTablesFor(tableName)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}

	cd := columnsDescriptor()
	sc := rbfm.OpenScan(s.columns, cd, "table-id", tuple.EQ, tuple.IntValue(row.tableID), nil)
	var toDelete []rbfm.RID
	for {
		var r rbfm.RID
		var data []byte
		nerr := sc.Next(&r, &data)
		if errors.Is(nerr, io.EOF) {
			break
		}
		if nerr != nil {
			sc.Close()
			return nerr
		}
		toDelete = append(toDelete, r)
	}
	sc.Close()
	for _, r := range toDelete {
		if err := rbfm.Delete(s.columns, r); err != nil {
			return err
		}
	}

	if err := rbfm.Delete(s.catalog, row.rid); err != nil {
		return err
	}

	if fh, ok := s.open[tableName]; ok {
		fh.Close()
		delete(s.open, tableName)
	}
	if err := pfm.Destroy(tablePath(s.dir, row.fileName)); err != nil {
		return fmt.Errorf("rm: destroy table file for %s: %w", tableName, err)
	}
	return nil
}

// GetAttributes returns tableName's attribute list in column-position order.
func (s *Store) GetAttributes(tableName string) ([]tuple.Attribute, error) {
	row, found, err := s.scanTablesFor(tableName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	return s.attributesFor(row.tableID)
}

func (s *Store) attributesFor(tableID int32) ([]tuple.Attribute, error) {
	cd := columnsDescriptor()
	sc := rbfm.OpenScan(s.columns, cd, "table-id", tuple.EQ, tuple.IntValue(tableID), nil)
	defer sc.Close()

	type positioned struct {
		pos  int32
		attr tuple.Attribute
	}
	var rows []positioned
	for {
		var r rbfm.RID
		var data []byte
		err := sc.Next(&r, &data)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		values, err := tuple.Decode(cd, data)
		if err != nil {
			return nil, err
		}
		typ, err := codeToColumnType(values[2].(int32))
		if err != nil {
			return nil, err
		}
		rows = append(rows, positioned{
			pos: values[4].(int32),
			attr: tuple.Attribute{
				Name:      values[1].(string),
				Type:      typ,
				MaxLength: uint32(values[3].(int32)),
			},
		})
	}
	for i := 1; i < len(rows); i++ {
		for j := i; j > 0 && rows[j].pos < rows[j-1].pos; j-- {
			rows[j], rows[j-1] = rows[j-1], rows[j]
		}
	}
	out := make([]tuple.Attribute, len(rows))
	for i, p := range rows {
		out[i] = p.attr
	}
	return out, nil
}

// tableHandle returns the open *pfm.FileHandle for tableName, opening it
// and caching it in s.open on first access.
func (s *Store) tableHandle(tableName string) (*pfm.FileHandle, string, error) {
	if isReserved(tableName) {
		return nil, "", ErrReserved
	}
	if fh, ok := s.open[tableName]; ok {
		return fh, tableName, nil
	}
	row, found, err := s.scanTablesFor(tableName)
	if err != nil {
		return nil, "", err
	}
	if !found {
		return nil, "", fmt.Errorf("%w: %s", ErrTableNotFound, tableName)
	}
	fh, err := pfm.Open(tablePath(s.dir, row.fileName))
	if err != nil {
		return nil, "", err
	}
	s.open[tableName] = fh
	return fh, tableName, nil
}

// InsertTuple encodes values per tableName's catalog descriptor and inserts
// the resulting record.
func (s *Store) InsertTuple(tableName string, values []any) (rbfm.RID, error) {
	fh, _, err := s.tableHandle(tableName)
	if err != nil {
		return rbfm.RID{}, err
	}
	attrs, err := s.GetAttributes(tableName)
	if err != nil {
		return rbfm.RID{}, err
	}
	data, err := tuple.Encode(attrs, values)
	if err != nil {
		return rbfm.RID{}, err
	}
	return rbfm.Insert(fh, attrs, data)
}

// ReadTuple reads and decodes the record named by rid in tableName.
func (s *Store) ReadTuple(tableName string, rid rbfm.RID) ([]any, error) {
	fh, _, err := s.tableHandle(tableName)
	if err != nil {
		return nil, err
	}
	attrs, err := s.GetAttributes(tableName)
	if err != nil {
		return nil, err
	}
	var data []byte
	if err := rbfm.Read(fh, rid, &data); err != nil {
		return nil, err
	}
	return tuple.Decode(attrs, data)
}

// DeleteTuple removes the record named by rid from tableName.
func (s *Store) DeleteTuple(tableName string, rid rbfm.RID) error {
	fh, _, err := s.tableHandle(tableName)
	if err != nil {
		return err
	}
	return rbfm.Delete(fh, rid)
}

// ScanTable opens a filtered/projected scan over tableName, returning the
// scanner plus the descriptor its results should be decoded with (the full
// table descriptor, or the projected one when proj is non-nil).
func (s *Store) ScanTable(tableName, condAttr string, op tuple.CompOp, value tuple.Value, proj []string) (*rbfm.Scanner, tuple.Descriptor, error) {
	fh, _, err := s.tableHandle(tableName)
	if err != nil {
		return nil, nil, err
	}
	attrs, err := s.GetAttributes(tableName)
	if err != nil {
		return nil, nil, err
	}
	sc := rbfm.OpenScan(fh, attrs, condAttr, op, value, proj)
	if proj == nil {
		return sc, attrs, nil
	}
	return sc, tuple.ProjectedDescriptor(attrs, proj), nil
}
