// Package learndb is an embedded, single-file relational storage
// engine: a paged B+-tree per table, a catalog tracking table schemas,
// and a pager managing the backing file. It has no SQL grammar,
// planner, or executor — callers address tables and integer keys
// directly through this API.
package learndb

import (
	"github.com/sirupsen/logrus"

	"learndb/internal/btree"
	"learndb/internal/catalog"
	"learndb/internal/dbconfig"
	"learndb/internal/dberr"
	"learndb/internal/dblog"
	"learndb/internal/pager"
	"learndb/internal/record"
)

// DB is an open database file.
type DB struct {
	pager *pager.Pager
	cat   *catalog.Catalog
	cfg   dbconfig.Config
	log   *logrus.Logger

	trees map[string]*tableHandle
}

type tableHandle struct {
	info catalog.Info
	meta *btree.Meta
	tree *btree.BTree
}

// Open opens (creating if necessary) the database file at path. configPath
// is an optional YAML file (see internal/dbconfig); an empty string uses
// defaults.
func Open(path, configPath string) (*DB, error) {
	cfg, err := dbconfig.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := dblog.New(cfg.LogLevel)

	p, err := pager.Open(path, cfg, log)
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Open(p, btree.MaxCellSize(cfg.PageSize), cfg.MinFreeBlock, cfg.CompactionThreshold, log)
	if err != nil {
		p.Close()
		return nil, err
	}

	return &DB{
		pager: p,
		cat:   cat,
		cfg:   cfg,
		log:   log,
		trees: make(map[string]*tableHandle),
	}, nil
}

// Close flushes and releases the backing file.
func (db *DB) Close() error {
	return db.pager.Close()
}

// CreateTable registers a new table with the given columns (exactly one
// must be an INTEGER PRIMARY KEY) and allocates its root page. sqlText is
// stored alongside the schema purely as caller-supplied metadata — this
// layer never parses or executes it.
func (db *DB) CreateTable(name, sqlText string, cols []record.Column) error {
	schema, err := record.NewSchema(cols)
	if err != nil {
		return err
	}
	_, err = db.cat.CreateTable(name, sqlText, schema)
	return err
}

// DropTable removes a table and reclaims every page of its tree.
func (db *DB) DropTable(name string) error {
	delete(db.trees, name)
	return db.cat.DropTable(name)
}

// Tables lists every registered table's catalog info.
func (db *DB) Tables() ([]catalog.Info, error) {
	return db.cat.List()
}

func (db *DB) table(name string) (*tableHandle, error) {
	if t, ok := db.trees[name]; ok {
		return t, nil
	}
	info, err := db.cat.Lookup(name)
	if err != nil {
		return nil, err
	}
	meta := &btree.Meta{
		Pager:               db.pager,
		Schema:              info.Schema,
		MaxCellSize:         btree.MaxCellSize(db.cfg.PageSize),
		MinFreeBlock:        db.cfg.MinFreeBlock,
		CompactionThreshold: db.cfg.CompactionThreshold,
		Log:                 db.log,
	}
	t := &tableHandle{info: info, meta: meta, tree: btree.OpenAt(meta, info.RootPage)}
	db.trees[name] = t
	return t, nil
}

// Insert adds a row to table, values in schema column order excluding
// the primary key (supplied separately as key).
func (db *DB) Insert(table string, key int32, values []record.Value) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	raw, err := record.EncodeRecord(t.info.Schema, values, t.meta.MaxCellSize)
	if err != nil {
		return err
	}
	return t.tree.Insert(key, raw)
}

// Find returns the decoded row for key, or ErrNotFound.
func (db *DB) Find(table string, key int32) ([]record.Value, error) {
	t, err := db.table(table)
	if err != nil {
		return nil, err
	}
	raw, err := t.tree.Find(key)
	if err != nil {
		return nil, err
	}
	return record.DecodeRecord(t.info.Schema, raw)
}

// Delete removes key from table, or ErrNotFound.
func (db *DB) Delete(table string, key int32) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	return t.tree.Delete(key)
}

// Cursor walks a table's rows in key order, decoding each row against
// that table's schema.
type Cursor struct {
	c      *btree.Cursor
	schema record.Schema
}

// EndOfTable reports whether the cursor has advanced past the last row.
func (c *Cursor) EndOfTable() bool { return c.c.EndOfTable() }

// Key returns the row key at the cursor's current position.
func (c *Cursor) Key() (int32, error) { return c.c.Key() }

// Values decodes the row at the cursor's current position.
func (c *Cursor) Values() ([]record.Value, error) {
	raw, err := c.c.Value()
	if err != nil {
		return nil, err
	}
	return record.DecodeRecord(c.schema, raw)
}

// Advance moves to the next row.
func (c *Cursor) Advance() error { return c.c.Advance() }

// CursorStart opens a cursor at the first row of table.
func (db *DB) CursorStart(table string) (*Cursor, error) {
	t, err := db.table(table)
	if err != nil {
		return nil, err
	}
	bc, err := t.tree.CursorAtStart()
	if err != nil {
		return nil, err
	}
	return &Cursor{c: bc, schema: t.info.Schema}, nil
}

// Validate runs the B+-tree invariant walk over a single table.
func (db *DB) Validate(table string) error {
	t, err := db.table(table)
	if err != nil {
		return err
	}
	return t.tree.Validate()
}

// ValidateAll runs Validate on the catalog and every registered table,
// then checks invariant 7: the on-disk free-page list and every live
// tree's pages are disjoint and together cover the whole file.
func (db *DB) ValidateAll() error {
	if err := db.cat.Validate(); err != nil {
		return err
	}
	infos, err := db.cat.List()
	if err != nil {
		return err
	}

	live := map[uint32]bool{0: true}
	catPages, err := db.cat.LivePages()
	if err != nil {
		return err
	}
	for pg := range catPages {
		live[pg] = true
	}

	for _, info := range infos {
		t, err := db.table(info.Name)
		if err != nil {
			return err
		}
		if err := t.tree.Validate(); err != nil {
			return err
		}
		pages, err := btree.CollectLivePages(t.meta, info.RootPage)
		if err != nil {
			return err
		}
		for pg := range pages {
			live[pg] = true
		}
	}

	return db.checkFreeListDisjoint(live)
}

func (db *DB) checkFreeListDisjoint(live map[uint32]bool) error {
	free, err := db.pager.FreePages()
	if err != nil {
		return err
	}
	freeSet := make(map[uint32]bool, len(free))
	for _, pg := range free {
		if live[pg] {
			return dberr.Invariant("page is both live and on the free-page list")
		}
		freeSet[pg] = true
	}
	for pg := uint32(0); pg < db.pager.NumPages(); pg++ {
		if !live[pg] && !freeSet[pg] {
			return dberr.Invariant("page is neither live nor on the free-page list")
		}
	}
	return nil
}
