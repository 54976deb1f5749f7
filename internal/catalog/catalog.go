// Package catalog implements the database's own bootstrap table: a
// tree rooted at the fixed page 1, one row per user table, that every
// other table's schema and root page are discovered through.
package catalog

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"learndb/internal/btree"
	"learndb/internal/dberr"
	"learndb/internal/pager"
	"learndb/internal/record"
)

// Info describes one row of the catalog: a user table's name, the root
// page of its tree, and its schema.
type Info struct {
	Pkey     int32
	Name     string
	RootPage uint32
	SQLText  string
	Schema   record.Schema
}

// Catalog wraps the fixed-root-page-1 tree holding every user table's
// bookkeeping row.
type Catalog struct {
	pager    *pager.Pager
	meta     *btree.Meta
	tree     *btree.BTree
	nextPkey int32
}

func schemaColumns() []record.Column {
	return []record.Column{
		{Name: "pkey", Type: record.TypeInteger, IsPrimary: true, NotNull: true},
		{Name: "name", Type: record.TypeText, NotNull: true},
		{Name: "root_page", Type: record.TypeInteger, NotNull: true},
		{Name: "sql_text", Type: record.TypeText},
		{Name: "schema_blob", Type: record.TypeText, NotNull: true},
	}
}

// Open loads (or, on a brand-new file, formats) the catalog tree at
// pager.CatalogRootPage and resumes pkey numbering from the highest row
// seen.
func Open(p *pager.Pager, maxCellSize int, minFreeBlock uint32, compactionThreshold float64, log *logrus.Logger) (*Catalog, error) {
	schema, err := record.NewSchema(schemaColumns())
	if err != nil {
		return nil, err
	}
	meta := &btree.Meta{
		Pager:               p,
		Schema:              schema,
		MaxCellSize:         maxCellSize,
		MinFreeBlock:        minFreeBlock,
		CompactionThreshold: compactionThreshold,
		Log:                 log,
	}

	root := pager.CatalogRootPage
	page, err := p.GetPage(root)
	if err != nil {
		return nil, err
	}

	var tree *btree.BTree
	if page.Data[0] == 0 {
		tree, err = btree.CreateAt(meta, root)
		if err != nil {
			return nil, err
		}
		log.Debug("catalog: formatted empty catalog root")
	} else {
		tree = btree.OpenAt(meta, root)
	}

	c := &Catalog{pager: p, meta: meta, tree: tree}
	if err := c.resumePkeyNumbering(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) resumePkeyNumbering() error {
	cur, err := c.tree.CursorAtStart()
	if err != nil {
		return err
	}
	max := int32(0)
	for !cur.EndOfTable() {
		k, err := cur.Key()
		if err != nil {
			return err
		}
		if k > max {
			max = k
		}
		if err := cur.Advance(); err != nil {
			return err
		}
	}
	c.nextPkey = max + 1
	return nil
}

func (c *Catalog) decodeRow(raw []byte) (Info, error) {
	values, err := record.DecodeRecord(c.meta.Schema, raw)
	if err != nil {
		return Info{}, err
	}
	name, _ := values[0].(string)
	rootPage, _ := values[1].(int32)
	sqlText, _ := values[2].(string)
	blob, _ := values[3].(string)
	schema, err := decodeSchema(blob)
	if err != nil {
		return Info{}, err
	}
	return Info{Name: name, RootPage: uint32(rootPage), SQLText: sqlText, Schema: schema}, nil
}

// Lookup finds a table by name, or ErrNotFound.
func (c *Catalog) Lookup(name string) (Info, error) {
	cur, err := c.tree.CursorAtStart()
	if err != nil {
		return Info{}, err
	}
	for !cur.EndOfTable() {
		raw, err := cur.Value()
		if err != nil {
			return Info{}, err
		}
		info, err := c.decodeRow(raw)
		if err != nil {
			return Info{}, err
		}
		if info.Name == name {
			k, err := cur.Key()
			if err != nil {
				return Info{}, err
			}
			info.Pkey = k
			return info, nil
		}
		if err := cur.Advance(); err != nil {
			return Info{}, err
		}
	}
	return Info{}, dberr.ErrNotFound
}

// List returns every table currently registered.
func (c *Catalog) List() ([]Info, error) {
	cur, err := c.tree.CursorAtStart()
	if err != nil {
		return nil, err
	}
	var out []Info
	for !cur.EndOfTable() {
		raw, err := cur.Value()
		if err != nil {
			return nil, err
		}
		info, err := c.decodeRow(raw)
		if err != nil {
			return nil, err
		}
		k, err := cur.Key()
		if err != nil {
			return nil, err
		}
		info.Pkey = k
		out = append(out, info)
		if err := cur.Advance(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CreateTable allocates a fresh root page for a new table, registers it
// in the catalog, and returns the assigned root page.
func (c *Catalog) CreateTable(name, sqlText string, schema record.Schema) (uint32, error) {
	if _, err := c.Lookup(name); err == nil {
		return 0, dberr.ErrDuplicateKey
	} else if !dberr.Is(err, dberr.ErrNotFound) {
		return 0, err
	}

	rootPage, err := c.pager.AllocatePage()
	if err != nil {
		return 0, err
	}
	if err := btree.FormatNewRoot(c.pager, rootPage); err != nil {
		return 0, err
	}

	values := []record.Value{name, int32(rootPage), sqlText, encodeSchema(schema)}
	raw, err := record.EncodeRecord(c.meta.Schema, values, c.meta.MaxCellSize)
	if err != nil {
		return 0, err
	}

	pkey := c.nextPkey
	if err := c.tree.Insert(pkey, raw); err != nil {
		return 0, err
	}
	c.nextPkey++

	c.meta.Log.WithFields(map[string]interface{}{"table": name, "root_page": rootPage}).Info("catalog: table created")
	return rootPage, nil
}

// DropTable removes name's row and returns every page of its tree to
// the pager.
func (c *Catalog) DropTable(name string) error {
	info, err := c.Lookup(name)
	if err != nil {
		return err
	}

	tableMeta := &btree.Meta{
		Pager: c.pager, Schema: info.Schema,
		MaxCellSize: c.meta.MaxCellSize, MinFreeBlock: c.meta.MinFreeBlock,
		CompactionThreshold: c.meta.CompactionThreshold, Log: c.meta.Log,
	}
	pages, err := btree.CollectLivePages(tableMeta, info.RootPage)
	if err != nil {
		return err
	}
	for pg := range pages {
		if err := c.pager.ReturnPage(pg); err != nil {
			return err
		}
	}

	if err := c.tree.Delete(info.Pkey); err != nil {
		return err
	}

	c.meta.Log.WithField("table", name).Info("catalog: table dropped")
	return nil
}

// Validate runs the tree-level invariant walk over the catalog's own
// tree.
func (c *Catalog) Validate() error {
	return c.tree.Validate()
}

// LivePages returns every page belonging to the catalog's own tree.
func (c *Catalog) LivePages() (map[uint32]bool, error) {
	return btree.CollectLivePages(c.meta, pager.CatalogRootPage)
}

// encodeSchema packs a schema into the catalog's schema_blob column as
// "name:type:pk:nn|name:type:pk:nn|...".
func encodeSchema(s record.Schema) string {
	parts := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		parts[i] = strings.Join([]string{
			col.Name,
			strconv.Itoa(int(col.Type)),
			boolDigit(col.IsPrimary),
			boolDigit(col.NotNull),
		}, ":")
	}
	return strings.Join(parts, "|")
}

func decodeSchema(blob string) (record.Schema, error) {
	parts := strings.Split(blob, "|")
	cols := make([]record.Column, len(parts))
	for i, p := range parts {
		fields := strings.Split(p, ":")
		if len(fields) != 4 {
			return record.Schema{}, dberr.Corrupt("malformed schema_blob entry")
		}
		typeCode, err := strconv.Atoi(fields[1])
		if err != nil {
			return record.Schema{}, dberr.Corrupt("malformed schema_blob type code")
		}
		cols[i] = record.Column{
			Name:      fields[0],
			Type:      record.DataType(typeCode),
			IsPrimary: fields[2] == "1",
			NotNull:   fields[3] == "1",
		}
	}
	return record.NewSchema(cols)
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
