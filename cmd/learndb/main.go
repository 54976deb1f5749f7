// Command learndb is a line-oriented demo shell over the storage
// engine: it exercises the package API directly (create/insert/find/
// delete/scan/validate) and is deliberately not a SQL front end — no
// grammar, planner, or expression evaluator.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"learndb"
	"learndb/internal/record"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: learndb <db-file> [config.yaml]")
		os.Exit(1)
	}
	configPath := ""
	if len(os.Args) >= 3 {
		configPath = os.Args[2]
	}

	db, err := learndb.Open(os.Args[1], configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	rl, err := readline.New("learndb> ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "readline:", err)
		os.Exit(1)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			continue
		}
		if err == io.EOF {
			return
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ".exit" {
			return
		}
		if err := dispatch(db, line); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func dispatch(db *learndb.DB, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "create":
		return cmdCreate(db, fields[1:])
	case "insert":
		return cmdInsert(db, fields[1:])
	case "find":
		return cmdFind(db, fields[1:])
	case "delete":
		return cmdDelete(db, fields[1:])
	case "scan":
		return cmdScan(db, fields[1:])
	case ".validate":
		return cmdValidate(db, fields[1:])
	case ".tables":
		return cmdTables(db)
	default:
		return fmt.Errorf("unrecognized command %q", fields[0])
	}
}

// cmdCreate parses `create <table> <col:type>...`, where exactly one
// column marks the integer primary key, written either `<name>:id` or
// with a trailing `!` on its type (`<name>:int!`).
func cmdCreate(db *learndb.DB, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: create <table> <col:type>...")
	}
	table := args[0]
	cols := make([]record.Column, 0, len(args)-1)
	for _, spec := range args[1:] {
		parts := strings.SplitN(spec, ":", 2)
		if len(parts) != 2 {
			return fmt.Errorf("bad column spec %q, want name:type", spec)
		}
		col, err := parseColumn(parts[0], parts[1])
		if err != nil {
			return err
		}
		cols = append(cols, col)
	}
	if err := db.CreateTable(table, line(table, args[1:]), cols); err != nil {
		return err
	}
	fmt.Printf("table %s created\n", table)
	return nil
}

func line(table string, colSpecs []string) string {
	return fmt.Sprintf("create table %s (%s)", table, strings.Join(colSpecs, ", "))
}

func parseColumn(name, typeSpec string) (record.Column, error) {
	pk := strings.HasSuffix(typeSpec, "!")
	typeSpec = strings.TrimSuffix(typeSpec, "!")
	var t record.DataType
	switch typeSpec {
	case "id":
		t, pk = record.TypeInteger, true
	case "int":
		t = record.TypeInteger
	case "real":
		t = record.TypeReal
	case "bool":
		t = record.TypeBool
	case "text":
		t = record.TypeText
	default:
		return record.Column{}, fmt.Errorf("unknown column type %q", typeSpec)
	}
	return record.Column{Name: name, Type: t, IsPrimary: pk, NotNull: pk}, nil
}

func cmdInsert(db *learndb.DB, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: insert <table> <key> <value>...")
	}
	table := args[0]
	key, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("bad key %q: %w", args[1], err)
	}
	values := make([]record.Value, 0, len(args)-2)
	for _, v := range args[2:] {
		values = append(values, parseValue(v))
	}
	return db.Insert(table, int32(key), values)
}

// parseValue guesses a column value's type from its textual form: an
// "null" for NULL, an unquoted integer, "true"/"false", or else a string. The shell has no
// schema-aware parser, so this is best-effort only.
func parseValue(s string) record.Value {
	if s == "null" {
		return nil
	}
	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return int32(n)
	}
	return s
}

func cmdFind(db *learndb.DB, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: find <table> <key>")
	}
	key, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("bad key %q: %w", args[1], err)
	}
	values, err := db.Find(args[0], int32(key))
	if err != nil {
		return err
	}
	fmt.Println(values)
	return nil
}

func cmdDelete(db *learndb.DB, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: delete <table> <key>")
	}
	key, err := strconv.ParseInt(args[1], 10, 32)
	if err != nil {
		return fmt.Errorf("bad key %q: %w", args[1], err)
	}
	return db.Delete(args[0], int32(key))
}

func cmdScan(db *learndb.DB, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: scan <table>")
	}
	cur, err := db.CursorStart(args[0])
	if err != nil {
		return err
	}
	for !cur.EndOfTable() {
		key, err := cur.Key()
		if err != nil {
			return err
		}
		values, err := cur.Values()
		if err != nil {
			return err
		}
		fmt.Printf("%d: %v\n", key, values)
		if err := cur.Advance(); err != nil {
			return err
		}
	}
	return nil
}

func cmdValidate(db *learndb.DB, args []string) error {
	if len(args) == 0 {
		if err := db.ValidateAll(); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	}
	if err := db.Validate(args[0]); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func cmdTables(db *learndb.DB) error {
	infos, err := db.Tables()
	if err != nil {
		return err
	}
	for _, info := range infos {
		fmt.Printf("%s (root page %d)\n", info.Name, info.RootPage)
	}
	return nil
}
