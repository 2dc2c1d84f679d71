// Command rbfmctl is a thin command-line front end over internal/rm and
// internal/rbfm: it creates/opens a data directory, creates tables, and
// inserts/scans/deletes records. It is glue for exercising the
// library end to end, not a SQL shell — there is no parser and no session
// loop, matching tinySQL's own preference for small single-purpose `cmd/*`
// binaries built on the standard `flag` package rather than a CLI
// framework.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pagedb/rbfm/internal/config"
	"github.com/pagedb/rbfm/internal/display"
	"github.com/pagedb/rbfm/internal/idgen"
	"github.com/pagedb/rbfm/internal/rbfm"
	"github.com/pagedb/rbfm/internal/rm"
	"github.com/pagedb/rbfm/internal/tuple"
)

func usage() {
	fmt.Fprintf(os.Stderr, "rbfmctl — exercise the paged record-based file manager\n\n")
	fmt.Fprintf(os.Stderr, "Usage:\n")
	fmt.Fprintf(os.Stderr, "  %s init <dir>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s create-table <dir> <table> <attr:type[:len]>...\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s insert <dir> <table> <value>...\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s scan <dir> <table> [where <attr> <op> <value>] [select <a,b,c>]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  %s delete <dir> <table> <page>.<slot>\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\ntypes for create-table: int, float, varchar:<maxlen>\n")
}

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (defaults applied for anything it omits)")
	flag.Usage = usage
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("%v", err)
		}
		cfg = loaded
	}

	corrID := idgen.NewCorrelationID()
	log.SetPrefix(fmt.Sprintf("[rbfmctl %s] ", corrID[:8]))
	if cfg.LogLevel == "debug" {
		log.Printf("config: data_dir=%s scan_batch_size=%d sync=%s", cfg.DataDir, cfg.ScanBatchSize, cfg.Sync)
	}

	rest := flag.Args()
	if len(rest) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, dir := rest[0], rest[1]
	args := rest[2:]

	var err error
	switch cmd {
	case "init":
		err = runInit(dir)
	case "create-table":
		err = runCreateTable(dir, args)
	case "insert":
		err = runInsert(dir, args)
	case "scan":
		err = runScan(dir, args, cfg)
	case "delete":
		err = runDelete(dir, args)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
}

func runInit(dir string) error {
	store, err := rm.Init(dir)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer store.Close()
	fmt.Printf("initialized data directory %s\n", dir)
	return nil
}

// parseAttrSpec parses "name:type" or "name:type:maxlen" into a
// tuple.Attribute.
func parseAttrSpec(spec string) (tuple.Attribute, error) {
	parts := strings.Split(spec, ":")
	if len(parts) < 2 {
		return tuple.Attribute{}, fmt.Errorf("bad attribute spec %q, want name:type[:len]", spec)
	}
	attr := tuple.Attribute{Name: parts[0]}
	switch strings.ToLower(parts[1]) {
	case "int":
		attr.Type = tuple.TypeInt
	case "float":
		attr.Type = tuple.TypeFloat
	case "varchar":
		attr.Type = tuple.TypeVarChar
		if len(parts) >= 3 {
			n, err := strconv.Atoi(parts[2])
			if err != nil {
				return tuple.Attribute{}, fmt.Errorf("bad varchar length in %q: %w", spec, err)
			}
			attr.MaxLength = uint32(n)
		}
	default:
		return tuple.Attribute{}, fmt.Errorf("unknown type %q in %q", parts[1], spec)
	}
	return attr, nil
}

func runCreateTable(dir string, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("create-table: need a table name and at least one attribute")
	}
	store, err := rm.Open(dir)
	if err != nil {
		return fmt.Errorf("create-table: %w", err)
	}
	defer store.Close()

	tableName := args[0]
	attrs := make([]tuple.Attribute, 0, len(args)-1)
	for _, spec := range args[1:] {
		attr, err := parseAttrSpec(spec)
		if err != nil {
			return fmt.Errorf("create-table: %w", err)
		}
		attrs = append(attrs, attr)
	}
	if err := store.CreateTable(tableName, attrs); err != nil {
		return fmt.Errorf("create-table: %w", err)
	}
	fmt.Printf("created table %s with %d attribute(s)\n", tableName, len(attrs))
	return nil
}

// parseLiteral converts a CLI value token to a Go value matching the
// attribute's type; "NULL" (any case) always means a null field.
func parseLiteral(a tuple.Attribute, token string) (any, error) {
	if strings.EqualFold(token, "NULL") {
		return nil, nil
	}
	switch a.Type {
	case tuple.TypeInt:
		n, err := strconv.ParseInt(token, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		return int32(n), nil
	case tuple.TypeFloat:
		f, err := strconv.ParseFloat(token, 32)
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", a.Name, err)
		}
		return float32(f), nil
	case tuple.TypeVarChar:
		return token, nil
	default:
		return nil, tuple.ErrUnknownType
	}
}

func runInsert(dir string, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("insert: need a table name")
	}
	store, err := rm.Open(dir)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	defer store.Close()

	tableName := args[0]
	attrs, err := store.GetAttributes(tableName)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	if len(args)-1 != len(attrs) {
		return fmt.Errorf("insert: table %s has %d attributes, got %d values", tableName, len(attrs), len(args)-1)
	}
	values := make([]any, len(attrs))
	for i, a := range attrs {
		v, err := parseLiteral(a, args[i+1])
		if err != nil {
			return fmt.Errorf("insert: %w", err)
		}
		values[i] = v
	}
	r, err := store.InsertTuple(tableName, values)
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}
	fmt.Printf("inserted %s\n", r.String())
	return nil
}

func parseCompOp(s string) (tuple.CompOp, error) {
	switch s {
	case "=":
		return tuple.EQ, nil
	case "!=":
		return tuple.NE, nil
	case "<":
		return tuple.LT, nil
	case "<=":
		return tuple.LE, nil
	case ">":
		return tuple.GT, nil
	case ">=":
		return tuple.GE, nil
	default:
		return tuple.NoOp, fmt.Errorf("unknown operator %q", s)
	}
}

func runScan(dir string, args []string, cfg config.Config) error {
	if len(args) < 1 {
		return fmt.Errorf("scan: need a table name")
	}
	store, err := rm.Open(dir)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer store.Close()

	tableName := args[0]
	attrs, err := store.GetAttributes(tableName)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	condAttr := ""
	op := tuple.NoOp
	var value tuple.Value
	var proj []string

	rest := args[1:]
	for len(rest) > 0 {
		switch rest[0] {
		case "where":
			if len(rest) < 4 {
				return fmt.Errorf("scan: where needs <attr> <op> <value>")
			}
			condAttr = rest[1]
			op, err = parseCompOp(rest[2])
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			idx := attrsIndexOf(attrs, condAttr)
			if idx < 0 {
				return fmt.Errorf("scan: unknown attribute %q", condAttr)
			}
			v, err := parseLiteral(attrs[idx], rest[3])
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			value, err = literalToValue(attrs[idx], v)
			if err != nil {
				return fmt.Errorf("scan: %w", err)
			}
			rest = rest[4:]
		case "select":
			if len(rest) < 2 {
				return fmt.Errorf("scan: select needs a comma-separated column list")
			}
			proj = strings.Split(rest[1], ",")
			rest = rest[2:]
		default:
			return fmt.Errorf("scan: unexpected argument %q", rest[0])
		}
	}

	sc, desc, err := store.ScanTable(tableName, condAttr, op, value, proj)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer sc.Close()

	cols := make([]string, len(desc))
	for i, a := range desc {
		cols[i] = a.Name
	}

	var rows [][]string
	truncated := false
	for len(rows) < cfg.ScanBatchSize {
		var rid rbfm.RID
		var data []byte
		nerr := sc.Next(&rid, &data)
		if nerr != nil {
			break
		}
		values, derr := tuple.Decode(desc, data)
		if derr != nil {
			return fmt.Errorf("scan: %w", derr)
		}
		cells := make([]string, len(values))
		for i, v := range values {
			cells[i] = display.Cell(v)
		}
		rows = append(rows, cells)
	}
	if len(rows) == cfg.ScanBatchSize {
		var probeRID rbfm.RID
		var probeData []byte
		if sc.Next(&probeRID, &probeData) == nil {
			truncated = true
		}
	}
	display.Table(os.Stdout, cols, rows)
	if truncated {
		fmt.Fprintf(os.Stderr, "scan: output truncated at scan_batch_size=%d\n", cfg.ScanBatchSize)
	}
	return nil
}

func attrsIndexOf(attrs []tuple.Attribute, name string) int {
	for i, a := range attrs {
		if a.Name == name {
			return i
		}
	}
	return -1
}

func literalToValue(a tuple.Attribute, v any) (tuple.Value, error) {
	switch a.Type {
	case tuple.TypeInt:
		return tuple.IntValue(v.(int32)), nil
	case tuple.TypeFloat:
		return tuple.FloatValue(v.(float32)), nil
	case tuple.TypeVarChar:
		return tuple.VarCharValue(v.(string)), nil
	default:
		return tuple.Value{}, tuple.ErrUnknownType
	}
}

func runDelete(dir string, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("delete: need a table name and a page.slot RID")
	}
	store, err := rm.Open(dir)
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	defer store.Close()

	r, err := parseRID(args[1])
	if err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := store.DeleteTuple(args[0], r); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	fmt.Printf("deleted %s\n", r.String())
	return nil
}

func parseRID(s string) (rbfm.RID, error) {
	parts := strings.SplitN(s, ".", 2)
	if len(parts) != 2 {
		return rbfm.RID{}, fmt.Errorf("bad RID %q, want page.slot", s)
	}
	page, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return rbfm.RID{}, fmt.Errorf("bad page in RID %q: %w", s, err)
	}
	slot, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return rbfm.RID{}, fmt.Errorf("bad slot in RID %q: %w", s, err)
	}
	return rbfm.RID{PageNum: uint32(page), SlotNum: uint16(slot)}, nil
}
