package main

import (
	"chat-room/repositories"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/kelseyhightower/envconfig"
	"github.com/olekukonko/tablewriter"
)

type Config struct {
	BadgerFilepath string `envconfig:"BADGER_FILEPATH" default:"./data/chat"`
	Colours        bool   `envconfig:"INSPECT_COLOURS" default:"true"`
}

func main() {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		log.Fatalf("Config error: %v", err)
	}
	dbPath := flag.String("db", config.BadgerFilepath, "Path to badger DB")
	prefix := flag.String("prefix", "", "Prefix to scan, e.g. participant: or msg:")
	withIndex := flag.Bool("index", false, "Also show secondary index keys")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	entries, err := repositories.ScanEntries(context.Background(), db, *prefix)
	if err != nil {
		log.Fatal(err)
	}
	render(os.Stdout, entries, *withIndex, config.Colours)
}

func render(w io.Writer, entries []repositories.Entry, withIndex, colours bool) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Key", "Kind", "Time", "Detail"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	for _, entry := range entries {
		if entry.Kind == repositories.EntryIndex && !withIndex {
			continue
		}
		kind := entry.Kind
		if colours {
			kind = kindStyle(entry.Kind).Render(kind)
		}
		table.Append([]string{entry.Key, kind, entry.Time, entry.Detail})
	}
	table.Render()
}

func kindStyle(kind string) color.Style {
	switch kind {
	case repositories.EntryParticipant:
		return color.New(color.FgGreen)
	case repositories.EntryMessage:
		return color.New(color.FgCyan)
	case repositories.EntryIndex:
		return color.New(color.FgGray)
	default:
		return color.New(color.FgYellow)
	}
}

// openDB opens the store read-only, next to a running server.
func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil && strings.Contains(err.Error(), "Log truncate required") {
		return nil, fmt.Errorf("store needs recovery, restart the server once before inspecting: %w", err)
	}
	return db, err
}
