package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"public-feed/proto/feedpb"

	"github.com/dgraph-io/badger/v4"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/pflag"
)

// Dumps the messages of a Badger feed, oldest first. The server must be stopped
// or the directory copied, the database is opened read-only.
func main() {
	dbPath := pflag.String("db", "./data/feed", "Path to badger DB")
	prefix := pflag.String("prefix", "msg:", "Prefix to scan")
	width := pflag.Int("width", 40, "Body column width")
	pflag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Seq", "ID", "Created at", "Author", "Body", "Media", "Token"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			err := item.Value(func(v []byte) error {
				var stored feedpb.StoredMessage
				if err := stored.UnmarshalWire(v); err != nil || stored.Message == nil {
					fmt.Printf("Error decoding key %s: %v\n", string(item.Key()), err)
					return nil
				}
				table.Append(row(string(item.Key()), &stored, *width))
				rows++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
	fmt.Printf("\n%d messages\n", rows)
}

func row(key string, stored *feedpb.StoredMessage, width int) []string {
	m := stored.Message.ToDomain()
	mediaInfo := "-"
	if m.Media != nil {
		mediaInfo = fmt.Sprintf("%s (%d/%d bytes)", m.Media.Locator, m.Media.Size, m.Media.OriginalSize)
	}
	return []string{
		key,
		strconv.FormatUint(stored.Sequence, 10),
		short(m.ID, 8),
		m.CreatedAt.Format(time.RFC3339Nano),
		m.Author,
		short(strings.ReplaceAll(m.Body, "\n", " "), width),
		mediaInfo,
		short(stored.Token, 8),
	}
}

func short(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)
	return badger.Open(opts)
}
