// Command inspect dumps the relay's message log from a badger directory.
// It opens the store read-only so it can run next to a live relay.
package main

import (
	"dm-relay/repositories"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

const previewLength = 40

func main() {
	dbPath := flag.String("db", "./data/badger", "Path to badger DB")
	userA := flag.String("a", "", "First participant of the conversation to show")
	userB := flag.String("b", "", "Second participant of the conversation to show")
	colours := flag.Bool("colours", true, "Colorize section headers")
	flag.Parse()

	if (*userA == "") != (*userB == "") {
		log.Fatal("-a and -b must be given together")
	}

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	if err := inspect(db, *userA, *userB, *colours, os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func inspect(db *badger.DB, userA, userB string, colours bool, out io.Writer) error {
	messages := newTable(out, "Seq", "At", "Sender", "Receiver", "Read", "ID", "Content")
	unread := make(map[string]int)
	total := 0

	err := repositories.ScanMessages(db, userA, userB, func(_ string, m repositories.DiskMessage) error {
		total++
		if !m.Read {
			unread[m.Receiver]++
		}
		messages.Append([]string{
			strconv.FormatUint(m.Seq, 10),
			m.At.Format("2006-01-02 15:04:05"),
			m.Sender,
			m.Receiver,
			strconv.FormatBool(m.Read),
			m.ID.String()[:8],
			preview(m.Content),
		})
		return nil
	})
	if err != nil {
		return err
	}

	header(out, fmt.Sprintf("messages (%d)", total), colours)
	messages.Render()

	receivers := make([]string, 0, len(unread))
	for receiver := range unread {
		receivers = append(receivers, receiver)
	}
	sort.Strings(receivers)

	counts := newTable(out, "Receiver", "Unread")
	for _, receiver := range receivers {
		counts.Append([]string{receiver, strconv.Itoa(unread[receiver])})
	}
	header(out, "unread per receiver", colours)
	counts.Render()
	return nil
}

func header(out io.Writer, title string, colours bool) {
	title = fmt.Sprintf("  ====== %s ======", title)
	if colours {
		title = color.New(color.BgBlack, color.FgGreen).Render(title)
	}
	fmt.Fprintln(out, title)
}

func newTable(out io.Writer, columns ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(out)
	table.SetHeader(columns)
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
	return table
}

func preview(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	runes := []rune(content)
	if len(runes) > previewLength {
		return string(runes[:previewLength]) + "..."
	}
	return content
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		// A crashed relay may leave a value log that needs truncating first
		if strings.Contains(err.Error(), "Log truncate required") {
			repairOpts := badger.DefaultOptions(path).
				WithLogger(nil).
				WithBypassLockGuard(true)

			db, err = badger.Open(repairOpts)
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = db.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
