package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"pulse-chat/domain"
	"pulse-chat/repositories"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/olekukonko/tablewriter"
)

func main() {
	dbPath := flag.String("db", "./data", "Path to badger DB")
	conversation := flag.String("conversation", "", "Only show keys containing this conversation key (room:<id> or dm:<a>:<b>)")
	flag.Parse()

	db, err := openDB(*dbPath)
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Kind", "Timestamp", "Message ID", "From", "To", "Status", "Content"})
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

	repository := repositories.NewMessageRepository(db, logs.GetLoggerFromLevel(slog.LevelWarn), nil)
	err = repository.Scan(context.Background(), func(key string, m domain.Message) error {
		if *conversation != "" && !strings.Contains(key, *conversation) {
			return nil
		}
		to := m.ReceiverID
		if m.RoomID != "" {
			to = "#" + string(m.RoomID)
		}
		displayID := m.ID.String()[:8]
		table.Append([]string{
			key,
			string(m.Kind),
			m.CreatedAt.Format("15:04:05"),
			displayID,
			m.SenderID,
			to,
			m.Status.String(),
			m.Content,
		})
		return nil
	})
	if err != nil {
		log.Fatal(err)
	}

	table.Render()
}

func openDB(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).
		WithReadOnly(true).
		WithLogger(nil).
		WithBypassLockGuard(true)

	db, err := badger.Open(opts)
	if err != nil {
		if strings.Contains(err.Error(), "Log truncate required") {
			fmt.Println("Value log needs truncation, reopening in write mode once")
			repaired, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil).WithBypassLockGuard(true))
			if err != nil {
				return nil, fmt.Errorf("repair failed: %w", err)
			}
			_ = repaired.Close()
			return badger.Open(opts)
		}
		return nil, err
	}
	return db, nil
}
