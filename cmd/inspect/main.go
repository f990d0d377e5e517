// Command inspect dumps stored messages from a badger database, for
// poking at queue contents while debugging a deployment.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/database"
	"github.com/olekukonko/tablewriter"
)

type messageRecord struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	SenderID       string     `json:"sender_id"`
	RecipientID    string     `json:"recipient_id"`
	Body           string     `json:"body"`
	Type           string     `json:"type"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

func main() {
	dbPath := flag.String("db", database.DefaultPath, "Path to badger DB")
	prefix := flag.String("prefix", "msg:", "Prefix to scan (msg:, queue:, react:)")
	flag.Parse()

	db, err := badger.Open(badger.DefaultOptions(*dbPath).
		WithReadOnly(true).
		WithLoggingLevel(badger.ERROR))
	if err != nil {
		log.Fatal("Error while opening Badger: ", err)
	}
	defer db.Close()

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Conversation", "Sender", "Recipient", "Status", "Created", "Body"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	count := 0
	err = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefixBytes := []byte(*prefix)
		for it.Seek(prefixBytes); it.ValidForPrefix(prefixBytes); it.Next() {
			item := it.Item()
			key := string(item.Key())
			err := item.Value(func(v []byte) error {
				var record messageRecord
				if err := json.Unmarshal(v, &record); err != nil {
					// Keep scanning; reaction records share no schema with
					// message records.
					fmt.Printf("skipping %s: %v\n", key, err)
					return nil
				}
				table.Append([]string{
					key,
					record.ConversationID,
					record.SenderID,
					record.RecipientID,
					colorStatus(record.Status),
					record.CreatedAt.Format(time.RFC3339),
					truncate(record.Body, 40),
				})
				count++
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
	fmt.Printf("\n%d record(s)\n", count)
}

func colorStatus(status string) string {
	switch status {
	case "read":
		return color.Green.Render(status)
	case "delivered":
		return color.Cyan.Render(status)
	case "queued":
		return color.Yellow.Render(status)
	case "failed":
		return color.Red.Render(status)
	default:
		return status
	}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
