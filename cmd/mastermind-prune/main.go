package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/mastermind/pkg/infrastructure"
)

var (
	dbPath     = flag.String("db", "/var/lib/mastermind/infrastructure.db", "Path to the infrastructure database")
	keepDays   = flag.Int("keep-days", 90, "Keep automatic records younger than this many days")
	dryRun     = flag.Bool("dry-run", false, "Show what would be pruned without making changes")
	backupPath = flag.String("backup", "", "Path to backup the database before pruning (default: <db>.backup)")
)

const historyBucket = "group_history"

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Mastermind History Pruning Tool")
	log.Println("===============================")

	if _, err := os.Stat(*dbPath); os.IsNotExist(err) {
		log.Fatalf("Database not found at %s", *dbPath)
	}

	log.Printf("Database: %s", *dbPath)
	log.Printf("Keep days: %d", *keepDays)
	log.Printf("Dry run: %v", *dryRun)

	// Create backup unless in dry-run mode
	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = *dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(*dbPath, backupFile); err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Println("✓ Backup created successfully")
	}

	db, err := bolt.Open(*dbPath, 0600, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().AddDate(0, 0, -*keepDays).Unix()
	if err := pruneHistory(db, cutoff, *dryRun); err != nil {
		log.Fatalf("Pruning failed: %v", err)
	}

	if *dryRun {
		log.Println("\nDry run completed. No changes made.")
		log.Println("Run without --dry-run to prune the records.")
	} else {
		log.Println("\n✓ Pruning completed successfully!")
	}
}

// pruneHistory deletes automatic records older than cutoff. The newest
// record of every group survives regardless of age, since it carries
// the group's current node set, and detach records are always kept as
// an audit trail.
func pruneHistory(db *bolt.DB, cutoff int64, dryRun bool) error {
	var total int
	var stale [][]byte

	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		if b == nil {
			return fmt.Errorf("no %q bucket found - is this an infrastructure database?", historyBucket)
		}

		// Records are keyed by group id then sequence, so the last key
		// seen for a group is its newest record.
		newest := make(map[uint64][]byte)
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if len(k) < 16 {
				log.Printf("⚠ Warning: Skipping malformed key %x", k)
				continue
			}
			total++
			newest[binary.BigEndian.Uint64(k[:8])] = k
		}

		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) < 16 {
				continue
			}

			var rec infrastructure.Record
			if err := json.Unmarshal(v, &rec); err != nil {
				log.Printf("⚠ Warning: Skipping invalid JSON for key %x: %v", k, err)
				continue
			}

			if rec.Kind != infrastructure.KindAuto || rec.TS >= cutoff {
				continue
			}
			if bytes.Equal(k, newest[binary.BigEndian.Uint64(k[:8])]) {
				continue
			}
			stale = append(stale, append([]byte(nil), k...))
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("Found %d of %d records to prune", len(stale), total)
	if len(stale) == 0 {
		log.Println("✓ Nothing to prune")
		return nil
	}

	if dryRun {
		log.Println("\n[DRY RUN] Would perform the following operations:")
		log.Printf("1. Delete %d automatic records older than %s", len(stale), time.Unix(cutoff, 0).Format(time.RFC3339))
		log.Println("2. Keep every detach record and each group's newest record")
		return nil
	}

	pruned := 0
	err = db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(historyBucket))
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return fmt.Errorf("failed to delete record %x: %w", k, err)
			}
			pruned++
			if pruned%100 == 0 {
				log.Printf("  Pruned %d/%d...", pruned, len(stale))
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Printf("✓ Pruned %d/%d records", pruned, len(stale))
	return nil
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
