// storecli exercises the storage engine end to end: open a store file,
// build a B+Tree index, insert 20 rows, iterate them in key order,
// delete the even keys, flush, then print the buffer pool's hit-rate
// summary.
// Usage: go run ./cmd/storecli <path-to-store-file>
package main

import (
	"fmt"
	"os"

	"corestore/internal/bplustree"
	"corestore/internal/buffer"
	"corestore/internal/catalog"
	"corestore/internal/config"
	"corestore/internal/disk"
	"corestore/internal/txn"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <path-to-store-file>\n", os.Args[0])
		os.Exit(1)
	}

	cfg := config.Default(os.Args[1])

	dm, err := disk.Open(cfg.DBPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer dm.Close()

	pool := buffer.New(cfg.PoolSize, cfg.BucketSize, cfg.ReplacerK, dm)

	header, err := catalog.Load(pool)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load header: %v\n", err)
		os.Exit(1)
	}

	tree := bplustree.Open("primary", pool, header, cfg.LeafMaxSize, cfg.InternalMaxSize)

	fmt.Println("inserting rows 0..19")
	for i := int64(0); i < 20; i++ {
		if _, err := tree.Insert(i, bplustree.RID{PageID: i, SlotID: 0}); err != nil {
			fmt.Fprintf(os.Stderr, "insert %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	fmt.Println("iterating rows in key order")
	it, err := tree.Begin()
	if err != nil {
		fmt.Fprintf(os.Stderr, "begin: %v\n", err)
		os.Exit(1)
	}
	for !it.End() {
		fmt.Printf("  key=%d rid={page=%d slot=%d}\n", it.Key(), it.Value().PageID, it.Value().SlotID)
		if err := it.Next(); err != nil {
			fmt.Fprintf(os.Stderr, "next: %v\n", err)
			os.Exit(1)
		}
	}
	it.Close()

	fmt.Println("deleting even keys")
	tx := txn.New()
	for i := int64(0); i < 20; i += 2 {
		if err := tree.Delete(i, tx); err != nil {
			fmt.Fprintf(os.Stderr, "delete %d: %v\n", i, err)
			os.Exit(1)
		}
	}

	if err := pool.FlushAllPages(); err != nil {
		fmt.Fprintf(os.Stderr, "flush: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(pool.Stats())
}
