// Command hekaton-recover inspects and replays a hekaton durable log
// without starting the admin server or accepting any transactions,
// useful after a crash to confirm the log replays cleanly before
// pointing hekatond at it.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hekaton-db/hekaton/pkg/engine"
	"github.com/hekaton-db/hekaton/pkg/mvcc"
	"github.com/hekaton-db/hekaton/pkg/wal"
)

const version = "1.0.0"

func main() {
	walPath := flag.String("wal", "./data/hekaton.wal", "Path to the durable write-ahead log file")
	verifyOnly := flag.Bool("verify-only", false, "Only replay and report; do not build the in-memory row store")
	showVersion := flag.Bool("version", false, "Show version information")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "hekaton-recover v%s\n\n", version)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("hekaton-recover v%s\n", version)
		return
	}

	fmt.Printf("╔═══════════════════════════════════════════╗\n")
	fmt.Printf("║     hekaton-recover v%-21s║\n", version)
	fmt.Printf("╚═══════════════════════════════════════════╝\n\n")

	if *verifyOnly {
		if err := runVerifyOnly(*walPath); err != nil {
			fmt.Fprintf(os.Stderr, "❌ %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := runFullRecover(*walPath); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func runVerifyOnly(path string) error {
	fmt.Printf("Verifying log at %s ...\n\n", path)

	start := time.Now()
	log, err := wal.Open(path)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer log.Close()

	records, err := log.Replay()
	if errors.Is(err, mvcc.ErrCorrupt) {
		fmt.Printf("✗ corruption detected: %v\n", err)
		return err
	}
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	versions := 0
	for _, r := range records {
		versions += len(r.Versions)
	}

	fmt.Printf("═══════════════════════════════════════════\n")
	fmt.Printf("Verification Results\n")
	fmt.Printf("═══════════════════════════════════════════\n")
	fmt.Printf("Duration:        %v\n", time.Since(start))
	fmt.Printf("Records:         %d\n", len(records))
	fmt.Printf("Versions:        %d\n", versions)
	fmt.Printf("Health:          ✓ clean\n")
	fmt.Printf("═══════════════════════════════════════════\n")
	return nil
}

func runFullRecover(path string) error {
	fmt.Printf("Replaying log at %s ...\n\n", path)

	start := time.Now()
	cfg := engine.DefaultConfig()
	cfg.WALPath = path

	e, err := engine.Open(cfg)
	if err != nil {
		return fmt.Errorf("recover: %w", err)
	}
	defer e.Close()

	fmt.Printf("═══════════════════════════════════════════\n")
	fmt.Printf("Recovery Results\n")
	fmt.Printf("═══════════════════════════════════════════\n")
	fmt.Printf("Duration:        %v\n", time.Since(start))
	fmt.Printf("Rows recovered:  %d\n", e.RowCount())
	fmt.Printf("Health:          ✓ healthy\n")
	fmt.Printf("═══════════════════════════════════════════\n\n")
	fmt.Printf("✓ Operation completed successfully\n")
	return nil
}
