// Command hekatond runs a hekaton engine as a long-lived process with
// an admin HTTP surface and a background garbage collection loop.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hekaton-db/hekaton/pkg/engine"
)

func main() {
	walPath := flag.String("wal", "./data/hekaton.wal", "Path to the durable write-ahead log file")
	auditLogPath := flag.String("audit-log", "", "Path to the audit log file (default: stdout)")
	adminHost := flag.String("admin-host", "127.0.0.1", "Admin HTTP server host")
	adminPort := flag.Int("admin-port", 9090, "Admin HTTP server port")
	noAdmin := flag.Bool("no-admin", false, "Disable the admin HTTP server")
	gcInterval := flag.Duration("gc-interval", 30*time.Second, "How often to sweep unused row versions (0 disables)")
	flag.Parse()

	cfg := engine.DefaultConfig()
	cfg.WALPath = *walPath
	cfg.AuditLogPath = *auditLogPath
	cfg.GCInterval = *gcInterval
	if !*noAdmin {
		cfg.AdminHost = *adminHost
		cfg.AdminPort = *adminPort
	}

	fmt.Printf("📁 wal: %s\n", cfg.WALPath)

	e, err := engine.Open(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ failed to open engine: %v\n", err)
		os.Exit(1)
	}

	if err := e.Run(*gcInterval); err != nil {
		fmt.Fprintf(os.Stderr, "❌ engine error: %v\n", err)
		os.Exit(1)
	}
}
