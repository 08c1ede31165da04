package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/untoldecay/gram/internal/audit"
	"github.com/untoldecay/gram/internal/config"
	"github.com/untoldecay/gram/internal/db"
	"github.com/untoldecay/gram/internal/kvstore"
)

// commandContext groups the runtime state every subcommand needs instead
// of scattering it across package globals.
type commandContext struct {
	DB       *db.DB
	Audit    *audit.Log
	Actor    string
	JSON     bool
	dbPath   string
	auditDir string
}

var cmdCtx *commandContext

// openContext resolves --db/--actor (falling back to config/GRAM_* env) and
// opens the storage engine plus the mutation log.
func openContext(cmd *cobra.Command) error {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		dbPath = config.GetString("db")
	}
	if dbPath == "" {
		dbPath = ".gram/log"
	}
	actorFlag, _ := cmd.Flags().GetString("actor")
	actor := config.GetIdentity(actorFlag)
	jsonOut, _ := cmd.Flags().GetBool("json")

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}
	medium, err := kvstore.OpenFileMedium(dbPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	store, err := db.Open(medium)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}

	auditDir := dbPath + ".audit"
	auditLog, err := audit.Open(auditDir, actor)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	store.WithAudit(auditLog)

	cmdCtx = &commandContext{DB: store, Audit: auditLog, Actor: actor, JSON: jsonOut, dbPath: dbPath, auditDir: auditDir}
	return nil
}

func closeContext() {
	if cmdCtx == nil {
		return
	}
	if cmdCtx.Audit != nil {
		_ = cmdCtx.Audit.Close()
	}
	if cmdCtx.DB != nil {
		_ = cmdCtx.DB.Close()
	}
}
