package main

import (
	"fmt"
	"os"

	"concierge/internal/config"
	"concierge/internal/store"
	"concierge/internal/vault"
)

func runVault(args []string) error {
	if len(args) == 0 {
		printVaultUsage()
		return nil
	}

	passphrase := os.Getenv("CONCIERGE_VAULT_PASSPHRASE")
	if passphrase == "" {
		return fmt.Errorf("CONCIERGE_VAULT_PASSPHRASE environment variable is required")
	}

	v := vault.New(passphrase)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	switch args[0] {
	case "list":
		return vaultList(db)
	case "set":
		return vaultSet(db, v, args[1:])
	case "get":
		return vaultGet(db, v, args[1:])
	case "delete":
		return vaultDelete(db, args[1:])
	default:
		printVaultUsage()
		return fmt.Errorf("unknown vault command: %s", args[0])
	}
}

func printVaultUsage() {
	fmt.Fprintf(os.Stderr, `Usage: concierge vault <command>

Commands:
  list                        List stored secret IDs
  set <id> --value <str>      Store a string secret
  set <id> --file <path>      Store a file secret
  get <id>                    Retrieve and decrypt a secret
  delete <id>                 Delete a secret

Environment:
  CONCIERGE_VAULT_PASSPHRASE  Required. Encryption passphrase.
`)
}

func vaultList(db *store.Store) error {
	ids, err := db.ListSecretIDs()
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No secrets stored.")
		return nil
	}
	for _, id := range ids {
		fmt.Println(id)
	}
	return nil
}

func vaultSet(db *store.Store, v *vault.Vault, args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: concierge vault set <id> --value <string> | --file <path>")
	}

	id := args[0]
	var value []byte

	switch args[1] {
	case "--value":
		value = []byte(args[2])
	case "--file":
		data, err := os.ReadFile(args[2])
		if err != nil {
			return fmt.Errorf("read file: %w", err)
		}
		value = data
	default:
		return fmt.Errorf("expected --value or --file, got %s", args[1])
	}

	sealed, err := v.Seal(value)
	if err != nil {
		return fmt.Errorf("seal: %w", err)
	}

	if err := db.SaveSecret(id, sealed); err != nil {
		return err
	}
	fmt.Printf("Secret %q saved\n", id)
	return nil
}

func vaultGet(db *store.Store, v *vault.Vault, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: concierge vault get <id>")
	}

	sealed, err := db.GetSecret(args[0])
	if err != nil {
		return err
	}
	if sealed == nil {
		return fmt.Errorf("secret %q not found", args[0])
	}

	plaintext, err := v.Open(sealed)
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}

	fmt.Print(string(plaintext))
	if len(plaintext) > 0 && plaintext[len(plaintext)-1] != '\n' {
		fmt.Println()
	}
	return nil
}

func vaultDelete(db *store.Store, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: concierge vault delete <id>")
	}
	if err := db.DeleteSecret(args[0]); err != nil {
		return err
	}
	fmt.Printf("Secret %q deleted\n", args[0])
	return nil
}
