// Command auditctl verifies an exported audit chain and fetches vaulted
// evidence for a given correlation id.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/proxilion/grc-gateway/pkg/audit"
	"github.com/proxilion/grc-gateway/pkg/vault"
)

func main() {
	if len(os.Args) < 3 {
		usage()
	}

	switch os.Args[1] {
	case "verify":
		verifyExport(os.Args[2])
	case "fetch":
		fetchRecord(os.Args[2])
	default:
		usage()
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: auditctl verify <path/to/evidence.json>\n")
	fmt.Fprintf(os.Stderr, "       auditctl fetch <correlation-id>\n")
	os.Exit(1)
}

func verifyExport(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatalf("read evidence package: %v", err)
	}

	var pkg audit.EvidencePackage
	if err := json.Unmarshal(data, &pkg); err != nil {
		log.Fatalf("parse evidence package: %v", err)
	}

	secret := envOr("AUDIT_CHAIN_SECRET", "")
	if secret == "" {
		log.Fatal("AUDIT_CHAIN_SECRET required to verify attestation")
	}

	fmt.Printf("Gateway ID:    %s\n", pkg.GatewayID)
	fmt.Printf("Exported At:   %s\n", pkg.ExportedAt)
	fmt.Printf("Chain Length:  %d\n", pkg.ChainLength)
	fmt.Printf("Time Range:    %s -> %s\n", pkg.TimeRange.Earliest, pkg.TimeRange.Latest)
	fmt.Println()

	if !audit.VerifyAttestation(&pkg, secret) {
		fmt.Println("ATTESTATION INVALID — this export has been altered since signing.")
		os.Exit(1)
	}
	fmt.Println("Attestation valid.")

	if !pkg.ChainValid {
		fmt.Printf("CHAIN BROKEN at sequence %d.\n", pkg.ChainBrokenAt)
		os.Exit(1)
	}
	fmt.Println("Chain intact — every entry's signature and prev-hash link verified.")
}

func fetchRecord(correlationID string) {
	ctx := context.Background()
	vc, err := vault.New(ctx, vault.Config{
		Endpoint:  envOr("VAULT_ENDPOINT", "localhost:9000"),
		AccessKey: envOr("VAULT_ACCESS_KEY", "minioadmin"),
		SecretKey: envOr("VAULT_SECRET_KEY", "minioadmin"),
		Bucket:    envOr("VAULT_BUCKET", "grc-gateway-audit"),
		UseSSL:    envOr("VAULT_USE_SSL", "false") == "true",
	})
	if err != nil {
		log.Fatalf("vault connect: %v", err)
	}

	key := fmt.Sprintf("records/%s.json", correlationID)
	data, err := vc.Fetch(ctx, key)
	if err != nil {
		log.Fatalf("fetch %s: %v", key, err)
	}

	var rec audit.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Fatalf("parse record: %v", err)
	}

	out, _ := json.MarshalIndent(rec, "", "  ")
	fmt.Println(string(out))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
