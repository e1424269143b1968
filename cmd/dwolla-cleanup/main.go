/**
 * @description
 * Script to remove a funding source from a payments-network customer. It is used
 * to clean up sandbox customers so the same test bank account can be linked
 * again after the ledger has been reset.
 *
 * Usage:
 *   go run ./cmd/dwolla-cleanup <customer-id> <funding-source-id>
 *
 * @dependencies
 * - Environment variables: DWOLLA_KEY, DWOLLA_SECRET, DWOLLA_ENV (sandbox by default)
 */

package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zedx/payments-service/pkg/dwollaclient"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Println("Usage: go run ./cmd/dwolla-cleanup <customer-id> <funding-source-id>")
		os.Exit(1)
	}
	customerID := strings.TrimSpace(os.Args[1])
	fundingSourceID := strings.TrimSpace(os.Args[2])

	for _, path := range []string{"../.env", ".env"} {
		_ = godotenv.Load(path)
	}

	key := os.Getenv("DWOLLA_KEY")
	secret := os.Getenv("DWOLLA_SECRET")
	if key == "" || secret == "" {
		log.Fatal("DWOLLA_KEY and DWOLLA_SECRET environment variables are required")
	}
	env := os.Getenv("DWOLLA_ENV")
	if env == "" {
		env = "sandbox"
	}
	if env != "sandbox" {
		fmt.Printf("Warning: running against the %s environment\n", env)
	}

	client := dwollaclient.NewClient(dwollaclient.BaseURLForEnv(env), key, secret)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Printf("Fetching customer information for ID: %s\n", customerID)
	customer, err := client.GetCustomer(ctx, customerID)
	if err != nil {
		log.Fatalf("Failed to fetch customer: %v", err)
	}

	fmt.Printf("Customer Details:\n")
	fmt.Printf("  ID: %s\n", customer.ID)
	fmt.Printf("  Name: %s %s\n", customer.FirstName, customer.LastName)
	fmt.Printf("  Email: %s\n", customer.Email)
	fmt.Printf("  Status: %s\n", customer.Status)
	fmt.Printf("  Funding source: %s\n", client.FundingSourceHref(fundingSourceID))

	fmt.Printf("\nRemove this funding source? (yes/no): ")
	var confirmation string
	fmt.Scanln(&confirmation)
	if confirmation != "yes" {
		fmt.Println("Removal cancelled.")
		os.Exit(0)
	}

	if err := client.RemoveFundingSource(ctx, fundingSourceID); err != nil {
		log.Fatalf("Failed to remove funding source: %v", err)
	}
	fmt.Printf("Removed funding source %s for %s\n", fundingSourceID, customer.Email)
}
