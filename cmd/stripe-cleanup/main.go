package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/arclightai/arclight-admin/internal/pkg/auth0"
	"github.com/arclightai/arclight-admin/internal/pkg/billing"
	"github.com/arclightai/arclight-admin/internal/pkg/env"
)

// Cleanup tool for test-mode payment provider data. Dangling open checkout
// sessions cause 404s on the success redirect; stale test customers keep
// old identity-provider accounts alive.
func main() {
	customers := flag.Bool("customers", false, "delete customers and their identity-provider accounts")
	sessions := flag.Bool("sessions", false, "expire open checkout sessions")
	dryRun := flag.Bool("dry-run", true, "list what would change without changing anything")
	emailPattern := flag.String("email-pattern", "", "only touch customers whose email contains this substring")
	yes := flag.Bool("yes", false, "skip the interactive confirmation")
	flag.Parse()

	if !*customers && !*sessions {
		fmt.Fprintln(os.Stderr, "nothing to do: pass -customers and/or -sessions")
		flag.Usage()
		os.Exit(2)
	}

	env.SetupEnvFile()

	client := billing.NewStripeClientFromEnv()
	if !*dryRun && !strings.HasPrefix(client.APIKey, "sk_test_") {
		fmt.Fprintln(os.Stderr, "refusing to run destructively against a non-test API key (sk_test_ required)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if *sessions {
		if err := cleanupSessions(ctx, client, *dryRun, *yes); err != nil {
			fmt.Fprintln(os.Stderr, "session cleanup failed:", err)
			os.Exit(1)
		}
	}
	if *customers {
		if err := cleanupCustomers(ctx, client, *dryRun, *yes, *emailPattern); err != nil {
			fmt.Fprintln(os.Stderr, "customer cleanup failed:", err)
			os.Exit(1)
		}
	}
}

func cleanupSessions(ctx context.Context, client *billing.StripeClient, dryRun, yes bool) error {
	fmt.Println("fetching open checkout sessions...")

	var sessions []billing.CheckoutSession
	cursor := ""
	for {
		page, err := client.ListOpenCheckoutSessions(ctx, cursor)
		if err != nil {
			return err
		}
		sessions = append(sessions, page.Sessions...)
		if !page.HasMore || len(page.Sessions) == 0 {
			break
		}
		cursor = page.Sessions[len(page.Sessions)-1].ID
	}

	fmt.Printf("found %d open sessions\n", len(sessions))
	if len(sessions) == 0 {
		return nil
	}

	for i, s := range sessions {
		created := time.Unix(s.CreatedAt, 0).Format("2006-01-02 15:04:05")
		fmt.Printf("  %3d. %s  mode=%s  created=%s\n", i+1, s.ID, s.Mode, created)
	}

	if dryRun {
		fmt.Printf("dry run: would expire %d open sessions (rerun with -dry-run=false)\n", len(sessions))
		return nil
	}
	if !yes && !confirm(fmt.Sprintf("about to EXPIRE %d open sessions", len(sessions)), "EXPIRE") {
		fmt.Println("cancelled")
		return nil
	}

	expired, failed := 0, 0
	for _, s := range sessions {
		if err := client.ExpireCheckoutSession(ctx, s.ID); err != nil {
			failed++
			fmt.Printf("  could not expire %s: %v\n", s.ID, err)
			continue
		}
		expired++
	}
	fmt.Printf("expired %d sessions, %d failures\n", expired, failed)
	return nil
}

func cleanupCustomers(ctx context.Context, client *billing.StripeClient, dryRun, yes bool, emailPattern string) error {
	fmt.Println("fetching customers...")

	var customers []billing.StripeCustomer
	cursor := ""
	for {
		page, err := client.ListCustomers(ctx, cursor)
		if err != nil {
			return err
		}
		for _, cust := range page.Customers {
			if emailPattern != "" && !strings.Contains(strings.ToLower(cust.Email), strings.ToLower(emailPattern)) {
				continue
			}
			customers = append(customers, cust)
		}
		if !page.HasMore || len(page.Customers) == 0 {
			break
		}
		cursor = page.Customers[len(page.Customers)-1].ID
	}

	fmt.Printf("found %d matching customers\n", len(customers))
	if len(customers) == 0 {
		return nil
	}

	for i, cust := range customers {
		email := cust.Email
		if email == "" {
			email = "no email"
		}
		created := time.Unix(cust.Created, 0).Format("2006-01-02 15:04:05")
		fmt.Printf("  %3d. %s  %s  created=%s\n", i+1, cust.ID, email, created)
	}

	if dryRun {
		fmt.Printf("dry run: would delete %d customers and their identity-provider accounts (rerun with -dry-run=false)\n", len(customers))
		return nil
	}
	if !yes && !confirm(fmt.Sprintf("about to DELETE %d customers and their identity-provider accounts", len(customers)), "DELETE") {
		fmt.Println("cancelled")
		return nil
	}

	idp := auth0.NewClientFromEnv()
	deletedStripe, deletedIdentity, failed := 0, 0, 0
	for _, cust := range customers {
		// Identity-provider account first; losing the customer record makes
		// the email unrecoverable.
		if cust.Email != "" {
			if userID, err := idp.FindUserIDByEmail(ctx, cust.Email); err != nil {
				fmt.Printf("  identity lookup failed for %s: %v\n", cust.Email, err)
			} else if userID != "" {
				if err := idp.DeleteUser(ctx, userID); err != nil {
					fmt.Printf("  could not delete identity account %s: %v\n", userID, err)
				} else {
					deletedIdentity++
				}
			}
		}

		if err := client.DeleteCustomer(ctx, cust.ID); err != nil {
			failed++
			fmt.Printf("  could not delete customer %s: %v\n", cust.ID, err)
			continue
		}
		deletedStripe++
	}

	fmt.Printf("deleted %d customers, %d identity accounts, %d failures\n", deletedStripe, deletedIdentity, failed)
	return nil
}

func confirm(warning, keyword string) bool {
	fmt.Printf("%s. Type %q to confirm: ", warning, keyword)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == keyword
}
