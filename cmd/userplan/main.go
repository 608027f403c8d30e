package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"server/internal/infra"
	"server/internal/sqlinline"
)

func main() {
	var (
		idFlag    string
		emailFlag string
		planFlag  string
		quotaFlag int
	)

	flag.StringVar(&idFlag, "id", "", "user ID to update (UUID)")
	flag.StringVar(&emailFlag, "email", "", "user email to update")
	flag.StringVar(&planFlag, "plan", "pro", "plan to assign (free, supporter, pro)")
	flag.IntVar(&quotaFlag, "quota", 0, "daily generation quota override (<=0 keeps the plan default)")
	flag.Parse()

	userID := strings.TrimSpace(idFlag)
	email := strings.TrimSpace(emailFlag)
	plan := strings.TrimSpace(strings.ToLower(planFlag))

	if userID == "" && email == "" {
		exitWithError(errors.New("either -id or -email must be provided"))
	}
	switch plan {
	case "free", "supporter", "pro":
	default:
		exitWithError(fmt.Errorf("unsupported plan %q", plan))
	}

	quota := quotaFlag
	if quota <= 0 {
		quota = defaultQuota(plan)
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "userplan").Logger()
	runner := infra.NewSQLRunner(pool, logger)

	if userID == "" {
		lookupCtx, cancelLookup := context.WithTimeout(context.Background(), 5*time.Second)
		err := runner.QueryRow(lookupCtx, sqlinline.QSelectUserIDByEmail, email).Scan(&userID)
		cancelLookup()
		if err != nil {
			exitWithError(fmt.Errorf("failed to resolve user by email: %w", err))
		}
	}

	updateCtx, cancelUpdate := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelUpdate()

	var (
		updatedID   string
		updatedPlan string
	)
	row := runner.QueryRow(updateCtx, sqlinline.QUpdateUserPlan, userID, plan, quota)
	if err := row.Scan(&updatedID, &updatedPlan); err != nil {
		exitWithError(fmt.Errorf("failed to update user plan: %w", err))
	}

	fmt.Printf("User %s updated to plan %s (quota_daily=%d)\n", updatedID, updatedPlan, quota)
}

func defaultQuota(plan string) int {
	switch plan {
	case "pro":
		return 100
	case "supporter":
		return 25
	default:
		return 3
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
