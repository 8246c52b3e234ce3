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
	"github.com/joho/godotenv"

	"todoapp/internal/adapter/repo"
	"todoapp/internal/billing"
	"todoapp/internal/domain"
	"todoapp/internal/infra"
	"todoapp/internal/providers/lemonsqueezy"
)

func main() {
	var (
		userFlag   string
		syncFlag   string
		cancelFlag bool
		clearFlag  bool
	)

	flag.StringVar(&userFlag, "user", "", "user ID (UUID)")
	flag.StringVar(&syncFlag, "sync", "", "Lemon Squeezy subscription ID to mirror for the user")
	flag.BoolVar(&cancelFlag, "cancel", false, "cancel the user's subscription at the provider, then mirror it")
	flag.BoolVar(&clearFlag, "clear", false, "delete the local subscription row")
	flag.Parse()

	_ = godotenv.Load()

	userID := strings.TrimSpace(userFlag)
	if userID == "" {
		exitWithError(errors.New("-user is required"))
	}

	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		exitWithError(errors.New("DATABASE_URL is required"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		exitWithError(fmt.Errorf("failed to connect database: %w", err))
	}
	defer pool.Close()

	logger := infra.NewLogger("cli").With().Str("cmd", "subscription").Logger()
	subs := repo.NewSubscriptionRepository(infra.NewSQLRunner(pool, logger))

	switch {
	case clearFlag:
		if err := subs.Delete(ctx, userID); err != nil {
			exitWithError(fmt.Errorf("failed to clear subscription: %w", err))
		}
		fmt.Printf("Subscription row for %s cleared\n", userID)
		return
	case syncFlag != "" || cancelFlag:
		source := providerClient(&logger)
		mirror := billing.NewMirror(subs, &logger)
		subscriptionID := strings.TrimSpace(syncFlag)
		if subscriptionID == "" {
			current, err := subs.GetUserSubscription(ctx, userID)
			if err != nil {
				exitWithError(fmt.Errorf("failed to load subscription: %w", err))
			}
			if current == nil {
				exitWithError(fmt.Errorf("user %s has no subscription to cancel", userID))
			}
			subscriptionID = current.SubscriptionID
		}
		if cancelFlag {
			if _, err := source.CancelSubscription(ctx, subscriptionID); err != nil {
				exitWithError(fmt.Errorf("failed to cancel subscription: %w", err))
			}
		}
		sub, err := mirror.Sync(ctx, source, userID, subscriptionID)
		if err != nil {
			exitWithError(err)
		}
		printSubscription(sub)
	default:
		sub, err := subs.GetUserSubscription(ctx, userID)
		if err != nil {
			exitWithError(fmt.Errorf("failed to load subscription: %w", err))
		}
		if sub == nil {
			fmt.Printf("User %s has no subscription\n", userID)
			return
		}
		printSubscription(sub)
	}
}

func providerClient(logger *infra.Logger) *lemonsqueezy.Client {
	client, err := lemonsqueezy.NewClient(lemonsqueezy.Options{
		APIKey:  os.Getenv("LEMONSQUEEZY_API_KEY"),
		BaseURL: os.Getenv("LEMONSQUEEZY_BASE_URL"),
		Logger:  logger,
	})
	if err != nil {
		exitWithError(err)
	}
	return client
}

func printSubscription(sub *domain.Subscription) {
	fmt.Printf("User %s subscription %s (%s / %s) status=%s subscribed=%t\n",
		sub.UserID, sub.SubscriptionID, sub.ProductName, sub.VariantName, sub.Status, sub.IsSubscribed())
	if sub.RenewsAt != nil {
		fmt.Printf("renews_at=%s\n", sub.RenewsAt.Format(time.RFC3339))
	}
	if sub.EndsAt != nil {
		fmt.Printf("ends_at=%s\n", sub.EndsAt.Format(time.RFC3339))
	}
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
