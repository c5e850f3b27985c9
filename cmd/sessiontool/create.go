package sessiontool

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.insight.network/gateway/cmd/providers"
	"go.insight.network/gateway/pkg/session"
	"go.insight.network/gateway/pkg/token"
	"go.insight.network/gateway/pkg/verify"
)

var createCmd = cobra.Command{
	Use:   "create <user_id> <app_id> <fingerprint>",
	Short: "Create a test session and print its access token",
	Long: "Writes a session record to the cache the way the login service\n" +
		"would, bound to the given fingerprint. Intended for staging and\n" +
		"debugging, not for issuing real credentials.",
	Args: cobra.ExactArgs(3),
	Run:  providers.NewCmd(runCreate),
}

func init() {
	flags := createCmd.Flags()
	flags.String("tenant", "", "Tenant ID")
	flags.Duration("life", 2*time.Hour, "Session life")
	flags.Duration("permit-life", 15*time.Minute, "Permit snapshot life")
	flags.Bool("auto-refresh", true, "Enable sliding refresh")
	Cmd.AddCommand(&createCmd)
}

func runCreate(
	ctx context.Context,
	cmd *cobra.Command,
	args []string,
	store *session.Store,
	cfg verify.Config,
) {
	flags := cmd.Flags()
	tenant, err := flags.GetString("tenant")
	if err != nil {
		panic(err)
	}
	life, err := flags.GetDuration("life")
	if err != nil {
		panic(err)
	}
	permitLife, err := flags.GetDuration("permit-life")
	if err != nil {
		panic(err)
	}
	autoRefresh, err := flags.GetBool("auto-refresh")
	if err != nil {
		panic(err)
	}

	userID, appID, fingerprint := args[0], args[1], args[2]
	tokenID := uuid.NewString()
	rawToken := token.Marshal(&token.AccessAssertion{
		TokenID: tokenID,
		UserID:  userID,
	})
	now := time.Now()
	expiry := now.Add(cfg.TimeoutWindow + life)
	rec := &session.Record{
		UserID:      userID,
		AppID:       appID,
		TenantID:    tenant,
		TokenHash:   token.Bind(cfg.Digest, rawToken, fingerprint),
		ExpiryTime:  expiry,
		FailureTime: expiry,
		AutoRefresh: autoRefresh,
		Life:        life,
		PermitTime:  now,
		PermitLife:  permitLife,
	}
	ttl := 2*cfg.TimeoutWindow + verify.GraceMultiplier*life
	if err := store.PutRecord(ctx, tokenID, rec, ttl); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to write session record:", err)
		os.Exit(1)
	}
	if err := store.SetAuthoritativeToken(ctx, userID, appID, tokenID); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set authoritative token:", err)
		os.Exit(1)
	}
	fmt.Println("Token ID:", tokenID)
	fmt.Println("Token:", rawToken)
}
