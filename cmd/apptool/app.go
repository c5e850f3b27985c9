// Package apptool manages per-app gateway policy.
package apptool

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.insight.network/gateway/cmd/providers"
	"go.insight.network/gateway/pkg/appcache"
	"go.insight.network/gateway/pkg/session"
)

// Cmd is the app sub-command.
var Cmd = cobra.Command{
	Use:   "app",
	Short: "Manage per-app policy",
}

var ssoCmd = cobra.Command{
	Use:   "sso <app_id> <true|false>",
	Short: "Set single-device sign-in policy for an app",
	Args:  cobra.ExactArgs(2),
	Run:   providers.NewCmd(runSetSSO),
}

func init() {
	Cmd.AddCommand(&ssoCmd)
}

func runSetSSO(
	ctx context.Context,
	args []string,
	store *session.Store,
	rd *redis.Client,
) {
	enabled, err := strconv.ParseBool(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, "Invalid flag value:", args[1])
		os.Exit(1)
	}
	appID := args[0]
	if err := store.SetAppSingleSignOn(ctx, appID, enabled); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to set policy:", err)
		os.Exit(1)
	}
	// Tell running gateways to drop their cached copy.
	invalidation := appcache.Invalidation{
		Redis:     rd,
		StreamKey: viper.GetString(providers.ConfAppCacheStreamKey),
		Backlog:   viper.GetInt64(providers.ConfAppCacheBacklog),
	}
	if err := invalidation.Add(ctx, appID); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to publish invalidation:", err)
		os.Exit(1)
	}
	fmt.Println("Set", appID, "SignInType to", enabled)
}
