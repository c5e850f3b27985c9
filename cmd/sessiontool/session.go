// Package sessiontool is a debug utility for inspecting and managing
// live sessions in the shared cache.
package sessiontool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.insight.network/gateway/cmd/providers"
	"go.insight.network/gateway/pkg/session"
	"go.insight.network/gateway/pkg/verify"
)

// Cmd is the session sub-command.
var Cmd = cobra.Command{
	Use:   "session",
	Short: "Inspect and manage live sessions",
}

var verifyCmd = cobra.Command{
	Use:   "verify <token> <fingerprint> [auth_codes]",
	Short: "Run a verification decision against the cache",
	Args:  cobra.RangeArgs(2, 3),
	Run:   providers.NewCmd(runVerify),
}

func init() {
	Cmd.AddCommand(&verifyCmd)
}

func runVerify(ctx context.Context, args []string, engine *verify.Engine) {
	authCodes := ""
	if len(args) > 2 {
		authCodes = args[2]
	}
	v := engine.Verify(ctx, args[0], args[1])
	res := v.Compare(ctx, authCodes)
	if res.OK() {
		fmt.Println("OK:", v.UserID(), "app", v.AppID())
		return
	}
	fmt.Printf("REJECT (%s): %s\n", res.Status, res.Message)
}

var inspectCmd = cobra.Command{
	Use:   "inspect <token_id>",
	Short: "Print a cached session record",
	Args:  cobra.ExactArgs(1),
	Run:   providers.NewCmd(runInspect),
}

func init() {
	Cmd.AddCommand(&inspectCmd)
}

func runInspect(ctx context.Context, args []string, store *session.Store) {
	rec, err := store.GetRecord(ctx, args[0])
	if errors.Is(err, session.ErrAbsent) {
		fmt.Println("No such session")
		return
	} else if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	ttl, err := store.RecordTTL(ctx, args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	buf, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		panic(err)
	}
	fmt.Println(string(buf))
	fmt.Println("TTL:", ttl)
}

var revokeCmd = cobra.Command{
	Use:   "revoke <token_id>",
	Short: "Remove a session record from the cache",
	Args:  cobra.ExactArgs(1),
	Run:   providers.NewCmd(runRevoke),
}

func init() {
	Cmd.AddCommand(&revokeCmd)
}

func runRevoke(ctx context.Context, args []string, store *session.Store) {
	if err := store.DeleteRecord(ctx, args[0]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("Revoked", args[0])
}
