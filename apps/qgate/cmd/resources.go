package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/quatton/qgate/pkg/db/models"
	"github.com/quatton/qgate/pkg/qapi/services/store"
	"github.com/quatton/qgate/pkg/qlog"
	"github.com/quatton/qgate/pkg/qrunner"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
)

var resourcesCmd = &cobra.Command{
	Use:     "resources",
	Aliases: []string{"resource", "res"},
	Short:   "Manage compute resources (operator)",
	Long: `Compute resources are the clusters jobs run on. The host scheme picks the
backend: http(s)://<ray dashboard>, k8s://<namespace> or local://.

A user's jobs go to the oldest resource granted to them.`,
}

var resourcesAddCmd = &cobra.Command{
	Use:   "add <title> <host>",
	Short: "Register a compute resource",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withDatabase(func(ctx context.Context, database *bun.DB, _ *qlog.Logger) error {
			res := &models.ComputeResource{ID: uuid.New(), Title: args[0], Host: args[1]}
			if err := store.NewBunStore(database).CreateResource(ctx, res); err != nil {
				return err
			}
			fmt.Printf("Added %s (%s backend): %s\n", res.Title, qrunner.Backend(res.Host), res.ID)
			return nil
		})
	},
}

var resourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List compute resources",
	Run: func(cmd *cobra.Command, args []string) {
		withDatabase(func(ctx context.Context, database *bun.DB, _ *qlog.Logger) error {
			resources, err := store.NewBunStore(database).ListResources(ctx)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tHOST\tBACKEND")
			for _, r := range resources {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Title, r.Host, qrunner.Backend(r.Host))
			}
			return w.Flush()
		})
	},
}

var resourcesGrantCmd = &cobra.Command{
	Use:   "grant <resource-id> <login>",
	Short: "Give a user access to a compute resource",
	Long:  `The user must have signed in once so the gateway knows their login.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		withDatabase(func(ctx context.Context, database *bun.DB, _ *qlog.Logger) error {
			resourceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid resource id %q: %w", args[0], err)
			}
			st := store.NewBunStore(database)
			user, err := st.FindUserByLogin(ctx, args[1])
			if err != nil {
				return fmt.Errorf("user %q: %w", args[1], err)
			}
			if err := st.GrantResource(ctx, resourceID, user.ID); err != nil {
				return err
			}
			fmt.Printf("Granted %s to %s\n", resourceID, user.Login)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resourcesCmd)
	resourcesCmd.AddCommand(resourcesAddCmd, resourcesListCmd, resourcesGrantCmd)
}
