package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Bidon15/printspool/internal/service"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage operator accounts",
	Long: `Account management commands. Creating, updating, and deleting
accounts requires the admin role.

Examples:
  spoolctl users list
  spoolctl users create alice --role user
  spoolctl users delete 7f3c9a10-...
  spoolctl users me`,
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE:  runUsersList,
}

var usersCreateCmd = &cobra.Command{
	Use:   "create <username>",
	Short: "Create an account",
	Long: `Create an operator account. The password is read from the
SPOOLCTL_NEW_PASSWORD environment variable or the --password flag.`,
	Args: cobra.ExactArgs(1),
	RunE: runUsersCreate,
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runUsersDelete,
}

var usersMeCmd = &cobra.Command{
	Use:   "me",
	Short: "Show the authenticated account",
	RunE:  runUsersMe,
}

func init() {
	usersListCmd.Flags().Bool("active", false, "only active accounts")

	usersCreateCmd.Flags().String("role", "user", "account role (admin, user, viewer)")
	usersCreateCmd.Flags().String("password", "", "initial password (or use SPOOLCTL_NEW_PASSWORD)")
	usersCreateCmd.Flags().String("email", "", "contact email")
	usersCreateCmd.Flags().String("full-name", "", "display name")

	usersCmd.AddCommand(usersListCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCmd.AddCommand(usersDeleteCmd)
	usersCmd.AddCommand(usersMeCmd)

	rootCmd.AddCommand(usersCmd)
}

func runUsersList(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	activeOnly, _ := cmd.Flags().GetBool("active")
	users, err := client.ListUsers(cmd.Context(), activeOnly)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(users)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tROLE\tACTIVE\tLAST LOGIN")
	for _, u := range users {
		lastLogin := "never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", u.ID, u.Username, u.Role, u.IsActive, lastLogin)
	}
	return w.Flush()
}

func runUsersCreate(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	password, _ := cmd.Flags().GetString("password")
	if password == "" {
		password = os.Getenv("SPOOLCTL_NEW_PASSWORD")
	}
	if password == "" {
		return fmt.Errorf("no password given: use --password or SPOOLCTL_NEW_PASSWORD")
	}

	role, _ := cmd.Flags().GetString("role")
	req := service.CreateUserRequest{
		Username: args[0],
		Password: password,
		Role:     role,
	}
	if email, _ := cmd.Flags().GetString("email"); email != "" {
		req.Email = &email
	}
	if name, _ := cmd.Flags().GetString("full-name"); name != "" {
		req.FullName = &name
	}

	user, err := client.CreateUser(cmd.Context(), req)
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(user)
	}
	fmt.Printf("Created %s (%s) with role %s\n", user.Username, user.ID, user.Role)
	return nil
}

func runUsersDelete(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid user id %q", args[0])
	}

	if err := client.DeleteUser(cmd.Context(), id); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", id)
	return nil
}

func runUsersMe(cmd *cobra.Command, args []string) error {
	client, err := getClient()
	if err != nil {
		return err
	}

	user, err := client.Me(cmd.Context())
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(user)
	}
	fmt.Printf("%s (%s), role %s, active %t\n", user.Username, user.ID, user.Role, user.IsActive)
	return nil
}
