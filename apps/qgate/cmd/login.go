package cmd

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/quatton/qgate/pkg/qauth"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the gateway with your Keycloak username and password",
	Long: `Exchanges your Keycloak credentials for a gateway session.

Examples:
	# prompt for username and password
	qgate login

	# non-interactive
	QGATE_PASSWORD=... qgate login --username alice

Credentials are stored in the OS keyring, keyed by the gateway base URL.`,
	Run: login,
}

var loginUsername string

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Keycloak username")
}

func login(cmd *cobra.Command, args []string) {
	sdk, err := newSdk(cmd)
	if err != nil {
		log.Fatalf("%v", err)
	}

	username := loginUsername
	if username == "" {
		fmt.Print("Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			log.Fatalf("reading username: %v", err)
		}
		username = strings.TrimSpace(line)
	}

	password := os.Getenv("QGATE_PASSWORD")
	if password == "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			log.Fatalf("reading password: %v", err)
		}
		password = string(raw)
	}

	session, err := sdk.Login(cmd.Context(), username, password)
	exitIfSdkError(err)

	expStr := "unknown"
	if uc, err := qauth.FromToken(session.AccessToken); err == nil && uc.Exp > 0 {
		expStr = time.Unix(uc.Exp, 0).Format(time.RFC3339)
	}
	fmt.Printf("Logged in as: %s (@%s)\n", session.User.Name, session.User.Login)
	fmt.Printf("Token expires: %s\n", expStr)
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session for this gateway",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}
		sdk.ClearCredentials()
		fmt.Printf("Logged out of %s\n", sdk.BaseURL)
	},
}

var meCmd = &cobra.Command{
	Use:   "me",
	Short: "Show information about the current authenticated user",
	Run: func(cmd *cobra.Command, args []string) {
		sdk, err := newSdk(cmd)
		if err != nil {
			log.Fatalf("%v", err)
		}

		u, err := sdk.Me(cmd.Context())
		exitIfSdkError(err)

		fmt.Printf("Logged in: %s (@%s)\n", u.Name, u.Login)
		fmt.Printf("Email: %s\n", u.Email)
		fmt.Printf("ID: %s\n", u.ID)
	},
}

func init() {
	rootCmd.AddCommand(meCmd)
}
