package main

import (
	"fmt"
	"os"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"gatekeeper/internal/database"
	"gatekeeper/internal/platform/roster"
)

var (
	apiBaseURL string
	apiKey     string
)

type ResponseError struct {
	Message string `json:"message"`
}

var apiServiceBase = func() *resty.Client {
	return resty.New().
		SetBaseURL(apiBaseURL).
		SetHeader("Accept", "application/json").
		SetHeader("X-API-Key", apiKey).
		SetError(&ResponseError{}).
		OnAfterResponse(func(c *resty.Client, resp *resty.Response) error {
			if resp.StatusCode() >= 400 {
				// Error bodies are not always JSON (proxies, panics).
				if respErr, ok := resp.Error().(*ResponseError); ok && respErr.Message != "" {
					return fmt.Errorf("%s", respErr.Message)
				}
				return fmt.Errorf("%s", resp.Status())
			}

			return nil
		})
}

var rootCmd = &cobra.Command{
	Use:   "gatekeeper",
	Short: "Gatekeeper CLI",
}

var allowlistCmd = &cobra.Command{
	Use:   "allowlist",
	Short: "Manage the allow list",
}

var allowlistAddCmd = &cobra.Command{
	Use:   "add <email>",
	Short: "Add an email to the allow list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		role, _ := cmd.Flags().GetString("role")
		name, _ := cmd.Flags().GetString("name")

		resp, err := apiServiceBase().R().
			SetBody(map[string]string{
				"email": args[0],
				"role":  role,
				"name":  name,
			}).
			SetResult(&database.AllowListEntry{}).
			Post("management/allowlist")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		entry := resp.Result().(*database.AllowListEntry)

		fmt.Println("Key   :", entry.Key)
		fmt.Println("Email :", entry.Email)
		fmt.Println("Role  :", entry.Role)
		fmt.Println("Name  :", entry.Name)
	},
}

var allowlistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List allow-list entries",
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&[]database.AllowListEntry{}).
			Get("management/allowlist")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		entries := resp.Result().(*[]database.AllowListEntry)
		for _, entry := range *entries {
			fmt.Printf("%-40s %-8s %s\n", entry.Email, entry.Role, entry.Name)
		}
	},
}

var allowlistRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Remove an email from the allow list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		_, err := apiServiceBase().R().
			Delete("management/allowlist/" + args[0])

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println("Removed", args[0])
	},
}

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Inspect the merged roster",
}

var rosterShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged roster",
	Run: func(cmd *cobra.Command, args []string) {
		type rosterRow struct {
			roster.MergedUserView
			LastActiveRelative string `json:"last_active_relative"`
		}

		resp, err := apiServiceBase().R().
			SetResult(&[]rosterRow{}).
			Get("roster")

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		rows := resp.Result().(*[]rosterRow)
		for _, row := range *rows {
			status := "inactive"
			if row.Active {
				status = "active"
			}
			if !row.Approved {
				status = "orphan"
			}
			fmt.Printf("%-40s %-8s %-8s %-16s ids=%v\n",
				row.Email, row.Role, status, row.LastActiveRelative, row.UserIDs)
		}
	},
}

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
}

var userRemoveCmd = &cobra.Command{
	Use:   "remove <email>",
	Short: "Delete a user completely: allow-list entry and all activity records",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		resp, err := apiServiceBase().R().
			SetResult(&roster.RemovalReport{}).
			Delete("roster/" + args[0])

		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		report := resp.Result().(*roster.RemovalReport)

		fmt.Println("Email             :", report.Email)
		fmt.Println("Allowlist deleted :", report.AllowListDeleted)
		fmt.Println("Deleted records   :", report.DeletedIDs)
		if len(report.FailedIDs) > 0 {
			fmt.Println("Failed records    :", report.FailedIDs)
		}
	},
}

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Generate a management API key and its config hash",
	Run: func(cmd *cobra.Command, args []string) {
		key := fmt.Sprintf("gk_%s", uuid.NewString())

		hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
		if err != nil {
			fmt.Println("Error:", err)
			return
		}

		fmt.Println("API key         :", key)
		fmt.Println("GK_API_KEY_HASH :", string(hash))
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&apiBaseURL, "api", "http://localhost:3000/api/", "API base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "key", os.Getenv("GK_API_KEY"), "management API key")

	allowlistAddCmd.Flags().String("role", database.RoleStaff, "role to assign (admin or staff)")
	allowlistAddCmd.Flags().String("name", "", "display name")

	allowlistCmd.AddCommand(allowlistAddCmd, allowlistListCmd, allowlistRemoveCmd)
	rosterCmd.AddCommand(rosterShowCmd)
	userCmd.AddCommand(userRemoveCmd)

	rootCmd.AddCommand(allowlistCmd, rosterCmd, userCmd, apikeyCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
