package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"bartetl/pkg/auth"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored BART API keys",
	Long: `Manage BART API keys stored outside the configuration file.

Keys are stored in:
  - The system keychain, when available
  - An AES-GCM encrypted file under the user config directory

BARTETL_API_KEY is also honoured and takes precedence over stored keys.
Register a key at https://api.bart.gov/api/register.aspx.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set [api-key]",
	Short: "Store an API key",
	Long: `Store an API key under --profile (default "default"). When no key is
given as an argument it is read from the terminal without echo.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored API keys (masked)",
	RunE:  runAuthShow,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the API key stored under --profile",
	RunE:  runAuthDelete,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authDeleteCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var key string
	if len(args) > 0 {
		key = args[0]
	} else {
		fmt.Fprint(os.Stderr, "BART API key: ")
		key, err = readSecret()
		if err != nil {
			return fmt.Errorf("failed to read API key: %w", err)
		}
	}
	key = strings.TrimSpace(key)

	cred := &auth.Credential{Profile: credentialProfile(), APIKey: key}
	if err := manager.Store(cred); err != nil {
		return err
	}

	printer.Success(fmt.Sprintf("Stored API key %s for profile %q", auth.MaskKey(key), cred.Profile))
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		printer.Dim("No stored API keys; run 'bartetl auth set'")
		return nil
	}

	pairs := make([][2]string, 0, len(creds))
	for _, c := range creds {
		s := auth.Sanitize(c)
		pairs = append(pairs, [2]string{s.Profile, fmt.Sprintf("%s  (%s)", s.APIKey, s.LastModified.Format(time.RFC3339))})
	}
	printer.Panel("Stored API keys", pairs)
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	if err := manager.Delete(credentialProfile()); err != nil {
		return err
	}
	printer.Success(fmt.Sprintf("Deleted API key for profile %q", credentialProfile()))
	return nil
}

// readSecret reads a line from stdin without echo when stdin is a terminal
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		return string(b), err
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return line, nil
}
