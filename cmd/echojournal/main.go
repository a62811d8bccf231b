package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/echo-journal/core/internal/models"
	"github.com/echo-journal/core/internal/pkg/apiclient"
	"github.com/spf13/cobra"
)

var serverURL string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCommand()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "echojournal: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "echojournal",
		Short: "Video journal CLI",
		Long: `echojournal records and browses video diary entries: log in, upload a recorded
clip against a mood, and watch it move through platform processing.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&serverURL, "server", envOr("ECHOJOURNAL_SERVER", "http://localhost:3399"), "API server base URL")
	cmd.AddCommand(
		newLoginCmd(),
		newRecordCmd(),
		newStatusCmd(),
		newListCmd(),
	)
	return cmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// tokenPath is where the CLI caches the auth token between invocations.
func tokenPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".echojournal", "token"), nil
}

func saveToken(token string) error {
	path, err := tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(token), 0o600)
}

func newAuthedClient() (*apiclient.Client, error) {
	client := apiclient.New(serverURL)
	path, err := tokenPath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("not logged in, run `echojournal login` first")
	}
	client.SetToken(strings.TrimSpace(string(raw)))
	return client, nil
}

func newLoginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate and cache a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := apiclient.New(serverURL)
			result, err := client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			if err := saveToken(result.Token); err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", result.User.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newRecordCmd() *cobra.Command {
	var mood, file, date string
	var noWait bool
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Create an entry, upload a recorded video, and wait for processing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !models.IsValidMood(mood) {
				return fmt.Errorf("invalid mood %q, one of: %s", mood, strings.Join(models.Moods, ", "))
			}

			client, err := newAuthedClient()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			blob, err := os.Open(file)
			if err != nil {
				return err
			}
			defer blob.Close()

			created, err := client.CreateEntry(ctx, mood, date)
			if err != nil {
				return err
			}
			fmt.Printf("entry %s created, uploading...\n", created.EntryID)

			if err := client.UploadBlob(ctx, created.UploadURL, blob); err != nil {
				return err
			}
			fmt.Println("upload complete, waiting for processing...")

			if noWait {
				fmt.Printf("entry %s saved\n", created.EntryID)
				return nil
			}

			outcome, status, err := client.WaitForReady(ctx, created.EntryID)
			if err != nil {
				return err
			}
			switch outcome {
			case apiclient.Ready:
				fmt.Printf("entry %s is ready (%ds)\n", created.EntryID, status.Duration)
			case apiclient.Failed:
				fmt.Printf("entry %s failed processing\n", created.EntryID)
			default:
				fmt.Printf("entry %s saved, still processing; it will finish in the background\n", created.EntryID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&mood, "mood", "", "Mood tag for the entry")
	cmd.Flags().StringVar(&file, "file", "", "Path to the recorded video file")
	cmd.Flags().StringVar(&date, "date", "", "Entry date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "Skip polling after upload")
	cmd.MarkFlagRequired("mood")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <entryId>",
		Short: "Check (and nudge) an entry's processing status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAuthedClient()
			if err != nil {
				return err
			}
			status, err := client.CheckStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			out, _ := json.MarshalIndent(status, "", "  ")
			fmt.Println(string(out))
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var page, size int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your diary entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newAuthedClient()
			if err != nil {
				return err
			}
			entries, err := client.ListEntries(cmd.Context(), page, size)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				fmt.Println("no entries yet")
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-10s  %-10s  %s", e.Date, e.Mood, e.VideoStatus, e.ID)
				if e.Duration > 0 {
					line += fmt.Sprintf("  (%ds)", e.Duration)
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&size, "size", 20, "Page size")
	return cmd
}
