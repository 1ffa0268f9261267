package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported libraries",
	RunE:  runList,
}

var statusCmd = &cobra.Command{
	Use:   "status [library-id]",
	Short: "Show a library's lifecycle and recent logs",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var logsCmd = &cobra.Command{
	Use:   "logs [library-id]",
	Short: "Print a library's full processing log",
	Args:  cobra.ExactArgs(1),
	RunE:  runLogs,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [library-id]",
	Short: "Delete a library and all derived artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

// statusLogTail is how many recent log entries status shows.
const statusLogTail = 10

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	libraries, err := libraryService.List(context.Background())
	if err != nil {
		return fmt.Errorf("list libraries: %w", err)
	}

	if len(libraries) == 0 {
		cmd.Println("No libraries imported. Run: tutorkit import <url>")
		return nil
	}

	cmd.Println(headerStyle.Render("Libraries"))
	cmd.Println()
	for _, lib := range libraries {
		cmd.Printf("  %s  %s (%s)\n", statusLabel(lib.Status), lib.Title, lib.Type)
		cmd.Printf("      %s\n", dimStyle.Render(lib.ID))
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	ctx := context.Background()
	lib, err := libraryService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}

	cmd.Println(headerStyle.Render(lib.Title))
	cmd.Printf("  Status: %s\n", statusLabel(lib.Status))
	cmd.Printf("  Source: %s (%s)\n", lib.URL, lib.Type)
	if lib.Author != "" {
		cmd.Printf("  Author: %s\n", lib.Author)
	}
	if lib.Progress != "" {
		cmd.Printf("  Progress: %s\n", lib.Progress)
	}
	cmd.Printf("  Stats: %d concepts, %d chunks, %d embeddings\n",
		lib.Stats.Concepts, lib.Stats.Chunks, lib.Stats.Embeddings)

	logs, err := libraryService.Logs(ctx, lib.ID)
	if err != nil {
		return fmt.Errorf("load logs: %w", err)
	}
	if len(logs) == 0 {
		return nil
	}

	if len(logs) > statusLogTail {
		logs = logs[len(logs)-statusLogTail:]
	}
	cmd.Println()
	cmd.Println("Recent log entries:")
	for _, entry := range logs {
		cmd.Printf("  %s [%s] %s: %s\n",
			entry.At.Format("15:04:05"), entry.Level, entry.Stage, entry.Message)
	}
	return nil
}

func runLogs(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	logs, err := libraryService.Logs(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("load logs: %w", err)
	}

	if len(logs) == 0 {
		cmd.Println("No log entries.")
		return nil
	}
	for _, entry := range logs {
		cmd.Printf("%s [%s] %s: %s\n",
			entry.At.Format("2006-01-02 15:04:05"), entry.Level, entry.Stage, entry.Message)
	}
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	if libraryService == nil {
		return errors.New("library service not configured")
	}

	if err := libraryService.Delete(context.Background(), args[0]); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}

	cmd.Printf("Library %s deleted.\n", args[0])
	return nil
}
