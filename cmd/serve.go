package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/gym-gate/internal/config"
	"github.com/kozaktomas/gym-gate/internal/database"
	"github.com/kozaktomas/gym-gate/internal/database/postgres"
	"github.com/kozaktomas/gym-gate/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Gym Gate web server.
The web server provides the admin API for managing members, payments and
biometric enrollments, and the gate endpoints used by the entrance device.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().String("session-secret", "", "Secret for signing session cookies (defaults to WEB_SESSION_SECRET)")
	serveCmd.Flags().Bool("no-face-index", false, "Skip the in-memory face index and match through PostgreSQL")
}

// initFaceIndex builds or loads the in-memory face index for fast gate matching.
func initFaceIndex(ctx context.Context, members *postgres.MemberRepository, indexPath string) {
	if indexPath != "" {
		fmt.Printf("Loading face index from %s...\n", indexPath)
	} else {
		fmt.Printf("Building in-memory face index...\n")
	}
	if err := members.EnableFaceIndex(ctx, indexPath); err != nil {
		fmt.Printf("Warning: failed to build face index: %v\n", err)
		fmt.Printf("Gate matching will use PostgreSQL queries (slower)\n")
	} else if indexPath != "" {
		fmt.Printf("Face index ready with %d members (persisted to %s)\n", members.FaceIndexCount(), indexPath)
	} else {
		fmt.Printf("Face index built with %d members (in-memory only)\n", members.FaceIndexCount())
	}
}

// resolveServeHostPort resolves port and host from flags and environment variables.
func resolveServeHostPort(cmd *cobra.Command) (int, string, string) {
	port := mustGetInt(cmd, "port")
	host := mustGetString(cmd, "host")
	sessionSecret := mustGetString(cmd, "session-secret")

	if sessionSecret == "" {
		sessionSecret = os.Getenv("WEB_SESSION_SECRET")
	}
	if envPort := os.Getenv("WEB_PORT"); envPort != "" {
		fmt.Sscanf(envPort, "%d", &port)
	}
	if envHost := os.Getenv("WEB_HOST"); envHost != "" {
		host = envHost
	}
	return port, host, sessionSecret
}

// saveFaceIndex persists the face index to disk during shutdown.
func saveFaceIndex() {
	rebuilder := database.GetFaceIndexRebuilder()
	if rebuilder == nil || !rebuilder.IsFaceIndexEnabled() {
		return
	}
	if err := rebuilder.SaveFaceIndex(); err != nil {
		fmt.Printf("Warning: failed to save face index: %v\n", err)
	} else {
		fmt.Println("Face index saved to disk")
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Printf("Connecting to PostgreSQL database...\n")
	if err := postgres.Initialize(&cfg.Database); err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}

	if !mustGetBool(cmd, "no-face-index") {
		initFaceIndex(context.Background(), postgres.ActiveMemberRepository(), cfg.Database.FaceIndexPath)
	}

	port, host, sessionSecret := resolveServeHostPort(cmd)
	server := web.NewServer(cfg, port, host, sessionSecret)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		saveFaceIndex()

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Gym Gate on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
