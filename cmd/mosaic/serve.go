package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/pixelfield/mosaic/internal/server"
)

var (
	serveAddr     string
	sessionTTL    time.Duration
	sweepInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the mosaic HTTP API",
	Long: `Starts the HTTP API: session management, target/tile uploads, mosaic
generation, and Deep Zoom tile serving.

Sessions are held in memory and evicted after the idle TTL; nothing is
persisted across restarts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := server.New(sessionTTL)

		stop := make(chan struct{})
		defer close(stop)
		srv.Sessions().StartSweeper(sweepInterval, stop)

		log.Printf("listening on %s (session ttl %s)", serveAddr, sessionTTL)
		if err := http.ListenAndServe(serveAddr, srv); err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().DurationVar(&sessionTTL, "session-ttl", 30*time.Minute, "idle time before a session is evicted")
	serveCmd.Flags().DurationVar(&sweepInterval, "sweep-interval", time.Minute, "how often expired sessions are swept")
	rootCmd.AddCommand(serveCmd)
}
