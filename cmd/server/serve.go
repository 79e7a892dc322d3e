package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"roster-service/internal/app"
	"roster-service/internal/config"
	"roster-service/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(context.Background(), func(a *app.App, cfg *config.Config) error {
			gin.SetMode(cfg.Server.Mode)
			router := gin.New()
			router.Use(gin.Recovery(), app.RequestID(), app.RequestLogger(a.Log))
			a.Routes(router)

			return server.Run(router, cfg.Server.Port, a.Log)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
