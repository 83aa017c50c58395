package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"jira-mcp-server/internal/application"
	"jira-mcp-server/internal/domain"
	"jira-mcp-server/internal/infrastructure"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	// Logs go to stderr so the stdio transport owns stdout.
	log.SetOutput(os.Stderr)

	config := loadConfig(*configPath)
	if err := config.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	httpClient, err := domain.NewAuthenticatedClient(
		domain.Credentials{Email: config.Jira.Email, APIToken: config.Jira.APIToken},
		time.Duration(config.Jira.RequestTimeoutSeconds)*time.Second,
	)
	if err != nil {
		log.Fatalf("Failed to create authenticated client: %v", err)
	}

	jiraClient := infrastructure.NewJiraClient(config.NormalizedBaseURL(), httpClient)
	logger := application.NewStructuredLogger()
	dispatcher := application.NewDispatcher(jiraClient, logger, config.Jira.MaxConcurrency)

	var transport domain.Transport
	switch config.Transport.Type {
	case "stdio":
		log.Println("Initializing stdio transport")
		transport = domain.NewStdioTransport()
	case "http":
		log.Printf("Initializing HTTP transport on %s:%d", config.Transport.HTTP.Host, config.Transport.HTTP.Port)
		transport = domain.NewHTTPTransport(config.Transport.HTTP.Host, config.Transport.HTTP.Port)
	default:
		log.Fatalf("Invalid transport type: %s", config.Transport.Type)
	}

	server := application.NewServer(transport, dispatcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v, shutting down", sig)
		cancel()
	case err := <-errChan:
		log.Printf("Server error: %v", err)
		cancel()
		if err := server.Close(); err != nil {
			log.Printf("Error closing server: %v", err)
		}
		os.Exit(1)
	}

	if err := server.Close(); err != nil {
		log.Printf("Error during server shutdown: %v", err)
		os.Exit(1)
	}
	log.Println("Server shutdown complete")
}

// loadConfig reads the YAML file when present and layers ATLASSIAN_*
// environment variables on top, so the server can run with no config file
// at all in MCP launcher setups that only pass environment.
func loadConfig(path string) *domain.Config {
	var config *domain.Config
	if _, err := os.Stat(path); err == nil {
		config, err = domain.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
		log.Printf("Configuration loaded from %s", path)
	} else {
		config = domain.DefaultConfig()
		log.Printf("No configuration file at %s, using environment", path)
	}

	v := viper.New()
	v.SetEnvPrefix("atlassian")
	v.AutomaticEnv()
	if host := v.GetString("host"); host != "" {
		config.Jira.BaseURL = host
	}
	if email := v.GetString("email"); email != "" {
		config.Jira.Email = email
	}
	if token := v.GetString("token"); token != "" {
		config.Jira.APIToken = token
	}

	return config
}
