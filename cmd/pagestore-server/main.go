package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mnohosten/pagestore/pkg/adminserver"
	"github.com/mnohosten/pagestore/pkg/encryption"
	"github.com/mnohosten/pagestore/pkg/metrics"
	"github.com/mnohosten/pagestore/pkg/storage"
)

// encryptionConfig derives the page-encryption key from passphrase,
// reusing the salt persisted alongside the data directory so pages
// written in a previous run stay readable.
func encryptionConfig(dataDir, passphrase string) (*encryption.Config, error) {
	saltPath := filepath.Join(dataDir, "pagestore.salt")

	salt, err := os.ReadFile(saltPath)
	if err == nil {
		return encryption.NewConfigFromPasswordAndSalt(passphrase, salt, encryption.AlgorithmAES256GCM)
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read salt file %s: %w", saltPath, err)
	}

	config, err := encryption.NewConfigFromPassword(passphrase, encryption.AlgorithmAES256GCM)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(saltPath, config.Salt, 0o600); err != nil {
		return nil, fmt.Errorf("write salt file %s: %w", saltPath, err)
	}
	return config, nil
}

func main() {
	host := flag.String("host", "localhost", "Admin server host address")
	port := flag.Int("port", 8080, "Admin server port")
	dataDir := flag.String("data-dir", "./data", "Data directory for page storage")
	bufferSize := flag.Int("buffer-size", 1000, "Buffer pool size in pages (1 page = 4KB, default 1000 = ~4MB)")
	corsOrigin := flag.String("cors-origin", "*", "CORS allowed origin")
	enableTLS := flag.Bool("tls", false, "Enable TLS/SSL")
	tlsCert := flag.String("tls-cert", "", "Path to TLS certificate file")
	tlsKey := flag.String("tls-key", "", "Path to TLS private key file")
	enableGraphQL := flag.Bool("graphql", false, "Enable GraphQL API endpoint (/graphql)")
	encryptPassphrase := flag.String("encrypt-passphrase", "", "Encrypt pages at rest with a key derived from this passphrase")
	flag.Parse()

	tracker := metrics.NewResourceTracker(nil)

	engineConfig := storage.DefaultConfig()
	engineConfig.DataDir = *dataDir
	engineConfig.BufferPoolSize = *bufferSize
	engineConfig.WrapFileManager = func(fm storage.FileManager) (storage.FileManager, error) {
		fm = metrics.NewTrackedFileManager(fm, tracker)
		if *encryptPassphrase == "" {
			return fm, nil
		}
		encConfig, err := encryptionConfig(*dataDir, *encryptPassphrase)
		if err != nil {
			return nil, err
		}
		return encryption.NewEncryptedFileManager(fm, encConfig)
	}

	engine, err := storage.NewEngine(engineConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open storage engine: %v\n", err)
		os.Exit(1)
	}

	config := adminserver.DefaultConfig()
	config.Host = *host
	config.Port = *port
	config.AllowedOrigins = []string{*corsOrigin}
	config.EnableTLS = *enableTLS
	config.TLSCertFile = *tlsCert
	config.TLSKeyFile = *tlsKey
	config.EnableGraphQL = *enableGraphQL
	config.Tracker = tracker

	srv, err := adminserver.New(config, engine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create admin server: %v\n", err)
		engine.Close()
		os.Exit(1)
	}

	protocol := "http"
	if config.EnableTLS {
		protocol = "https"
	}
	log.Printf("pagestore admin server starting on %s://%s:%d", protocol, config.Host, config.Port)
	log.Printf("data directory: %s, buffer pool: %d pages", *dataDir, *bufferSize)

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			fmt.Fprintf(os.Stderr, "admin server error: %v\n", err)
		}
	case sig := <-sigChan:
		log.Printf("received signal: %v, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "admin server shutdown error: %v\n", err)
	}
	if err := engine.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "storage engine close error: %v\n", err)
		os.Exit(1)
	}
	log.Println("shutdown complete")
}
