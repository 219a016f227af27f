package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/hireloop-dev/hireloop-store/internal/api"
	"github.com/hireloop-dev/hireloop-store/internal/engine"
	"github.com/hireloop-dev/hireloop-store/internal/server"
	"github.com/hireloop-dev/hireloop-store/internal/vault"
)

// loadConfig reads settings from, in order of precedence: HIRELOOP_*
// environment variables, an optional hireloop.yaml next to the binary,
// and the built-in defaults. A .env file is folded into the environment
// first so local development needs no shell exports.
func loadConfig() *viper.Viper {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HIRELOOP")
	v.AutomaticEnv()

	v.SetDefault("data_dir", "./data")
	v.SetDefault("port", "7001")
	v.SetDefault("http_port", "7002")
	v.SetDefault("disable_tls", false)
	v.SetDefault("storage", "memory")
	v.SetDefault("sqlite_path", "./data/hireloop.db")
	v.SetDefault("migrate_from_json", false)
	v.SetDefault("notes_key", "")

	v.SetConfigName("hireloop")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/hireloop")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Fatalf("Failed to read config file: %v", err)
		}
	}
	return v
}

// openStore brings up the configured backend. The sqlite backend can
// optionally import an existing JSON data directory on first start.
func openStore(v *viper.Viper) engine.Store {
	switch v.GetString("storage") {
	case "sqlite":
		store, err := engine.OpenSQLite(v.GetString("sqlite_path"))
		if err != nil {
			log.Fatalf("Failed to open sqlite store: %v", err)
		}
		fmt.Printf("Engine started (sqlite, %s).\n", v.GetString("sqlite_path"))

		if v.GetBool("migrate_from_json") {
			if err := importJSON(v.GetString("data_dir"), store); err != nil {
				log.Fatalf("Migration from JSON failed: %v", err)
			}
		}
		return store

	case "memory":
		persister, err := engine.NewPersistence(v.GetString("data_dir"))
		if err != nil {
			log.Fatalf("Failed to initialize persistence: %v", err)
		}
		initialData, err := persister.LoadAll()
		if err != nil {
			log.Printf("Warning: Could not load existing data: %v", err)
		}
		store := engine.NewMemStore(initialData, persister)
		fmt.Printf("Engine started (memory). Loaded %d collections.\n", len(initialData))
		return store

	default:
		log.Fatalf("Unknown storage backend %q (want memory or sqlite)", v.GetString("storage"))
		return nil
	}
}

func importJSON(dataDir string, dst engine.Store) error {
	persister, err := engine.NewPersistence(dataDir)
	if err != nil {
		return err
	}
	data, err := persister.LoadAll()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	src := engine.NewMemStore(data, nil)
	fmt.Printf("Importing %d JSON collections into sqlite...\n", len(data))
	return engine.Migrate(src, dst)
}

func main() {
	fmt.Println("Starting Hireloop Store Daemon...")

	cfg := loadConfig()
	store := openStore(cfg)

	// TCP Router
	router := server.NewRouter(store)

	if !cfg.GetBool("disable_tls") {
		fmt.Println("Generating self-signed certificate for internal TLS...")
		cert, err := vault.GenerateSelfSignedCert()
		if err != nil {
			log.Fatalf("Failed to generate TLS certificate: %v", err)
		}
		router.SetCertificate(cert)
		fmt.Println("TLS encryption enabled.")
	} else {
		fmt.Println("TLS encryption disabled (HIRELOOP_DISABLE_TLS=true).")
	}

	// HTTP API
	var notesKey []byte
	if k := cfg.GetString("notes_key"); k != "" {
		notesKey = []byte(k)
	}
	h := api.NewHandler(store, notesKey)
	r := gin.Default()

	// CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PATCH, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-User-ID, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	h.Register(r)

	httpPort := cfg.GetString("http_port")
	go func() {
		fmt.Printf("HTTP API listening on :%s\n", httpPort)
		if err := r.Run(":" + httpPort); err != nil {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutdown signal received. Finalizing writes...")
		router.Stop()
		if err := store.Close(); err != nil {
			log.Printf("Warning: store close failed: %v", err)
		}
		fmt.Println("Persistence complete. Exiting.")
		os.Exit(0)
	}()

	port := cfg.GetString("port")
	fmt.Printf("Hireloop Engine listening on :%s (TCP)\n", port)
	if err := router.Listen(port); err != nil {
		select {
		case <-sigChan:
		default:
			log.Fatalf("TCP Server failed: %v", err)
		}
	}
}
