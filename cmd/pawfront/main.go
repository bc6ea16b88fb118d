package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	internal "github.com/pawmart/pawfront/internal"
	"github.com/pawmart/pawfront/internal/config"
	"github.com/pawmart/pawfront/internal/log"
)

const starterConfig = `{
  "version": "v1",
  "front": {
    "baseURL": "http://localhost:8080",
    "addr": ":8080",
    "resourceBaseURL": {"$env": "PAWMART_API_URL"},
    "storage": "memory",
    "signingSecret": {"$env": "PAWFRONT_SIGNING_SECRET"},
    "encryptionKey": {"$env": "PAWFRONT_ENCRYPTION_KEY"},
    "sessions": {
      "timeout": "720h",
      "cleanupInterval": "1h",
      "rotationInterval": "45m"
    },
    "identity": {
      "firebaseApiKey": {"$env": "FIREBASE_API_KEY"}
    }
  }
}
`

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	validate := flag.Bool("validate", false, "validate the config and exit")
	configInit := flag.Bool("config-init", false, "write a starter config and exit")
	flag.Parse()

	if *configInit {
		if _, err := os.Stat(*configPath); err == nil {
			fmt.Fprintf(os.Stderr, "refusing to overwrite existing %s\n", *configPath)
			os.Exit(1)
		}
		if err := os.WriteFile(*configPath, []byte(starterConfig), 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "writing config: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Wrote starter config to %s\n", *configPath)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	if *validate {
		fmt.Println("Config is valid")
		return
	}

	if err := internal.Run(context.Background(), cfg); err != nil {
		log.LogError("pawfront exited: %v", err)
		os.Exit(1)
	}
}
