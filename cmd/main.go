package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/lifeos/memoryd/internal/app"
	"github.com/lifeos/memoryd/internal/utils"
)

func envTrue(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1" || strings.EqualFold(v, "yes")
}

func main() {
	fixturePath := flag.String("fixture", "", "path to a YAML segment-job fixture to replay onto the work queue, for local smoke-testing without a camera")
	flag.Parse()

	a, err := app.New()
	if err != nil {
		fmt.Printf("Failed to initialize app: %v\n", err)
		os.Exit(1)
	}
	defer a.Close()

	if *fixturePath != "" {
		if err := a.LoadFixture(context.Background(), *fixturePath); err != nil {
			fmt.Printf("Failed to load fixture: %v\n", err)
			os.Exit(1)
		}
	}

	runServer := envTrue("RUN_SERVER", true)
	runWorker := envTrue("RUN_WORKER", false)

	if runWorker {
		if err := a.StartWorkerPool(); err != nil {
			fmt.Printf("Failed to start worker pool: %v\n", err)
			os.Exit(1)
		}
	}

	if runServer {
		port := utils.GetEnv("PORT", "8080", a.Log)
		fmt.Printf("Server listening on :%s\n", port)
		if err := a.Run(":" + port); err != nil {
			a.Log.Warn("Server failed", "error", err)
		}
		return
	}

	// Worker-only container: keep process alive.
	select {}
}
