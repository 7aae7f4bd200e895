// Command companiond serves the companion chat surface: durable
// SQLite-backed conversation memory, a chromem semantic index, and
// Claude behind the response pipeline, exposed over a websocket.
package main

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/sentientlabs/companion-sdk/llm/claude"
	"github.com/sentientlabs/companion-sdk/memory"
	checkpointsqlite "github.com/sentientlabs/companion-sdk/memory/checkpoint/sqlite"
	"github.com/sentientlabs/companion-sdk/memory/embedder/mock"
	"github.com/sentientlabs/companion-sdk/memory/index/chromem"
	logsqlite "github.com/sentientlabs/companion-sdk/memory/log/sqlite"
	"github.com/sentientlabs/companion-sdk/persona"
	"github.com/sentientlabs/companion-sdk/pipeline"
	"github.com/sentientlabs/companion-sdk/server"
)

func main() {
	_ = godotenv.Load()

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		log.Fatal("ANTHROPIC_API_KEY environment variable is required")
	}

	dataDir := os.Getenv("COMPANIOND_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	checkpoints, err := checkpointsqlite.Open(filepath.Join(dataDir, "checkpoints.db"))
	if err != nil {
		log.Fatalf("open checkpoint store: %v", err)
	}
	defer checkpoints.Close()

	journal, err := logsqlite.Open(filepath.Join(dataDir, "messages.db"))
	if err != nil {
		log.Fatalf("open message log: %v", err)
	}
	defer journal.Close()

	// The mock embedder keeps the binary self-contained. Build with
	// -tags onnx and swap in the onnx embedder for real semantic
	// recall.
	index, err := chromem.NewPersistent(filepath.Join(dataDir, "index"), mock.New())
	if err != nil {
		log.Fatalf("open semantic index: %v", err)
	}

	personas, err := loadPersonas(os.Getenv("COMPANIOND_PERSONAS"))
	if err != nil {
		log.Fatalf("load personas: %v", err)
	}

	builder, err := persona.NewCachedBuilder()
	if err != nil {
		log.Fatalf("create prompt cache: %v", err)
	}

	model := claude.New(claude.Config{
		APIKey: apiKey,
		Model:  os.Getenv("COMPANIOND_MODEL"),
	})

	engine := pipeline.NewEngine(model, pipeline.WithPromptBuilder(builder))
	svc := pipeline.NewService(engine, personas, func(key memory.ConversationKey) *memory.Manager {
		return memory.NewManager(key, checkpoints, index, journal, nil)
	})

	srv := server.New(svc)
	log.Printf("Companion chat: ws://localhost:%s/ws", port)
	if err := srv.Run(":" + port); err != nil {
		log.Fatal(err)
	}
}

// loadPersonas reads a JSON file mapping companion ids to persona
// configs. Without one, a single default companion is served.
func loadPersonas(path string) (pipeline.StaticPersonas, error) {
	if path == "" {
		return pipeline.StaticPersonas{
			"default": {
				Name:       "Aria",
				Identity:   "Aria, a curious and upbeat companion",
				Traits:     persona.DefaultTraits(),
				Moderation: persona.DefaultModeration(),
			},
		}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var personas pipeline.StaticPersonas
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, err
	}
	for id, cfg := range personas {
		if err := cfg.Validate(); err != nil {
			log.Fatalf("persona %s: %v", id, err)
		}
	}
	return personas, nil
}
