// Command seed_catalog loads a starter platform catalog into the database.
// Entries already present (matched by name) are skipped, so the script is
// safe to re-run.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/hearthschool/hub-api/internal/models"
	"github.com/hearthschool/hub-api/pkg/config"
	"github.com/hearthschool/hub-api/pkg/database"
)

type seedEntry struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Subject     string `json:"subject"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

var defaultCatalog = []seedEntry{
	{Name: "Khan Academy", URL: "https://www.khanacademy.org", Subject: "math", Type: "subject", Description: "Free practice and video lessons for K-12 math"},
	{Name: "Prodigy", URL: "https://www.prodigygame.com", Subject: "math", Type: "subject", Description: "Game-based math practice"},
	{Name: "Duolingo", URL: "https://www.duolingo.com", Subject: "languages", Type: "subject", Description: "Gamified language courses"},
	{Name: "Mystery Science", URL: "https://mysteryscience.com", Subject: "science", Type: "subject", Description: "Hands-on science lessons for elementary grades"},
	{Name: "CodeCombat", URL: "https://codecombat.com", Subject: "programming", Type: "subject", Description: "Learn to code through play"},
	{Name: "Typing Club", URL: "https://www.typingclub.com", Subject: "typing", Type: "subject", Description: "Structured touch-typing curriculum"},
	{Name: "Khan Academy Kids", URL: "https://learn.khanacademy.org/khan-academy-kids", Subject: "", Type: "general", Description: "All-subject foundation for young learners"},
	{Name: "Outschool", URL: "https://outschool.com", Subject: "", Type: "general", Description: "Live online classes across every subject"},
	{Name: "BrainPOP", URL: "https://www.brainpop.com", Subject: "", Type: "general", Description: "Animated lessons covering the full curriculum"},
}

func main() {
	var catalogPath string
	flag.StringVar(&catalogPath, "catalog", "", "Path to a JSON catalog file (defaults to the built-in list)")
	flag.Parse()

	entries := defaultCatalog
	if catalogPath != "" {
		data, err := os.ReadFile(catalogPath)
		if err != nil {
			log.Fatalf("failed to read catalog file: %v", err)
		}
		if err := json.Unmarshal(data, &entries); err != nil {
			log.Fatalf("failed to parse catalog file: %v", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inserted, skipped := 0, 0
	for _, entry := range entries {
		var exists bool
		if err := db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM platforms WHERE name = $1)`, entry.Name); err != nil {
			log.Fatalf("failed to check %q: %v", entry.Name, err)
		}
		if exists {
			skipped++
			continue
		}

		now := time.Now().UTC()
		platform := models.Platform{
			ID:          uuid.NewString(),
			Name:        entry.Name,
			URL:         entry.URL,
			Subject:     entry.Subject,
			Type:        models.PlatformType(entry.Type),
			Description: entry.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		const query = `
			INSERT INTO platforms (id, name, url, subject, type, description, created_at, updated_at)
			VALUES (:id, :name, :url, :subject, :type, :description, :created_at, :updated_at)`
		if _, err := db.NamedExecContext(ctx, query, platform); err != nil {
			log.Fatalf("failed to insert %q: %v", entry.Name, err)
		}
		inserted++
	}

	log.Printf("catalog seeded: %d inserted, %d skipped", inserted, skipped)
}
