// Command seed populates the puzzle catalog with 25 sample puzzles, cycling
// through the built-in generator types. It skips seeding when the catalog is
// already populated.
package main

import (
	"database/sql"
	"fmt"
	"log"

	"github.com/codearena/puzzleduel-backend/config"
	"github.com/codearena/puzzleduel-backend/db"
	"github.com/codearena/puzzleduel-backend/internal/puzzle"
)

var generatorTypes = []string{"crystal_sum", "pattern_counter", "grid_path", "sequence_finder", "tower_blocks"}

var titles = map[string]string{
	"crystal_sum":     "Crystal Collection Day %d",
	"pattern_counter": "Pattern Recognition %d",
	"grid_path":       "Maze Navigator %d",
	"sequence_finder": "Sequence Decoder %d",
	"tower_blocks":    "Tower Builder %d",
}

var descriptions = map[string]string{
	"crystal_sum":     "Given a list of crystal energy readings, find the sum of all readings that are multiples of 3 or 5.",
	"pattern_counter": "Count every occurrence of the pattern in the text, overlapping matches included.",
	"grid_path":       "Find the maximum sum of a path from the top-left to the bottom-right of the grid, moving only right or down.",
	"sequence_finder": "Work out the rule behind the sequence and give the next three numbers, separated by spaces.",
	"tower_blocks":    "Remove a contiguous run of blocks from the tower to maximize the total value; removing nothing scores zero.",
}

func difficultyFor(day int) string {
	switch {
	case day <= 8:
		return "easy"
	case day <= 17:
		return "medium"
	default:
		return "hard"
	}
}

func main() {
	cfg := config.LoadConfig()
	database, err := db.Connect(cfg.DBUrl)
	if err != nil {
		log.Fatal("Failed to connect database:", err)
	}
	defer database.Close()

	// Unknown generator types are a configuration error; fail before writing
	// anything.
	registry := puzzle.DefaultRegistry()
	for _, gt := range generatorTypes {
		if _, err := registry.Lookup(gt); err != nil {
			log.Fatal("Bad seed configuration:", err)
		}
	}

	if err := seed(database); err != nil {
		log.Fatal("Seeding failed:", err)
	}
}

func seed(database *sql.DB) error {
	var existing int
	if err := database.QueryRow("SELECT COUNT(*) FROM puzzles").Scan(&existing); err != nil {
		return fmt.Errorf("failed to count puzzles: %w", err)
	}
	if existing > 0 {
		log.Printf("Database already has %d puzzles, skipping seed", existing)
		return nil
	}

	for day := 1; day <= 25; day++ {
		gt := generatorTypes[(day-1)%len(generatorTypes)]
		_, err := database.Exec(`
			INSERT INTO puzzles (day, title, description, difficulty, generator_type, generator_params, is_active)
			VALUES ($1, $2, $3, $4, $5, '{}', TRUE)
		`, day, fmt.Sprintf(titles[gt], day), descriptions[gt], difficultyFor(day), gt)
		if err != nil {
			return fmt.Errorf("failed to insert puzzle for day %d: %w", day, err)
		}
		log.Printf("Created: Day %2d - %s (%s)", day, fmt.Sprintf(titles[gt], day), difficultyFor(day))
	}
	log.Println("Seeded 25 puzzles")
	return nil
}
