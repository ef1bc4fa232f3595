// Package main provides a tool to seed the campus backend with catalog
// content and demo students.
//
// Usage:
//
//	go run ./cmd/seed catalog                    # built-in demo catalog
//	go run ./cmd/seed catalog ./my-campus.yaml   # custom catalog
//	go run ./cmd/seed students --count 20        # demo students with points
package main

import (
	"context"
	_ "embed"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ecocampus/ecocampus-server/internal/auth"
	"github.com/ecocampus/ecocampus-server/internal/backend/sqlite"
	"github.com/ecocampus/ecocampus-server/internal/domain"
	"github.com/ecocampus/ecocampus-server/internal/logger"
)

//go:embed catalog.yaml
var demoCatalog []byte

var (
	dataPath string
	timezone string
	envFile  string

	studentCount  int
	maxPoints     int
	studentPrefix string
)

var departments = []string{"FY BSc IT", "SY BSc IT", "BMS", "BCom", "BAF", "BMM"}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the EcoCampus backend",
	Long: `Seed the EcoCampus backend with catalog content and demo students.

Available subcommands:
  catalog  - Import stores, quizzes, challenges, events, coupons, sports and movies
  students - Create demo students spread over departments`,
	PersistentPreRun: func(*cobra.Command, []string) {
		// Missing .env is fine.
		_ = godotenv.Load(envFile)
		if dataPath == "" {
			dataPath = os.Getenv("DATA_PATH")
		}
		if dataPath == "" {
			home, _ := os.UserHomeDir()
			dataPath = filepath.Join(home, "ecocampus")
		}
	},
}

// catalogCmd imports a YAML catalog
var catalogCmd = &cobra.Command{
	Use:   "catalog [file]",
	Short: "Import a YAML catalog",
	Long: `Import a YAML catalog into the backend. Without a file the built-in
demo catalog is used. Rows that already exist are left untouched, so the
command can be re-run safely.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCatalog,
}

// studentsCmd creates demo students
var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Create demo students with random points",
	RunE:  runStudents,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataPath, "data-path", "", "Data directory (default: $DATA_PATH or ~/ecocampus)")
	rootCmd.PersistentFlags().StringVar(&timezone, "timezone", "Asia/Kolkata", "Campus timezone for quiz dates")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to .env file")

	studentsCmd.Flags().IntVarP(&studentCount, "count", "n", 12, "Number of students to create")
	studentsCmd.Flags().IntVar(&maxPoints, "max-points", 500, "Upper bound for random starting points")
	studentsCmd.Flags().StringVar(&studentPrefix, "prefix", "demo", "Email prefix for created students")

	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(studentsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openStore opens the backend with the server's signing key.
func openStore() (*sqlite.Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data path: %w", err)
	}
	key, err := auth.LoadOrGenerateKey(os.Getenv("ACCESS_TOKEN_KEY"), dataPath)
	if err != nil {
		return nil, err
	}
	tokens, err := auth.NewTokenService(key, time.Hour)
	if err != nil {
		return nil, err
	}
	log := logger.New(logger.Config{Level: logger.ParseLevel(os.Getenv("LOG_LEVEL"))})
	return sqlite.Open(filepath.Join(dataPath, "campus.db"), tokens, log.Logger)
}

func runCatalog(cmd *cobra.Command, args []string) error {
	data := demoCatalog
	source := "built-in demo catalog"
	if len(args) == 1 {
		var err error
		if data, err = os.ReadFile(args[0]); err != nil {
			return fmt.Errorf("read catalog: %w", err)
		}
		source = args[0]
	}

	catalog, err := sqlite.ParseCatalog(data)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.ImportCatalog(cmd.Context(), catalog, loc); err != nil {
		return err
	}

	products := 0
	for _, s := range catalog.Stores {
		products += len(s.Products)
	}
	fmt.Printf("Imported %s into %s\n", source, dataPath)
	fmt.Printf("  %d stores, %d products, %d quizzes, %d challenges\n",
		len(catalog.Stores), products, len(catalog.Quizzes), len(catalog.Challenges))
	fmt.Printf("  %d events, %d coupons, %d sports, %d movies\n",
		len(catalog.Events), len(catalog.Coupons), len(catalog.Sports), len(catalog.Movies))
	return nil
}

func runStudents(cmd *cobra.Command, _ []string) error {
	if studentCount <= 0 {
		return fmt.Errorf("--count must be positive")
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	created := 0
	for n := 1; n <= studentCount; n++ {
		email := fmt.Sprintf("%s%02d@campus.edu", studentPrefix, n)
		sess, err := store.SignUp(ctx, domain.SignUpRequest{
			Email:     email,
			Password:  "greenleaf",
			FullName:  fmt.Sprintf("Demo Student %02d", n),
			StudentID: fmt.Sprintf("DEMO%04d", n),
			Course:    departments[(n-1)%len(departments)],
		})
		if err != nil {
			fmt.Printf("  skip %s: %v\n", email, err)
			continue
		}

		profile, err := store.GetProfileByAuthID(ctx, sess.AuthUserID)
		if err != nil {
			return err
		}
		if points := rand.IntN(maxPoints + 1); points > 0 {
			if _, err := store.InsertLedger(ctx, domain.LedgerEntry{
				UserID:      profile.ID,
				SourceType:  domain.SourceEvent,
				Description: "Welcome bonus",
				PointsDelta: points,
			}); err != nil {
				return err
			}
		}
		created++
		fmt.Printf("  created %s (%s)\n", email, profile.Course)
	}

	fmt.Printf("Created %d of %d students. Password for all: greenleaf\n", created, studentCount)
	return nil
}
