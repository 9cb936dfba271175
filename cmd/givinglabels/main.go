package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/homemade/givinglabels/labeler"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "givinglabels",
	Short:        "Apply campus based giving labels to recent Planning Center donations",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		fmt.Printf("Applying Giving Labels run %s\n", time.Now().Format("2006-01-02 03:04 PM"))

		api := labeler.NewAPIClient("", cfg.PersonalAccessToken)
		auth := labeler.NewAuthStrategy(cfg.Login, "", "")
		mutator := labeler.NewLabelMutator("")
		pipeline := labeler.NewPipeline(cfg, api, auth, mutator)
		if err := pipeline.Run(context.Background()); err != nil {
			return err
		}

		fmt.Println("done")
		return nil
	},
}

var checkCmd = &cobra.Command{
	Use:          "check",
	Short:        "Validate the config file and print the campus to label mappings",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		fmt.Printf("config ok: %d campus mapping(s), %d day window\n", len(cfg.ApplyLabelsToDonations), cfg.DaysToLookBack)
		for campus, slug := range cfg.LabelMappings() {
			fmt.Printf("  %s -> %s\n", campus, slug)
		}
		if cfg.Login.UsesCookie() {
			fmt.Println("web session: cookie reuse")
		} else {
			fmt.Printf("web session: form login as %s\n", cfg.Login.Email)
		}
		return nil
	},
}

func loadConfig() (labeler.Config, error) {
	path := configPath
	if path == "" {
		path = defaultConfigPath()
	}
	if _, err := os.Stat(path); err != nil {
		return labeler.Config{}, fmt.Errorf("you must create a config.yml file (looked for %s)", path)
	}
	return labeler.LoadConfigFile(path)
}

// defaultConfigPath resolves config.yml beside the binary, falling back to
// the working directory when the executable path cannot be determined.
func defaultConfigPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "config.yml"
	}
	return filepath.Join(filepath.Dir(exe), "config.yml")
}

func main() {
	// Secrets referenced from config.yml as ${VAR} may live in a .env file.
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yml (default: beside the binary)")
	rootCmd.AddCommand(checkCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
