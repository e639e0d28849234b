package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/atlas/internal/profile"
	"github.com/hrygo/atlas/internal/version"
	"github.com/hrygo/atlas/server"
	"github.com/hrygo/atlas/store"
	"github.com/hrygo/atlas/store/db"
)

var rootCmd = &cobra.Command{
	Use:     "atlas",
	Short:   `Atlas turns notes, projects and reading lists into a navigable knowledge map.`,
	Version: version.GetCurrentVersion(viper.GetString("mode")),
	Run: func(cmd *cobra.Command, _ []string) {
		runServe(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and serve the map API",
	Run: func(cmd *cobra.Command, _ []string) {
		runServe(cmd.Context())
	},
}

// loadProfile builds the profile from flags, ATLAS_* environment variables
// and defaults, in that order of precedence.
func loadProfile() (*profile.Profile, error) {
	instanceProfile := &profile.Profile{
		Mode:   viper.GetString("mode"),
		Addr:   viper.GetString("addr"),
		Port:   viper.GetInt("port"),
		Data:   viper.GetString("data"),
		Driver: viper.GetString("driver"),
		DSN:    viper.GetString("dsn"),
	}
	instanceProfile.Version = version.GetCurrentVersion(instanceProfile.Mode)
	instanceProfile.FromEnv()
	if err := instanceProfile.Validate(); err != nil {
		return nil, err
	}
	configureLogger(instanceProfile)
	return instanceProfile, nil
}

func configureLogger(p *profile.Profile) {
	level := slog.LevelInfo
	if p.IsDev() {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// openStore opens and migrates the store of the profile.
func openStore(ctx context.Context, p *profile.Profile) (*store.Store, error) {
	dbDriver, err := db.NewDBDriver(p)
	if err != nil {
		return nil, err
	}
	storeInstance := store.New(dbDriver, p)
	if err := storeInstance.Migrate(ctx); err != nil {
		_ = storeInstance.Close()
		return nil, err
	}
	return storeInstance, nil
}

func runServe(parent context.Context) {
	if parent == nil {
		parent = context.Background()
	}
	instanceProfile, err := loadProfile()
	if err != nil {
		slog.Error("failed to validate profile", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(parent)
	storeInstance, err := openStore(ctx, instanceProfile)
	if err != nil {
		cancel()
		slog.Error("failed to open store", "error", err)
		return
	}

	s, err := server.NewServer(ctx, instanceProfile, storeInstance)
	if err != nil {
		cancel()
		slog.Error("failed to create server", "error", err)
		return
	}

	c := make(chan os.Signal, 1)
	// Trigger graceful shutdown on SIGINT or SIGTERM.
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	if err := s.Start(ctx); err != nil {
		cancel()
		slog.Error("failed to start server", "error", err)
		return
	}

	printGreetings(instanceProfile)

	go func() {
		<-c
		s.Shutdown(ctx)
		cancel()
	}()

	<-ctx.Done()
}

func printGreetings(p *profile.Profile) {
	fmt.Printf("Atlas %s started successfully!\n", p.Version)
	fmt.Printf("Data directory: %s\n", p.Data)
	fmt.Printf("Database driver: %s\n", p.Driver)
	fmt.Printf("Mode: %s\n", p.Mode)
	if p.Addr == "" {
		fmt.Printf("Server running on port %d\n", p.Port)
	} else {
		fmt.Printf("Server running on %s:%d\n", p.Addr, p.Port)
	}
}

func init() {
	viper.SetDefault("mode", "demo")
	viper.SetDefault("driver", "sqlite")
	viper.SetDefault("port", 8081)

	flags := rootCmd.PersistentFlags()
	flags.String("mode", "demo", `mode of server, can be "prod" or "dev" or "demo"`)
	flags.String("addr", "", "address of server")
	flags.Int("port", 8081, "port of server")
	flags.String("data", "", "data directory")
	flags.String("driver", "sqlite", "database driver")
	flags.String("dsn", "", "database source name(aka. DSN)")

	for _, name := range []string{"mode", "addr", "port", "data", "driver", "dsn"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	viper.SetEnvPrefix("atlas")
	viper.AutomaticEnv()

	rootCmd.AddCommand(serveCmd, newGenerateCmd(), newMigrateCmd(), newImportCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
