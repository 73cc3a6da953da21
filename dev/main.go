package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"packwatch/internal/components/db"
	"packwatch/internal/subscriber"
	"path/filepath"
	"strings"
)

const stateDir = "dev/.state"

const devConfig = `{
	catalog: {
		url: "https://store.gaijin.net/catalog.php",
	},
	solver: {
		url: "http://localhost:8191/v1",
	},
	interval: "@every 5m",
	database: {
		file: "dev/.state/packwatch.db",
	},
	email: {
		smtp: {
			server: "localhost",
			port: 1025,
			email_address: "packwatch@localhost",
			password: "default",
		},
		recipients: {},
	},
	nats: {
		url: "nats://localhost:4222",
	},
}
`

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	fmt.Printf("$ %s %s\n", name, strings.Join(args, " "))
	return cmd.Run()
}

func createLocalStack() error {
	return run("docker", "compose", "-f", "dev/local_stack/docker-compose.yml", "up", "-d")
}

func createDatabase(ctx context.Context) error {
	path := filepath.Join(stateDir, "packwatch.db")
	database, err := db.OpenDB(ctx, db.Config{File: path}, subscriber.Schema)
	if err != nil {
		return err
	}
	fmt.Println("subscriber database ready at", path)
	return database.Close()
}

func writeConfig() error {
	path := filepath.Join(stateDir, "config.json5")
	_, err := os.Stat(path)
	if err == nil {
		fmt.Println("config already exists at", path)
		return nil
	}
	err = os.WriteFile(path, []byte(devConfig), 0644)
	if err != nil {
		return err
	}
	fmt.Println("config written to", path)
	return nil
}

func create(ctx context.Context, recreate bool) error {
	_, err := os.Stat("go.mod")
	if os.IsNotExist(err) {
		return fmt.Errorf("the dev environment must be created in the repository root (the same directory as the 'go.mod' file)")
	}

	if recreate {
		err = os.RemoveAll(stateDir)
		if err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	err = os.MkdirAll(stateDir, 0777)
	if err != nil {
		return err
	}

	err = createLocalStack()
	if err != nil {
		return err
	}
	err = createDatabase(ctx)
	if err != nil {
		return err
	}
	return writeConfig()
}

func main() {
	recreate := flag.Bool("recreate", false, "recreate the dev environment from scratch")
	flag.Parse()

	err := create(context.Background(), *recreate)
	if err != nil {
		slog.Error("failed to create dev environment", "err", err.Error())
		os.Exit(1)
	}

	slog.Info("dev environment created, run: go run ./cmd/packwatch -c dev/.state/config.json5 watch --now")
}
