/*
Copyright 2025 Taco Labs Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tacolabs/nacho"
	"github.com/tacolabs/nacho/config"
	"github.com/tacolabs/nacho/database"
)

// Nacho represents the CLI application, encapsulating the root Cobra command.
type Nacho struct {
	cmd *cobra.Command
}

// nachoInstance holds the running service and its configuration so that
// subcommands share a single datasource and queue client.
type nachoInstance struct {
	nacho *nacho.Nacho
	cnf   *config.Configuration
}

func recoverPanic() {
	if rec := recover(); rec != nil {
		logrus.Error(rec)
		os.Exit(1)
	}
}

// preRun loads the configuration and initializes the service instance before
// any subcommand executes.
func preRun(app *nachoInstance) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := config.InitConfig("nacho.json")
		if err != nil {
			log.Fatal("error loading config", err)
		}

		cnf, err := config.Fetch()
		if err != nil {
			return err
		}

		newNacho, err := setupNacho(cnf)
		if err != nil {
			log.Fatal(err)
		}

		app.nacho = newNacho
		app.cnf = cnf

		return nil
	}
}

func setupNacho(cfg *config.Configuration) (*nacho.Nacho, error) {
	db, err := database.NewDataSource(cfg)
	if err != nil {
		return nil, fmt.Errorf("error getting datasource: %v", err)
	}

	newNacho, err := nacho.NewNacho(db)
	if err != nil {
		return nil, fmt.Errorf("error creating nacho: %v", err)
	}
	return newNacho, nil
}

// NewCLI builds the command-line interface with the server, workers and
// migration subcommands attached.
func NewCLI() *Nacho {
	var configFile string
	n := &nachoInstance{}

	var rootCmd = &cobra.Command{
		Use:   "nacho",
		Short: "Social engagement rewards service",
		Run:   func(cmd *cobra.Command, args []string) {},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "./nacho.json", "Configuration file for nacho")

	rootCmd.PersistentPreRunE = preRun(n)

	rootCmd.AddCommand(serverCommands(n))
	rootCmd.AddCommand(workerCommands(n))
	rootCmd.AddCommand(migrateCommands(n))

	return &Nacho{cmd: rootCmd}
}

func (w Nacho) executeCLI() {
	if err := w.cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	defer recoverPanic()

	cli := NewCLI()
	cli.executeCLI()
}
