// main.go
//
// A hypertext-driven ITSM REST API service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of itsm-api.
// itsm-api is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// itsm-api is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with itsm-api.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/localnerve/itsm-api/docs/api" // Swagger docs
)

// @title ITSM API
// @version 1.0.0
// @description Hypertext-driven REST API for IT service management
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/itsm-api
// @contact.email info@localnerve.com

// @license.name AGPL-3.0
// @license.url https://www.gnu.org/licenses/agpl-3.0.html

// @host localhost:3000
// @BasePath /
// @schemes http https

var envFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "itsm-api",
		Short: "Hypertext-driven ITSM REST API",
		Long: `itsm-api serves users, customers, tickets, comments and attachments as
linked resources. Without a subcommand it starts the HTTP server.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile == "" {
				return nil
			}
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load environment file %s: %w", envFile, err)
			}
			return nil
		},
		RunE: runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&envFile, "env-file", "f", "", "path to a .env file")

	rootCmd.AddCommand(newServeCommand(), newSeedCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
