// Package cmd provides CLI commands for the tablekeeper tool.
//
// This package implements the command-line interface for tablekeeper,
// providing commands for project scaffolding, migration planning and
// execution, and status reporting against PostgreSQL databases.
//
// # Available Commands
//
// The cmd package currently provides:
//   - init: Initialize a new tablekeeper project structure
//   - plan: Show the DDL that migrate would execute
//   - migrate: Apply the schema model to the target database
//   - status: Show the migration state and history
//
// # Command Structure
//
// Each command is implemented as a separate function that returns a
// *cli.Command, following the urfave/cli/v3 pattern. Commands are
// designed to be composable and testable, with proper error handling
// and comprehensive help text.
//
// # Global Options
//
// All commands support global flags:
//   - --dir, -d: Specify project directory (defaults to current directory)
//   - --help, -h: Display command help
//   - --version: Display version information
//
// # Example Usage
//
//	tablekeeper init                                        # Initialize project
//	tablekeeper plan                                        # Preview pending DDL
//	tablekeeper migrate --url postgres://localhost/app      # Apply the model
//	tablekeeper status --verbose                            # Inspect history
package cmd
