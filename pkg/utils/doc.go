// Package utils provides small shared helpers used throughout the
// Tablekeeper codebase: PostgreSQL identifier and literal quoting for
// generated DDL, and pointer helpers for optional values.
package utils
