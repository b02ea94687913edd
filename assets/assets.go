// Package assets embeds the files the binaries need at runtime.
package assets

import "embed"

// FS holds the SQL migrations (migrations/) and the email templates (templates/email/).
//
//go:embed migrations/*.sql templates/email/*
var FS embed.FS

// MigrationsDir is the goose migrations directory inside FS.
const MigrationsDir = "migrations"
