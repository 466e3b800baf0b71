package persistence

import "embed"

//go:embed schema/crm-schema.sql
var MigrationFiles embed.FS

// Schema is the raw DDL, exposed for test fixtures that build throwaway
// databases without the migration manager.
//
//go:embed schema/crm-schema.sql
var Schema string
