// Package appfs embeds the files the binaries ship with: SQL migrations per engine and email templates.
package appfs

import "embed"

//go:embed migrations all:templates
var FS embed.FS
