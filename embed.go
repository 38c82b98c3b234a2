package spacetraveling

import "embed"

// EmbeddedAssets contains the static assets served under /public/:
// app.js, style.css, logo.svg
//
//go:embed embedded/*
var EmbeddedAssets embed.FS

// Migrations holds the snapshot store schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS
