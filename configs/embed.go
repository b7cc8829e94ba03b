// Package configs provides embedded configuration templates for quarry.
//
// Templates are embedded at build time with go:embed so they ship in
// every distribution, source builds included. `quarry config init`
// writes ProjectConfigTemplate to .quarry.yaml in the project root;
// with --user it writes UserConfigTemplate to
// ~/.config/quarry/config.yaml instead.
//
// The load order is defaults, then the user config, then the project
// config, then QUARRY_* environment variables (see internal/config).
package configs

import _ "embed"

// ProjectConfigTemplate is the annotated template for .quarry.yaml.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string

// UserConfigTemplate is the annotated template for the machine-wide
// config at ~/.config/quarry/config.yaml.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string
