package dashboard

import "embed"

// defaultAssets holds the menu page served when the assets directory has
// no index.html of its own.
//
//go:embed assets/*
var defaultAssets embed.FS

const indexFile = "index.html"
