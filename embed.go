package folio

import "embed"

// EmbeddedAssets contains the stylesheet and script shipped with the binary,
// served under /_folio/.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
