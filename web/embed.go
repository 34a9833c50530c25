package web

import "embed"

// FS holds the embedded dashboard page (HTML, CSS, JS).
//
//go:embed *.html *.css *.js
var FS embed.FS
