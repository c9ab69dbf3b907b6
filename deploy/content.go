package deploy

import (
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// contentTypes are the types browsers expect for static-site files. Byte
// sniffing cannot tell CSS or JavaScript from plain text.
var contentTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".js":    "application/javascript",
	".mjs":   "application/javascript",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".txt":   "text/plain",
	".pdf":   "application/pdf",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
}

// contentTypeFor resolves the type of name by extension, falling back to
// sniffing data.
func contentTypeFor(name string, data []byte) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return mimetype.Detect(data).String()
}
