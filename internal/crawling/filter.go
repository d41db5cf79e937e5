package crawling

import (
	"path"
	"strings"
)

// Rejection reasons.
const (
	ReasonInvalid   = "invalid-url"
	ReasonDuplicate = "duplicate"
	ReasonFileType  = "non-html-file"
	ReasonLoginWall = "login-wall"
)

// nonHTMLExtensions are path suffixes that never yield an HTML article.
var nonHTMLExtensions = map[string]bool{
	".pdf": true, ".doc": true, ".docx": true, ".xls": true, ".xlsx": true,
	".ppt": true, ".pptx": true, ".odt": true, ".rtf": true, ".csv": true,
	".zip": true, ".rar": true, ".gz": true, ".tar": true, ".7z": true,
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".svg": true, ".webp": true,
	".mp3": true, ".mp4": true, ".avi": true, ".mov": true, ".wav": true,
	".exe": true, ".dmg": true, ".apk": true, ".iso": true,
	".json": true, ".xml": true, ".rss": true,
}

// loginWallDomains require an account before showing content.
var loginWallDomains = []string{
	"facebook.com",
	"instagram.com",
	"linkedin.com",
	"twitter.com",
	"x.com",
	"tiktok.com",
	"pinterest.com",
	"quora.com",
	"glassdoor.com",
	"accounts.google.com",
	"web.whatsapp.com",
}

// Disallowed reports whether a normalized URL must be skipped and why.
func Disallowed(normalized string) (string, bool) {
	host := Host(normalized)
	for _, domain := range loginWallDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return ReasonLoginWall, true
		}
	}

	p := normalized
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
	}
	if i := strings.Index(p, "/"); i >= 0 {
		if nonHTMLExtensions[strings.ToLower(path.Ext(p[i:]))] {
			return ReasonFileType, true
		}
	}
	return "", false
}
