package api

import (
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"golang.org/x/text/language"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

// UserAgent returns the User-Agent header value for app.
func UserAgent(app string) string {
	gitSHA := Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				gitSHA = setting.Value
			}
		}
	}
	if app == "" {
		app = "Go API Client"
	}
	return app + "/" + Version + " (" + gitSHA + ")"
}

// ClientIdentification is sent in the X-Native-App header so the backend can
// tell native clients apart from browsers.
func ClientIdentification(app string) string {
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s %s; %s/%s; %s; %s", app, Version, runtime.GOOS, runtime.GOARCH, runtime.Version(), host)
}

// NormalizeLanguage returns the canonical BCP 47 form of tag, or "" when it
// cannot be parsed. POSIX locale names such as en_US.UTF-8 are accepted.
func NormalizeLanguage(tag string) string {
	tag = strings.TrimSpace(tag)
	if i := strings.IndexAny(tag, ".@"); i >= 0 {
		tag = tag[:i]
	}
	if tag == "" || tag == "C" || tag == "POSIX" {
		return ""
	}
	t, err := language.Parse(strings.ReplaceAll(tag, "_", "-"))
	if err != nil {
		return ""
	}
	return t.String()
}

// DetectLanguage returns the language of the process locale, or "".
func DetectLanguage() string {
	for _, env := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(env); v != "" {
			return NormalizeLanguage(v)
		}
	}
	return ""
}
