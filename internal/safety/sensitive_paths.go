package safety

import (
	"path/filepath"
	"strings"
)

// IsSensitivePath returns (true, reason) when a path is likely to contain
// secrets. Used to flag a tool's filesystem-path parameter before it ever
// reaches an actuator, alongside (not in place of) Standing Orders.
func IsSensitivePath(path string) (bool, string) {
	if path == "" {
		return false, ""
	}

	clean := filepath.Clean(path)
	lower := strings.ToLower(clean)

	switch lower {
	case "/etc/shadow", "/etc/gshadow", "/etc/sudoers":
		return true, "system credential file"
	}

	if strings.Contains(lower, "/.ssh/") {
		return true, "ssh key/config directory"
	}
	for _, name := range []string{"id_rsa", "id_ed25519", "authorized_keys", "known_hosts"} {
		if strings.HasSuffix(lower, "/"+name) {
			return true, "ssh key material"
		}
	}

	for _, prefix := range []string{"/run/secrets/", "/var/run/secrets/", "/etc/secrets/", "/secrets/"} {
		if strings.HasPrefix(lower, prefix) {
			return true, "secrets directory"
		}
	}

	if strings.HasPrefix(lower, "/proc/") && strings.HasSuffix(lower, "/environ") {
		return true, "process environment file"
	}

	for _, ext := range []string{".pem", ".key", ".p12", ".pfx"} {
		if strings.HasSuffix(lower, ext) {
			return true, "private key or certificate file"
		}
	}

	if strings.HasSuffix(lower, "/watchkeeper.enc") {
		return true, "encrypted configuration store"
	}

	for _, base := range []string{".env", ".npmrc", ".pypirc", ".netrc", ".aws/credentials"} {
		if strings.HasSuffix(lower, "/"+base) {
			return true, "credentials dotfile"
		}
	}

	return false, ""
}

// CommandTouchesSensitivePath is a best-effort heuristic, not a shell parser:
// it only catches high-confidence substring matches.
func CommandTouchesSensitivePath(command string) (bool, string) {
	lower := strings.ToLower(command)
	if lower == "" {
		return false, ""
	}
	for _, s := range []string{"/etc/shadow", "/etc/gshadow", "/etc/sudoers", "/run/secrets/", "/var/run/secrets/", "/.ssh/", "watchkeeper.enc"} {
		if strings.Contains(lower, s) {
			return true, "references sensitive path"
		}
	}
	if strings.Contains(lower, "/proc/") && strings.Contains(lower, "environ") {
		return true, "references process environment file"
	}
	return false, ""
}
