// Package safety provides belt-and-suspenders heuristics the Action Executor
// consults in addition to — never instead of — a Standing Orders decision.
// Adapted from the teacher's command/path denylists (internal/ai/safety).
package safety

import "strings"

// BlockedCommands flags literal shell commands embedded in a tool's
// parameters that must never reach an actuator, regardless of what Standing
// Orders already allowed. This only matters for tools whose parameters carry
// a raw command string (e.g. a hypothetical shell.run actuator); most of
// this system's tools (keypress, music, lighting) never hit this check.
var BlockedCommands = []string{
	"rm -rf",
	"rm -r",
	"rm -f",
	"rmdir",
	"dd if=",
	"mkfs",
	"fdisk",
	"wipefs",
	"shred",
	"> /dev/sd",
	"format",
	"parted",
	"docker rm -f",
	"docker system prune",
	"docker volume rm",
	"apt remove",
	"apt purge",
	"apt autoremove",
	"yum remove",
	"dnf remove",
	"pacman -R",
	"systemctl stop",
	"systemctl disable",
	"service stop",
	"killall",
	"pkill",
	"iptables -F",
	"ip link delete",
	"ifdown",
	"shutdown",
	"poweroff",
	"reboot",
	"init 0",
	"init 6",
	"DROP DATABASE",
	"DROP TABLE",
	"TRUNCATE",
}

// IsBlockedCommand reports whether command contains any blocked pattern,
// case-insensitively.
func IsBlockedCommand(command string) bool {
	if command == "" {
		return false
	}
	lower := strings.ToLower(command)
	for _, pattern := range BlockedCommands {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}
