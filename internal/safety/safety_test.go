package safety

import "testing"

func TestIsBlockedCommand(t *testing.T) {
	cases := map[string]bool{
		"rm -rf /":            true,
		"RM -RF /data":        true,
		"systemctl stop sshd": true,
		"echo hello":          false,
		"":                    false,
	}
	for cmd, want := range cases {
		if got := IsBlockedCommand(cmd); got != want {
			t.Errorf("IsBlockedCommand(%q) = %v, want %v", cmd, got, want)
		}
	}
}

func TestIsSensitivePath(t *testing.T) {
	ok, reason := IsSensitivePath("/etc/shadow")
	if !ok || reason == "" {
		t.Fatalf("expected /etc/shadow to be sensitive")
	}
	if ok, _ := IsSensitivePath("/home/user/notes.txt"); ok {
		t.Fatalf("expected ordinary path to not be sensitive")
	}
}

func TestCommandTouchesSensitivePath(t *testing.T) {
	if ok, _ := CommandTouchesSensitivePath("cat /etc/shadow"); !ok {
		t.Fatalf("expected command to be flagged")
	}
	if ok, _ := CommandTouchesSensitivePath("ls /tmp"); ok {
		t.Fatalf("expected ordinary command to pass")
	}
}
