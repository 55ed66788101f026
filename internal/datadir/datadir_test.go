package datadir

import (
	"strings"
	"testing"
)

func TestValidateUserID(t *testing.T) {
	valid := []string{"alice", "user_1", "a.b-c", "A", strings.Repeat("x", 64)}
	for _, id := range valid {
		if err := ValidateUserID(id); err != nil {
			t.Errorf("ValidateUserID(%q) = %v, want nil", id, err)
		}
	}

	invalid := []string{"", "a b", "a/b", "../etc", "用户", strings.Repeat("x", 65)}
	for _, id := range invalid {
		if err := ValidateUserID(id); err == nil {
			t.Errorf("ValidateUserID(%q) = nil, want error", id)
		}
	}
}

func TestLayoutIsPerUser(t *testing.T) {
	if DBPath("alice") == DBPath("bob") {
		t.Error("db paths should differ per user")
	}
	if !strings.HasPrefix(LogPath("alice"), LogDir("alice")) {
		t.Error("log path should live under the log dir")
	}
	if !strings.HasPrefix(Dir("alice"), Base()) {
		t.Error("user dir should live under the base dir")
	}
}
