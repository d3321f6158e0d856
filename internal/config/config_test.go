package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfigFile(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.conf")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := New()
	if got := cfg.PasswordHash(); got != HashSHA512 {
		t.Errorf("default hash: got %q, want %q", got, HashSHA512)
	}
	name, key := cfg.Cipher()
	if name != CipherIdentity || len(key) != 0 {
		t.Errorf("default cipher: got %q key %d bytes", name, len(key))
	}
	if n := len(cfg.ListenAddrs()); n != 0 {
		t.Errorf("expected no listeners, got %d", n)
	}
	if !cfg.NicknameAllowed("anyone") || !cfg.MessageAllowed("anything") {
		t.Error("empty filters must allow everything")
	}
}

func TestProcessFileFull(t *testing.T) {
	path := writeConfigFile(t, `
# chat server config
listen 127.0.0.1:7878
listen 0.0.0.0:7879

ip ban 10.0.0.5
ip ban-range 192.168.0.1 192.168.0.100
nickname min-length 2
nickname max-length 16
nickname ban ^admin
message max-length 100
password-hash bcrypt
`)
	cfg := New()
	if err := cfg.ProcessFile(path, false); err != nil {
		t.Fatalf("ProcessFile: %v", err)
	}

	addrs := cfg.ListenAddrs()
	if len(addrs) != 2 {
		t.Fatalf("expected 2 listeners, got %d", len(addrs))
	}
	if !cfg.IPAllowed(netip.MustParseAddr("10.0.0.6")) {
		t.Error("10.0.0.6 should be allowed")
	}
	if cfg.IPAllowed(netip.MustParseAddr("10.0.0.5")) {
		t.Error("10.0.0.5 should be banned")
	}
	if cfg.IPAllowed(netip.MustParseAddr("192.168.0.50")) {
		t.Error("192.168.0.50 is inside the banned range")
	}
	if cfg.NicknameAllowed("x") {
		t.Error("one-char nickname is below min-length")
	}
	if cfg.NicknameAllowed("administrator") {
		t.Error("nickname matching ^admin should be banned")
	}
	if !cfg.NicknameAllowed("alice") {
		t.Error("alice should be allowed")
	}
	if cfg.MessageAllowed(strings.Repeat("a", 101)) {
		t.Error("message above max-length should be refused")
	}
	if got := cfg.PasswordHash(); got != HashBcrypt {
		t.Errorf("hash: got %q, want %q", got, HashBcrypt)
	}
}

func TestProcessFileReportsLine(t *testing.T) {
	path := writeConfigFile(t, "listen 127.0.0.1:7878\nbogus option\n")
	err := New().ProcessFile(path, false)
	if err == nil {
		t.Fatal("expected parse error")
	}
	pe, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("got %T, want *ParseError", err)
	}
	if pe.Line != 2 {
		t.Errorf("line: got %d, want 2", pe.Line)
	}
}

func TestProcessFileMissing(t *testing.T) {
	if err := New().ProcessFile(filepath.Join(t.TempDir(), "absent.conf"), false); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestRollbackLeavesConfigUntouched(t *testing.T) {
	cfg := New()
	if err := cfg.ProcessString("listen 127.0.0.1:7878\nnickname min-length 3", false); err != nil {
		t.Fatalf("seed: %v", err)
	}
	path := writeConfigFile(t, "listen 127.0.0.1:9999\nnickname min-length 99999\n")
	if err := cfg.ProcessFile(path, true); err == nil {
		t.Fatal("expected parse error")
	}
	if len(cfg.ListenAddrs()) != 1 {
		t.Error("failed merge must not add listeners")
	}
	if cfg.NicknameAllowed("ab") {
		t.Error("min-length must still be 3")
	}
}

func TestMergeScalarsOverwriteCollectionsUnion(t *testing.T) {
	base := New()
	if err := base.ProcessString("listen 127.0.0.1:7878\nip ban 10.0.0.1\npassword-hash bcrypt", false); err != nil {
		t.Fatalf("base: %v", err)
	}
	extra := New()
	if err := extra.ProcessString("listen 127.0.0.1:7879\nip ban 10.0.0.2\npassword-hash sha512", false); err != nil {
		t.Fatalf("extra: %v", err)
	}
	base.Merge(extra)

	if len(base.ListenAddrs()) != 2 {
		t.Errorf("expected union of listeners, got %v", base.ListenAddrs())
	}
	if base.IPAllowed(netip.MustParseAddr("10.0.0.1")) || base.IPAllowed(netip.MustParseAddr("10.0.0.2")) {
		t.Error("both bans must survive the merge")
	}
	if got := base.PasswordHash(); got != HashSHA512 {
		t.Errorf("hash: got %q, want overwritten %q", got, HashSHA512)
	}
}

func TestCanonicalFormRoundTrips(t *testing.T) {
	cfg := New()
	err := cfg.ProcessString(`listen 127.0.0.1:7878
ip allow 10.1.1.1
ip ban 10.0.0.5
ip ban-range 192.168.0.1 192.168.0.100
nickname min-length 2
nickname ban ^admin
message max-length 200
password-hash bcrypt
cipher chacha20poly1305 `+strings.Repeat("ab", 32), false)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	reparsed := New()
	if err := reparsed.ProcessString(cfg.String(), false); err != nil {
		t.Fatalf("reparse canonical form: %v", err)
	}
	if got, want := reparsed.String(), cfg.String(); got != want {
		t.Errorf("canonical form is not a fixed point:\n%s\nvs\n%s", got, want)
	}
}

func TestCipherDirective(t *testing.T) {
	cfg := New()
	key := strings.Repeat("0f", 32)
	if err := cfg.ProcessLine("cipher chacha20poly1305 " + key); err != nil {
		t.Fatalf("ProcessLine: %v", err)
	}
	name, raw := cfg.Cipher()
	if name != CipherChaCha20Poly1305 || len(raw) != 32 {
		t.Errorf("got %q with %d-byte key", name, len(raw))
	}

	if err := cfg.ProcessLine("cipher chacha20poly1305 deadbeef"); err == nil {
		t.Error("expected error for short key")
	}
	if err := cfg.ProcessLine("cipher rot13"); err == nil {
		t.Error("expected error for unknown cipher")
	}
	if err := cfg.ProcessLine("cipher identity stray"); err == nil {
		t.Error("expected error for identity with key")
	}
}

func TestAllowListWins(t *testing.T) {
	cfg := New()
	err := cfg.ProcessString(`nickname min-length 10
nickname ban ^bo
nickname allow bob`, false)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !cfg.NicknameAllowed("bob") {
		t.Error("explicit allow must override length and ban rules")
	}
	if cfg.NicknameAllowed("boris") {
		t.Error("boris is banned and not allow-listed")
	}
}
