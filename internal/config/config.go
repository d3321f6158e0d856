// Package config loads the line-oriented server configuration and
// answers the admission-policy queries consulted at every ingress
// point (peer address, nickname, message text).
package config

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strings"
	"sync"
)

// Password hash and frame cipher selectors.
const (
	HashSHA512 = "sha512"
	HashBcrypt = "bcrypt"

	CipherIdentity         = "identity"
	CipherChaCha20Poly1305 = "chacha20poly1305"
)

// ParseError reports where a configuration file could not be parsed.
type ParseError struct {
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.File, e.Msg)
}

// Config is the complete server configuration: listener addresses,
// the admission filters, and the password-hash and cipher selections.
// It is internally synchronized and shared by reference.
type Config struct {
	mu        sync.RWMutex
	listen    map[netip.AddrPort]struct{}
	ip        *IPFilter
	nickname  *NicknameFilter
	message   *MessageFilter
	hashName  string
	cipher    string
	cipherKey []byte
}

// New returns a configuration with default values: no listeners, no
// filter rules, SHA-512 password hashing and the identity cipher.
func New() *Config {
	return &Config{
		listen:   make(map[netip.AddrPort]struct{}),
		ip:       NewIPFilter(),
		nickname: NewNicknameFilter(),
		message:  NewMessageFilter(),
		hashName: HashSHA512,
		cipher:   CipherIdentity,
	}
}

// ProcessFile reads path line by line. With rollbackOnError the whole
// file applies or none of it does: lines are parsed into a scratch
// configuration that is merged only on success.
func (c *Config) ProcessFile(path string, rollbackOnError bool) error {
	if rollbackOnError {
		scratch := New()
		if err := scratch.ProcessFile(path, false); err != nil {
			return err
		}
		c.Merge(scratch)
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return &ParseError{File: path, Msg: err.Error()}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		if err := c.ProcessLine(scanner.Text()); err != nil {
			return &ParseError{File: path, Line: lineNum, Msg: err.Error()}
		}
	}
	if err := scanner.Err(); err != nil {
		return &ParseError{File: path, Msg: err.Error()}
	}
	return nil
}

// ProcessString parses configuration text, one command per line.
func (c *Config) ProcessString(text string, rollbackOnError bool) error {
	if rollbackOnError {
		scratch := New()
		if err := scratch.ProcessString(text, false); err != nil {
			return err
		}
		c.Merge(scratch)
		return nil
	}
	for i, line := range strings.Split(text, "\n") {
		if err := c.ProcessLine(line); err != nil {
			return &ParseError{File: "<string>", Line: i + 1, Msg: err.Error()}
		}
	}
	return nil
}

// ProcessLine parses one configuration line. Empty lines and lines
// starting with # are ignored.
func (c *Config) ProcessLine(line string) error {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}
	cmd, arg := splitCommand(line)

	c.mu.Lock()
	defer c.mu.Unlock()

	switch cmd {
	case "listen":
		if arg == "" {
			return fmt.Errorf("a socket address was expected after `listen`")
		}
		ap, err := netip.ParseAddrPort(arg)
		if err != nil {
			return fmt.Errorf("invalid socket address after `listen`: %v", err)
		}
		c.listen[ap] = struct{}{}
		return nil
	case "ip":
		if arg == "" {
			return fmt.Errorf("a sub-command was expected after `ip`")
		}
		return c.ip.processLine(arg)
	case "nickname":
		if arg == "" {
			return fmt.Errorf("a sub-command was expected after `nickname`")
		}
		return c.nickname.processLine(arg)
	case "message":
		if arg == "" {
			return fmt.Errorf("a sub-command was expected after `message`")
		}
		return c.message.processLine(arg)
	case "password-hash":
		return c.setPasswordHash(arg)
	case "cipher":
		return c.setCipher(arg)
	default:
		return fmt.Errorf("`%s` is an invalid option", cmd)
	}
}

func (c *Config) setPasswordHash(arg string) error {
	switch arg {
	case HashSHA512, HashBcrypt:
		c.hashName = arg
		return nil
	case "":
		return fmt.Errorf("a hash name was expected after `password-hash`")
	default:
		return fmt.Errorf("`%s` is not a supported password hash", arg)
	}
}

func (c *Config) setCipher(arg string) error {
	name, key := splitCommand(arg)
	switch name {
	case CipherIdentity:
		if key != "" {
			return fmt.Errorf("`cipher identity` takes no key")
		}
		c.cipher = name
		c.cipherKey = nil
		return nil
	case CipherChaCha20Poly1305:
		raw, err := hex.DecodeString(key)
		if err != nil || len(raw) != 32 {
			return fmt.Errorf("a 64-hex-character key was expected after `cipher %s`", name)
		}
		c.cipher = name
		c.cipherKey = raw
		return nil
	case "":
		return fmt.Errorf("a cipher name was expected after `cipher`")
	default:
		return fmt.Errorf("`%s` is not a supported cipher", name)
	}
}

// Merge appends other into c: scalar fields (length bounds, hash and
// cipher selections) are overwritten, collection fields union in.
func (c *Config) Merge(other *Config) {
	other.mu.RLock()
	defer other.mu.RUnlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	for ap := range other.listen {
		c.listen[ap] = struct{}{}
	}
	c.ip.merge(other.ip)
	c.nickname.merge(other.nickname)
	c.message.merge(other.message)
	c.hashName = other.hashName
	c.cipher = other.cipher
	c.cipherKey = append([]byte(nil), other.cipherKey...)
}

// ListenAddrs returns the configured listener addresses in a stable
// order.
func (c *Config) ListenAddrs() []netip.AddrPort {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]netip.AddrPort, 0, len(c.listen))
	for ap := range c.listen {
		out = append(out, ap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// IPAllowed reports whether a peer address passes the IP filter.
func (c *Config) IPAllowed(addr netip.Addr) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ip.Allowed(addr)
}

// NicknameAllowed reports whether a nickname passes the nickname
// filter.
func (c *Config) NicknameAllowed(nick string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.nickname.Allowed(nick)
}

// MessageAllowed reports whether a message text passes the message
// filter.
func (c *Config) MessageAllowed(text string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.message.Allowed(text)
}

// PasswordHash returns the configured password hash selector.
func (c *Config) PasswordHash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hashName
}

// Cipher returns the configured cipher selector and key.
func (c *Config) Cipher() (name string, key []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cipher, append([]byte(nil), c.cipherKey...)
}

// String emits the configuration in a canonical, parseable form.
func (c *Config) String() string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var lines []string
	addrs := make([]string, 0, len(c.listen))
	for ap := range c.listen {
		addrs = append(addrs, "listen "+ap.String())
	}
	sort.Strings(addrs)
	lines = append(lines, addrs...)
	lines = append(lines, c.ip.canonicalLines()...)
	lines = append(lines, c.nickname.canonicalLines()...)
	lines = append(lines, c.message.canonicalLines()...)
	lines = append(lines, "password-hash "+c.hashName)
	if c.cipher == CipherIdentity {
		lines = append(lines, "cipher "+c.cipher)
	} else {
		lines = append(lines, "cipher "+c.cipher+" "+hex.EncodeToString(c.cipherKey))
	}
	return strings.Join(lines, "\n") + "\n"
}

// splitCommand splits a config line into its first whitespace-delimited
// token and the trimmed remainder.
func splitCommand(line string) (cmd, rest string) {
	line = strings.TrimSpace(line)
	idx := strings.IndexFunc(line, func(r rune) bool { return r == ' ' || r == '\t' })
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx:])
}
