// Package userdb holds the credential records the sample tasks
// authenticate against: name plus MD5 password digest, one per line in
// /etc/users. MD5 is what the teaching material uses on purpose; the
// crack task exists to demonstrate why that is a bad idea.
package userdb

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

const (
	UsersPath = "/etc/users"

	// MaxFileBytes bounds parsing to avoid allocation bombs.
	MaxFileBytes = 4096

	MaxUsers   = 32
	MaxNameLen = 32

	// MaxConsecutiveFails is the lockout threshold: the third failed
	// attempt in a row locks the account permanently.
	MaxConsecutiveFails = 3
)

type Record struct {
	Name string
	Hash [md5.Size]byte
}

// HashPassword returns the MD5 digest of pass.
func HashPassword(pass []byte) [md5.Size]byte {
	return md5.Sum(pass)
}

// VerifyPassword reports whether pass hashes to the stored digest.
func (r Record) VerifyPassword(pass []byte) bool {
	got := HashPassword(pass)
	return subtle.ConstantTimeCompare(r.Hash[:], got[:]) == 1
}

// ParseUsersFile parses "name:md5hex" lines. Blank lines and #-comments
// are skipped.
func ParseUsersFile(b []byte) ([]Record, error) {
	if len(b) == 0 {
		return nil, errors.New("empty")
	}
	if len(b) > MaxFileBytes {
		return nil, errors.New("too large")
	}

	lines := strings.Split(string(b), "\n")
	out := make([]Record, 0, len(lines))
	seen := make(map[string]struct{}, 8)
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		rec, err := parseUserLine(line)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[rec.Name]; ok {
			return nil, errors.New("duplicate user")
		}
		seen[rec.Name] = struct{}{}
		out = append(out, rec)
		if len(out) > MaxUsers {
			return nil, errors.New("too many users")
		}
	}
	if len(out) == 0 {
		return nil, errors.New("no users")
	}
	return out, nil
}

// FormatUsersFile renders records sorted by name.
func FormatUsersFile(users []Record) ([]byte, error) {
	if len(users) == 0 {
		return nil, errors.New("no users")
	}
	if len(users) > MaxUsers {
		return nil, errors.New("too many users")
	}
	cp := append([]Record(nil), users...)
	sort.Slice(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })

	seen := make(map[string]struct{}, len(cp))
	var b strings.Builder
	for _, u := range cp {
		if err := validateUsername(u.Name); err != nil {
			return nil, err
		}
		if _, ok := seen[u.Name]; ok {
			return nil, errors.New("duplicate user")
		}
		seen[u.Name] = struct{}{}
		fmt.Fprintf(&b, "%s:%s\n", u.Name, hex.EncodeToString(u.Hash[:]))
	}
	if b.Len() > MaxFileBytes {
		return nil, errors.New("too large")
	}
	return []byte(b.String()), nil
}

// Find looks a user up by name.
func Find(users []Record, name string) (Record, bool) {
	for _, u := range users {
		if u.Name == name {
			return u, true
		}
	}
	return Record{}, false
}

func parseUserLine(line string) (Record, error) {
	parts := strings.Split(line, ":")
	if len(parts) != 2 {
		return Record{}, errors.New("bad record")
	}
	name := parts[0]
	if err := validateUsername(name); err != nil {
		return Record{}, err
	}
	hashB, err := hex.DecodeString(parts[1])
	if err != nil || len(hashB) != md5.Size {
		return Record{}, errors.New("bad hash")
	}
	rec := Record{Name: name}
	copy(rec.Hash[:], hashB)
	return rec, nil
}

func validateUsername(name string) error {
	if name == "" || len(name) > MaxNameLen {
		return errors.New("bad username")
	}
	for _, r := range name {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-' || r == '_' {
			continue
		}
		return errors.New("bad username")
	}
	return nil
}

// Lockout tracks consecutive failed attempts per account. An account
// that reaches the threshold is locked permanently: even a correct
// password is rejected afterwards.
type Lockout struct {
	mu     sync.Mutex
	fails  map[string]int
	locked map[string]struct{}
}

func NewLockout() *Lockout {
	return &Lockout{
		fails:  make(map[string]int),
		locked: make(map[string]struct{}),
	}
}

// Locked reports whether the account is locked.
func (l *Lockout) Locked(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.locked[name]
	return ok
}

// Note records the outcome of one attempt. Success resets the failure
// streak; a third consecutive failure locks the account.
func (l *Lockout) Note(name string, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if ok {
		delete(l.fails, name)
		return
	}
	l.fails[name]++
	if l.fails[name] >= MaxConsecutiveFails {
		l.locked[name] = struct{}{}
	}
}
