// Package users provides a simple user manager that persists its data
// as a single JSON file in the content directory.
package users

import (
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Authentication methods.
const (
	AuthHash      = "hash"
	AuthCleartext = "cleartext"
)

// ErrUserExists is returned when adding a user under a taken name.
var ErrUserExists = errors.New("users: user already exists")

// Record is the stored form of one user.
type Record struct {
	Active               bool     `json:"active"`
	Roles                []string `json:"roles"`
	AuthenticationMethod string   `json:"authentication_method"`
	Authenticated        bool     `json:"authenticated"`
	FullName             string   `json:"full_name"`
	Email                string   `json:"email"`
	Password             string   `json:"password,omitempty"`
	Hash                 string   `json:"hash,omitempty"`
}

// User is a named user bound to its manager for persistence.
type User struct {
	Name string
	Record

	manager *Manager
}

// IsAuthenticated reports whether the user has an active session.
func (u *User) IsAuthenticated() bool {
	return u.Authenticated
}

// SetAuthenticated updates and persists the session flag.
func (u *User) SetAuthenticated(v bool) error {
	u.Authenticated = v
	return u.manager.Update(u.Name, u.Record)
}

// CheckPassword verifies a password against the stored credential.
func (u *User) CheckPassword(password string) (bool, error) {
	switch u.AuthenticationMethod {
	case AuthHash:
		return checkSaltedHash(password, u.Hash), nil
	case AuthCleartext:
		return u.Password == password, nil
	}
	return false, fmt.Errorf("users: unknown authentication method %q", u.AuthenticationMethod)
}

// Manager reads and writes the users.json store.
type Manager struct {
	file       string
	authMethod string
}

// NewManager creates a manager for the users.json file under dir.
// authMethod is the method applied to newly added users.
func NewManager(dir, authMethod string) *Manager {
	if authMethod == "" {
		authMethod = AuthHash
	}
	return &Manager{
		file:       filepath.Join(dir, "users.json"),
		authMethod: authMethod,
	}
}

// Read loads the store; a missing file is an empty store.
func (m *Manager) Read() (map[string]Record, error) {
	data, err := os.ReadFile(m.file)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Record{}, nil
		}
		return nil, err
	}
	records := map[string]Record{}
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("users: malformed store %s: %w", m.file, err)
	}
	return records, nil
}

// Write persists the store.
func (m *Manager) Write(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.file, data, 0o600)
}

// AddUser registers a new user. ErrUserExists when the name is taken.
func (m *Manager) AddUser(name, password, fullName, email string) (*User, error) {
	records, err := m.Read()
	if err != nil {
		return nil, err
	}
	if _, ok := records[name]; ok {
		return nil, ErrUserExists
	}

	record := Record{
		Active:               true,
		Roles:                []string{},
		AuthenticationMethod: m.authMethod,
		Authenticated:        false,
		FullName:             fullName,
		Email:                email,
	}
	switch m.authMethod {
	case AuthHash:
		hash, err := makeSaltedHash(password, nil)
		if err != nil {
			return nil, err
		}
		record.Hash = hash
	case AuthCleartext:
		record.Password = password
	default:
		return nil, fmt.Errorf("users: unknown authentication method %q", m.authMethod)
	}

	records[name] = record
	if err := m.Write(records); err != nil {
		return nil, err
	}
	return &User{Name: name, Record: record, manager: m}, nil
}

// GetUser returns the named user, or nil when absent.
func (m *Manager) GetUser(name string) (*User, error) {
	records, err := m.Read()
	if err != nil {
		return nil, err
	}
	record, ok := records[name]
	if !ok {
		return nil, nil
	}
	return &User{Name: name, Record: record, manager: m}, nil
}

// DeleteUser removes the named user, reporting whether it existed.
func (m *Manager) DeleteUser(name string) (bool, error) {
	records, err := m.Read()
	if err != nil {
		return false, err
	}
	if _, ok := records[name]; !ok {
		return false, nil
	}
	delete(records, name)
	if err := m.Write(records); err != nil {
		return false, err
	}
	return true, nil
}

// Update persists a changed record for the named user.
func (m *Manager) Update(name string, record Record) error {
	records, err := m.Read()
	if err != nil {
		return err
	}
	records[name] = record
	return m.Write(records)
}

// makeSaltedHash derives hex(salt) + hex(sha512(salt[:32] + password +
// salt[32:])). A nil salt draws 64 random bytes.
func makeSaltedHash(password string, salt []byte) (string, error) {
	if salt == nil {
		salt = make([]byte, 64)
		if _, err := rand.Read(salt); err != nil {
			return "", err
		}
	}
	d := sha512.New()
	d.Write(salt[:32])
	d.Write([]byte(password))
	d.Write(salt[32:])
	return hex.EncodeToString(salt) + hex.EncodeToString(d.Sum(nil)), nil
}

// checkSaltedHash verifies a password against a stored salted hash.
func checkSaltedHash(password, saltedHash string) bool {
	if len(saltedHash) < 128 {
		return false
	}
	salt, err := hex.DecodeString(saltedHash[:128])
	if err != nil {
		return false
	}
	recomputed, err := makeSaltedHash(password, salt)
	if err != nil {
		return false
	}
	return recomputed == saltedHash
}
