package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type credentials struct {
	CodeHash  string    `json:"codeHash"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// CredentialFile persists the admin code hash next to the catalog data.
type CredentialFile struct {
	path string
	mu   sync.Mutex
}

func NewCredentialFile(path string) (*CredentialFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, persistenceErr("create credentials dir", err)
	}
	return &CredentialFile{path: path}, nil
}

// LoadHash returns "" when no code has been stored yet.
func (f *CredentialFile) LoadHash(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", persistenceErr("read credentials", err)
	}
	var c credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return "", persistenceErr("decode credentials", err)
	}
	return c.CodeHash, nil
}

func (f *CredentialFile) SaveHash(ctx context.Context, hash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(credentials{CodeHash: hash, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return persistenceErr("encode credentials", err)
	}
	return writeFileAtomic(f.path, data)
}
