package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/oauth2"
)

// TokenStore persists a single OAuth token.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
	Remove() error
}

// FileTokenStore keeps a token as JSON in one file.
type FileTokenStore struct {
	Path string
}

// Load reads the token. A missing file returns fs.ErrNotExist.
func (s FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token %s: %w", s.Path, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token %s is empty", s.Path)
	}
	return &tok, nil
}

// Save writes the token, creating the parent directory if needed.
func (s FileTokenStore) Save(tok *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.WriteFile(s.Path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Remove deletes the token file. Removing a missing file is not an error.
func (s FileTokenStore) Remove() error {
	if err := os.Remove(s.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// persistingTokenSource saves every token that differs from the last one
// it handed out, so refreshes that happen while serving survive a restart.
type persistingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore
	onNew func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func newPersistingTokenSource(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token, store TokenStore, onNew func(*oauth2.Token)) *persistingTokenSource {
	return &persistingTokenSource{
		base:  oauth2.ReuseTokenSource(tok, conf.TokenSource(ctx, tok)),
		store: store,
		onNew: onNew,
		last:  tok.AccessToken,
	}
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.store.Save(tok); err != nil {
			return nil, err
		}
		if s.onNew != nil {
			s.onNew(tok)
		}
	}
	return tok, nil
}
