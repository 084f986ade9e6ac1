package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConnectionProfile is the saved operator connection, so the admin token does
// not have to live in the shell environment of every invocation.
type ConnectionProfile struct {
	APIBaseURL string `json:"api_base_url"`
	AdminToken string `json:"admin_token"`
}

func baseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".petctl")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func profilePath() (string, error) {
	dir, err := baseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "profile.json"), nil
}

func SaveProfile(p ConnectionProfile) error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o600)
}

func LoadProfile() (ConnectionProfile, error) {
	path, err := profilePath()
	if err != nil {
		return ConnectionProfile{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return ConnectionProfile{}, err
	}
	var p ConnectionProfile
	if err := json.Unmarshal(body, &p); err != nil {
		return ConnectionProfile{}, err
	}
	if strings.TrimSpace(p.APIBaseURL) == "" {
		return ConnectionProfile{}, fmt.Errorf("no api base url in saved profile")
	}
	return p, nil
}

func ClearProfile() error {
	path, err := profilePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
