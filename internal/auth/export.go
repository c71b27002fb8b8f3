package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// ClientExport is the connection file handed to a newly registered client.
type ClientExport struct {
	ServerIP            string `json:"server_ip"`
	WebSocketServerPort int    `json:"websocket_server_port"`
	HTTPServerPort      int    `json:"http_server_port"`
	ServerName          string `json:"server_name"`
	ClientToken         string `json:"client_token"`
}

// ExportFileName is "<server>-<username>.conf".
func ExportFileName(serverName, username string) string {
	return fmt.Sprintf("%s-%s.conf", serverName, username)
}

// WriteExport writes e as indented JSON into dir and returns the file path.
func WriteExport(dir, username string, e ClientExport) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}

	path := filepath.Join(dir, ExportFileName(e.ServerName, username))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// ReadExport loads a client connection file.
func ReadExport(path string) (ClientExport, error) {
	var e ClientExport
	data, err := os.ReadFile(path)
	if err != nil {
		return e, fmt.Errorf("read export: %w", err)
	}
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("parse export: %w", err)
	}
	return e, nil
}
