// Package setup registers the lite MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/clinimetric-scale-server/internal/config"
)

// ServerName is the key the lite server is registered under.
const ServerName = "clinimetric-scales"

const binaryName = "mcp-server-lite"

// ServerEntry is one server in a client's mcpServers map.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ClientConfig is a desktop client configuration file. Keys other than
// mcpServers are kept as they were read.
type ClientConfig struct {
	MCPServers map[string]ServerEntry
	other      map[string]json.RawMessage
}

// Options controls registration.
type Options struct {
	ConfigPath string // Client config file; defaults to DefaultClientConfigPath
	BinaryPath string // Lite server binary; searched for when empty
	DataDir    string
	ScalesDir  string
}

// Status describes an existing registration.
type Status struct {
	ConfigPath string
	Registered bool
	ServerPath string
	DataDir    string
	ScalesDir  string
	ScaleFiles int
	Issues     []string
}

// DefaultClientConfigPath returns the desktop client's config file location.
func DefaultClientConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
			break
		}
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, ".config", "Claude")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads a client config. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		MCPServers: make(map[string]ServerEntry),
		other:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.other, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]ServerEntry)
	}
	return cfg, nil
}

// SaveClientConfig writes the config, creating its directory if needed.
func SaveClientConfig(path string, cfg *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	doc := make(map[string]any, len(cfg.other)+1)
	for k, v := range cfg.other {
		doc[k] = v
	}
	doc["mcpServers"] = cfg.MCPServers

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the lite server entry in the client config and
// creates its data directories. It returns the config path written.
func Register(opts Options) (string, error) {
	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		binaryPath, err = findBinary()
		if err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
	}

	lite := liteConfig(opts.DataDir, opts.ScalesDir)
	if err := lite.EnsureDataDir(); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return "", err
	}

	cfg.MCPServers[ServerName] = ServerEntry{
		Command: binaryPath,
		Env: map[string]string{
			"CLINIMETRIC_DATA_DIR":   lite.DataDir,
			"CLINIMETRIC_SCALES_DIR": lite.ScalesDir,
		},
	}

	if err := SaveClientConfig(configPath, cfg); err != nil {
		return "", err
	}
	return configPath, nil
}

// Check inspects the registration in the client config at configPath.
func Check(configPath string) (*Status, error) {
	configPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	status := &Status{ConfigPath: configPath}

	cfg, err := LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}

	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "server is not registered with the client")
		return status, nil
	}
	status.Registered = true
	status.ServerPath = entry.Command

	if _, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	}

	lite := liteConfig(entry.Env["CLINIMETRIC_DATA_DIR"], entry.Env["CLINIMETRIC_SCALES_DIR"])
	status.DataDir = lite.DataDir
	status.ScalesDir = lite.ScalesDir

	entries, err := os.ReadDir(lite.ScalesDir)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("scales directory not readable: %s", lite.ScalesDir))
		return status, nil
	}
	for _, e := range entries {
		switch filepath.Ext(e.Name()) {
		case ".json", ".yaml", ".yml":
			status.ScaleFiles++
		}
	}
	if status.ScaleFiles == 0 {
		status.Issues = append(status.Issues, "scales directory holds no definition files")
	}
	return status, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultClientConfigPath()
}

func liteConfig(dataDir, scalesDir string) *config.LiteConfig {
	cfg := config.DefaultLiteConfig()
	if dataDir != "" {
		cfg.DataDir = dataDir
		cfg.ScalesDir = filepath.Join(dataDir, "scales")
	}
	if scalesDir != "" {
		cfg.ScalesDir = scalesDir
	}
	return cfg
}

func findBinary() (string, error) {
	if path, err := exec.LookPath(binaryName); err == nil {
		return path, nil
	}

	locations := []string{
		"./" + binaryName,
		"./build/" + binaryName,
		filepath.Join(os.Getenv("HOME"), ".local", "bin", binaryName),
		"/usr/local/bin/" + binaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", binaryName)
}
