package treadmill

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
)

type persistenceData struct {
	PreferredTreadmill string `json:"preferred_treadmill"`
}

// persistence remembers which treadmill the user connected to last, so the
// controller can reconnect automatically on the next start.
type persistence struct {
	filePath string
	data     persistenceData
	logger   *log.Logger
}

func newPersistence(logger *log.Logger) *persistence {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	p := &persistence{
		filePath: filepath.Join(homeDir, ".treadmill-console", "ui_state.json"),
		logger:   logger,
	}
	p.load()
	return p
}

func (p *persistence) getPreferredTreadmill() string {
	return p.data.PreferredTreadmill
}

func (p *persistence) setPreferredTreadmill(address string) {
	p.logger.Printf("Persistence: preferred treadmill -> %q", address)
	p.data.PreferredTreadmill = address
	p.save()
}

func (p *persistence) load() {
	raw, err := os.ReadFile(p.filePath)
	if err != nil {
		p.logger.Printf("Persistence: load %s (no existing file)", p.filePath)
		return
	}
	if err := json.Unmarshal(raw, &p.data); err != nil {
		p.logger.Printf("Persistence: load %s failed to parse: %v", p.filePath, err)
		return
	}
	p.logger.Printf("Persistence: load %s -> %q", p.filePath, p.data.PreferredTreadmill)
}

func (p *persistence) save() {
	if err := os.MkdirAll(filepath.Dir(p.filePath), 0755); err != nil {
		p.logger.Printf("Persistence: save mkdir failed: %v", err)
		return
	}
	raw, err := json.MarshalIndent(p.data, "", "  ")
	if err != nil {
		p.logger.Printf("Persistence: save marshal failed: %v", err)
		return
	}
	if err := os.WriteFile(p.filePath, raw, 0644); err != nil {
		p.logger.Printf("Persistence: save %s failed: %v", p.filePath, err)
	}
}
