package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/iliyamo/parking-ledger/internal/model"
)

// Seed describes the facility layout and the accounts created at startup.
//
//	slots: 20
//	users:
//	  - username: admin
//	    email: admin@example.com
//	    license_plate: ADM001
//	    role: admin
//	    balance: 0
type Seed struct {
	Slots int        `yaml:"slots"`
	Users []SeedUser `yaml:"users"`
}

// SeedUser is one account of the seed file.  Balance is booked as an
// opening recharge so the ledger stays the source of truth.
type SeedUser struct {
	Username     string      `yaml:"username"`
	Email        string      `yaml:"email"`
	LicensePlate string      `yaml:"license_plate"`
	Role         model.Role  `yaml:"role"`
	Balance      model.Money `yaml:"balance"`
}

// LoadSeed reads and validates a YAML seed file.
func LoadSeed(path string) (Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes seed YAML.  Users without a role default to "user".
func ParseSeed(data []byte) (Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Seed{}, fmt.Errorf("parse seed: %w", err)
	}
	if s.Slots < 0 || s.Slots > MaxSlotCount {
		return Seed{}, fmt.Errorf("seed: slots must be between 0 and %d", MaxSlotCount)
	}
	for i := range s.Users {
		u := &s.Users[i]
		if u.Role == "" {
			u.Role = model.RoleUser
		}
		if !u.Role.Valid() {
			return Seed{}, fmt.Errorf("seed: user %q has unknown role %q", u.Username, u.Role)
		}
		if u.Balance < 0 {
			return Seed{}, fmt.Errorf("seed: user %q has a negative balance", u.Username)
		}
	}
	return s, nil
}
