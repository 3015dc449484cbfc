package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/parking-ledger/internal/model"
)

func TestLoadDefaultsWithMemoryStore(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 20, cfg.SlotCount)
	assert.Equal(t, model.NewMoney(100, 0), cfg.UnparkFee)
	assert.Equal(t, model.Money(0), cfg.ParkFee)
	assert.Equal(t, 2*time.Second, cfg.LockTimeout)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, "s3cret", cfg.JWTSecret)
	assert.Equal(t, time.Second, cfg.Cache.TTL)
	assert.True(t, cfg.RateLimit.Enabled)
}

func TestLoadAuthentication(t *testing.T) {
	tests := []struct {
		name     string
		env      string
		secret   string
		disabled string
		wantErr  string
	}{
		{name: "secret set", env: "prod", secret: "s3cret"},
		{name: "secret missing", env: "dev", wantErr: "JWT_SECRET"},
		{name: "disabled in dev", env: "dev", disabled: "true"},
		{name: "disabled outside dev", env: "prod", disabled: "true", wantErr: "AUTH_DISABLED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chdirForTest(t, t.TempDir())
			t.Setenv("STORE_DRIVER", "memory")
			t.Setenv("APP_ENV", tt.env)
			t.Setenv("JWT_SECRET", tt.secret)
			t.Setenv("AUTH_DISABLED", tt.disabled)

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.disabled == "true", cfg.AuthDisabled)
			assert.Equal(t, tt.secret, cfg.JWTSecret)
		})
	}
}

func TestLoadRequiresDatabaseForMySQL(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DB_USER")
	assert.Contains(t, err.Error(), "DB_NAME")
}

func TestLoadRejectsBadValues(t *testing.T) {
	chdirForTest(t, t.TempDir())
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("UNPARK_FEE", "1.005")
	t.Setenv("MAX_RECHARGE", "0")
	t.Setenv("CACHE_TTL", "soon")
	t.Setenv("LOCK_TIMEOUT", "2")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")
	t.Setenv("SLOT_COUNT", "40000000")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"UNPARK_FEE", "MAX_RECHARGE", "CACHE_TTL", "LOCK_TIMEOUT", "RATE_LIMIT_ENABLED", "SLOT_COUNT"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestParseSeed(t *testing.T) {
	seed, err := ParseSeed([]byte(`
slots: 12
users:
  - username: admin
    email: admin@example.com
    license_plate: ADM001
    role: admin
  - username: ravi
    email: ravi@example.com
    license_plate: KA01AB1234
    balance: 150.50
`))
	require.NoError(t, err)
	assert.Equal(t, 12, seed.Slots)
	require.Len(t, seed.Users, 2)
	assert.Equal(t, model.RoleAdmin, seed.Users[0].Role)
	assert.Equal(t, model.RoleUser, seed.Users[1].Role)
	assert.Equal(t, model.Money(15050), seed.Users[1].Balance)
}

func TestParseSeedRejectsUnknownRole(t *testing.T) {
	_, err := ParseSeed([]byte("users:\n  - username: x\n    role: owner\n"))
	assert.Error(t, err)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_TTL", "1ms")
	e := &env{}
	cfg := loadRateLimitConfig(e)
	require.NoError(t, e.err())
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 5*cfg.RefillInterval, cfg.TTL)
}

func TestParseSeedRejectsTooManySlots(t *testing.T) {
	_, err := ParseSeed([]byte("slots: 100001\n"))
	assert.Error(t, err)
}

// chdirForTest mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdirForTest(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatalf("restore working directory: %v", err)
		}
	})
}
