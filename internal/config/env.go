package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/parking-ledger/internal/model"
)

// env reads typed environment variables.  An unset or empty variable
// yields the default; a malformed one is recorded and reported by err so
// a typo never silently turns into a default.
type env struct {
	errs []error
}

func (e *env) fail(key, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("invalid value %q for %s: %w", v, key, err))
}

func (e *env) str(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func (e *env) bool(key string, def bool) bool {
	v := os.Getenv(key)
	switch strings.ToLower(v) {
	case "":
		return def
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	e.fail(key, v, errors.New("not a boolean"))
	return def
}

func (e *env) int(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return n
}

func (e *env) dur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(key, v, err)
		return def
	}
	return d
}

func (e *env) money(key, def string) model.Money {
	v := e.str(key, def)
	m, err := model.ParseMoney(v)
	if err != nil {
		e.fail(key, v, err)
	}
	return m
}

func (e *env) err() error { return errors.Join(e.errs...) }
