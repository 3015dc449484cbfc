package service

import (
	"context"
	"errors"
	"net/mail"
	"regexp"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/iliyamo/parking-ledger/internal/config"
	"github.com/iliyamo/parking-ledger/internal/model"
	"github.com/iliyamo/parking-ledger/internal/repository"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]{3,32}$`)

// RegisterRequest carries the fields of the sign-up form.
type RegisterRequest struct {
	Username     string
	Email        string
	LicensePlate string
}

// Accounts creates users and provisions the slot table.
type Accounts struct {
	store repository.Store
	log   zerolog.Logger
}

func NewAccounts(store repository.Store, log zerolog.Logger) *Accounts {
	return &Accounts{store: store, log: log}
}

// NormalizePlate upper-cases a licence plate and drops separators, so
// "ka-01 ab 1234" and "KA01AB1234" are the same vehicle.
func NormalizePlate(plate string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(plate) {
		if r == ' ' || r == '-' {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func validPlate(plate string) bool {
	if len(plate) < 4 || len(plate) > 12 {
		return false
	}
	for _, r := range plate {
		if r > unicode.MaxASCII || !(unicode.IsUpper(r) || unicode.IsDigit(r)) {
			return false
		}
	}
	return true
}

func (req RegisterRequest) normalize() (RegisterRequest, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.LicensePlate = NormalizePlate(strings.TrimSpace(req.LicensePlate))

	if !usernamePattern.MatchString(req.Username) {
		return req, ErrInvalidInput.withMessage("Username must be 3-32 letters, digits, '.', '_' or '-'.")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return req, ErrInvalidInput.withMessage("A valid email address is required.")
	}
	if !validPlate(req.LicensePlate) {
		return req, ErrInvalidInput.withMessage("Licence plate must be 4-12 letters or digits.")
	}
	return req, nil
}

// Register creates a user with an empty wallet.
func (a *Accounts) Register(ctx context.Context, req RegisterRequest) (model.User, error) {
	req, err := req.normalize()
	if err != nil {
		return model.User{}, err
	}
	u := model.User{
		Username:     req.Username,
		Email:        req.Email,
		LicensePlate: req.LicensePlate,
		Role:         model.RoleUser,
	}
	err = a.store.WithTx(ctx, func(tx repository.Tx) error {
		return tx.CreateUser(ctx, &u)
	})
	if err != nil {
		return model.User{}, classify(loggerFrom(ctx, &a.log), "register", err)
	}
	loggerFrom(ctx, &a.log).Info().Uint64("user_id", u.ID).Str("username", u.Username).Msg("user registered")
	return u, nil
}

// ProvisionSlots makes sure slots 1..n exist.  Existing slots are left
// untouched, so the call is safe on every start.
func (a *Accounts) ProvisionSlots(ctx context.Context, n int) (int, error) {
	if n < 0 {
		return 0, ErrInvalidInput.withMessage("slot count must not be negative.")
	}
	var created int
	err := a.store.WithTx(ctx, func(tx repository.Tx) error {
		var err error
		created, err = tx.EnsureSlots(ctx, n)
		return err
	})
	if err != nil {
		return 0, classify(loggerFrom(ctx, &a.log), "provision_slots", err)
	}
	if created > 0 {
		a.log.Info().Int("created", created).Int("slots", n).Msg("slots provisioned")
	}
	return created, nil
}

// ApplySeed provisions the seed's slots and creates its users.  Users
// that already exist are skipped; an opening balance is booked as a
// recharge with reference "seed".
func (a *Accounts) ApplySeed(ctx context.Context, seed config.Seed) error {
	if _, err := a.ProvisionSlots(ctx, seed.Slots); err != nil {
		return err
	}
	for _, su := range seed.Users {
		req, err := RegisterRequest{Username: su.Username, Email: su.Email, LicensePlate: su.LicensePlate}.normalize()
		if err != nil {
			return err
		}
		u := model.User{Username: req.Username, Email: req.Email, LicensePlate: req.LicensePlate, Role: su.Role}
		if u.Role == "" {
			u.Role = model.RoleUser
		}
		err = a.store.WithTx(ctx, func(tx repository.Tx) error {
			if err := tx.CreateUser(ctx, &u); err != nil {
				return err
			}
			if su.Balance <= 0 {
				return nil
			}
			return tx.AppendTransaction(ctx, &model.Transaction{
				UserID:    u.ID,
				Kind:      model.KindRecharge,
				Amount:    su.Balance,
				Reference: "seed",
			})
		})
		switch {
		case errors.Is(err, repository.ErrDuplicate):
			a.log.Debug().Str("username", u.Username).Msg("seed user already present")
		case err != nil:
			return classify(&a.log, "seed", err)
		default:
			a.log.Info().Uint64("user_id", u.ID).Str("username", u.Username).Str("role", string(u.Role)).Msg("seed user created")
		}
	}
	return nil
}
