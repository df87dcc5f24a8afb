package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common validation errors
var (
	ErrEmptyUserID       = errors.New("user ID cannot be empty")
	ErrInvalidEmail      = errors.New("invalid email format")
	ErrEmptyEmail        = errors.New("email cannot be empty")
	ErrEmptyUsername     = errors.New("username cannot be empty")
	ErrEmptyFirstName    = errors.New("first name cannot be empty")
	ErrEmptyLastName     = errors.New("last name cannot be empty")
	ErrEmptyPhoneNumber  = errors.New("phone number cannot be empty")
	ErrIncompleteAddress = errors.New("address requires street, city, state and zip")
	ErrPasswordTooShort  = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong   = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword     = errors.New("password cannot be empty")
)

// Address is a user's postal address, used to arrange the physical swap.
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// User represents a registered member of the swap marketplace.
// The user's library is stored separately as LibraryEntry rows.
type User struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Password     string    `json:"-"` // Plaintext password, only set during create/update
	PasswordHash string    `json:"-"`
	PhoneNumber  string    `json:"phone_number"`
	Address      Address   `json:"address"`
	MemberSince  time.Time `json:"member_since"`
	IsActive     bool      `json:"is_active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewUser creates an active User with a fresh ID.
// The caller is responsible for hashing the password before storing the user.
func NewUser(
	firstName, lastName, email, username, password, phoneNumber string,
	address Address,
) (*User, error) {
	now := time.Now().UTC()
	user := &User{
		ID:          uuid.New(),
		FirstName:   strings.TrimSpace(firstName),
		LastName:    strings.TrimSpace(lastName),
		Email:       strings.TrimSpace(email),
		Username:    strings.TrimSpace(username),
		Password:    password,
		PhoneNumber: strings.TrimSpace(phoneNumber),
		Address:     address,
		MemberSince: now,
		IsActive:    true,
		UpdatedAt:   now,
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}
	if u.FirstName == "" {
		return ErrEmptyFirstName
	}
	if u.LastName == "" {
		return ErrEmptyLastName
	}
	if u.Email == "" {
		return ErrEmptyEmail
	}
	if !validateEmailFormat(u.Email) {
		return ErrInvalidEmail
	}
	if u.Username == "" {
		return ErrEmptyUsername
	}
	if u.PhoneNumber == "" {
		return ErrEmptyPhoneNumber
	}
	if u.Address.Street == "" || u.Address.City == "" || u.Address.State == "" || u.Address.Zip == "" {
		return ErrIncompleteAddress
	}

	// A stored user carries a hash; a new or updated one carries the plaintext.
	if u.Password != "" {
		switch {
		case len(u.Password) < 8:
			return ErrPasswordTooShort
		case len(u.Password) > 72:
			return ErrPasswordTooLong
		}
	} else if u.PasswordHash == "" {
		return ErrEmptyPassword
	}

	return nil
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return fmt.Sprintf("%s %s", u.FirstName, u.LastName)
}

// FullAddress renders the address on one line.
func (u *User) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s %s", u.Address.Street, u.Address.City, u.Address.State, u.Address.Zip)
}

// Deactivate soft-disables the user. Deactivated users keep their history
// but cannot start new swap requests.
func (u *User) Deactivate() {
	u.IsActive = false
	u.UpdatedAt = time.Now().UTC()
}

// validateEmailFormat performs a basic "local@domain.tld" shape check.
func validateEmailFormat(email string) bool {
	at := strings.IndexByte(email, '@')
	if at <= 0 || at == len(email)-1 {
		return false
	}

	domainPart := email[at+1:]
	dot := strings.IndexByte(domainPart, '.')
	return dot > 0 && dot < len(domainPart)-1
}
