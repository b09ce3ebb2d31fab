package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

var ErrMalformedHash = errors.New("malformed password hash")

// PasswordHasher hashes and checks passwords. Verify reports a mismatch as
// (false, nil); an error means the digest itself is unusable.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
}

// NewHasher returns a hasher that creates digests with algorithm ("bcrypt"
// or "argon2id") and verifies digests of either kind.
func NewHasher(algorithm string, bcryptCost int) (PasswordHasher, error) {
	d := &Dispatcher{bcrypt: NewBcrypt(bcryptCost), argon2id: NewArgon2id()}
	switch algorithm {
	case "", "bcrypt":
		d.primary = d.bcrypt
	case "argon2id":
		d.primary = d.argon2id
	default:
		return nil, fmt.Errorf("unknown password algorithm %q", algorithm)
	}
	return d, nil
}

// Dispatcher hashes with the configured algorithm and picks the verifier
// from the digest prefix, so stored digests survive an algorithm change.
type Dispatcher struct {
	primary  PasswordHasher
	bcrypt   *Bcrypt
	argon2id *Argon2id
}

func (d *Dispatcher) Hash(password string) (string, error) {
	return d.primary.Hash(password)
}

func (d *Dispatcher) Verify(password, digest string) (bool, error) {
	switch {
	case strings.HasPrefix(digest, "$argon2id$"):
		return d.argon2id.Verify(password, digest)
	case strings.HasPrefix(digest, "$2a$"), strings.HasPrefix(digest, "$2b$"), strings.HasPrefix(digest, "$2y$"):
		return d.bcrypt.Verify(password, digest)
	default:
		return false, ErrMalformedHash
	}
}

type Bcrypt struct {
	cost int
}

func NewBcrypt(cost int) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Bcrypt{cost: cost}
}

func (b *Bcrypt) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(h), nil
}

func (b *Bcrypt) Verify(password, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
}

// maxArgon2Memory caps the m= parameter (KiB) accepted from a stored digest.
const maxArgon2Memory = 4 * 1024 * 1024

// Argon2id stores digests in PHC form:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<hash>
type Argon2id struct {
	Memory  uint32
	Time    uint32
	Threads uint8
	SaltLen uint32
	KeyLen  uint32
}

func NewArgon2id() *Argon2id {
	return &Argon2id{Memory: 64 * 1024, Time: 1, Threads: 4, SaltLen: 16, KeyLen: 32}
}

func (a *Argon2id) Hash(password string) (string, error) {
	salt := make([]byte, a.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("argon2id salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, a.Time, a.Memory, a.Threads, a.KeyLen)

	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, a.Memory, a.Time, a.Threads, enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

func (a *Argon2id) Verify(password, digest string) (bool, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, ErrMalformedHash
	}

	var memory, time uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return false, ErrMalformedHash
	}
	if time == 0 || threads == 0 || memory == 0 || memory > maxArgon2Memory {
		return false, ErrMalformedHash
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[4])
	if err != nil {
		return false, ErrMalformedHash
	}
	want, err := enc.DecodeString(parts[5])
	if err != nil || len(want) == 0 {
		return false, ErrMalformedHash
	}

	got := argon2.IDKey([]byte(password), salt, time, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

type hashResult struct {
	digest string
	ok     bool
	err    error
}

// HashContext runs h.Hash and gives up when ctx ends. The hashing goroutine
// finishes in the background.
func HashContext(ctx context.Context, h PasswordHasher, password string) (string, error) {
	ch := make(chan hashResult, 1)
	go func() {
		d, err := h.Hash(password)
		ch <- hashResult{digest: d, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.digest, r.err
	}
}

// VerifyContext runs h.Verify and gives up when ctx ends.
func VerifyContext(ctx context.Context, h PasswordHasher, password, digest string) (bool, error) {
	ch := make(chan hashResult, 1)
	go func() {
		ok, err := h.Verify(password, digest)
		ch <- hashResult{ok: ok, err: err}
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case r := <-ch:
		return r.ok, r.err
	}
}
