// Package shortcode generates random short codes and allocates ones that are
// not yet taken in the URL store.
package shortcode

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/vadimbarashkov/expiring-url-shortener/internal/entity"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Alphabet is the set of characters a short code is made of.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// MinLength is the shortest code the generator produces.
	MinLength = 5
	// MaxLength is the longest code the generator produces.
	MaxLength = 10

	defaultMaxAttempts = 10
)

// Generator draws random alphanumeric codes whose length is uniformly
// distributed between MinLength and MaxLength inclusive.
type Generator struct {
	intN func(n int) int
}

// NewGenerator creates a new Generator.
func NewGenerator() *Generator {
	return &Generator{intN: rand.IntN}
}

// Generate returns a new random short code.
func (g *Generator) Generate() (string, error) {
	const op = "shortcode.Generator.Generate"

	size := MinLength + g.intN(MaxLength-MinLength+1)

	code, err := gonanoid.Generate(Alphabet, size)
	if err != nil {
		return "", fmt.Errorf("%s: failed to generate short code: %w", op, err)
	}

	return code, nil
}

type codeGenerator interface {
	Generate() (string, error)
}

type urlRepository interface {
	ExistsByShortCode(ctx context.Context, shortCode string) (bool, error)
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithReserved excludes codes that must never be handed out, such as path
// segments already taken by fixed routes.
func WithReserved(codes ...string) AllocatorOption {
	return func(a *Allocator) {
		for _, code := range codes {
			a.reserved[code] = struct{}{}
		}
	}
}

// Allocator hands out short codes that do not collide with any record
// currently in the store, expired or not.
type Allocator struct {
	gen         codeGenerator
	urlRepo     urlRepository
	maxAttempts int
	reserved    map[string]struct{}
}

// NewAllocator creates a new Allocator. A non-positive maxAttempts falls back to the default.
func NewAllocator(gen codeGenerator, urlRepo urlRepository, maxAttempts int, opts ...AllocatorOption) *Allocator {
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	a := &Allocator{
		gen:         gen,
		urlRepo:     urlRepo,
		maxAttempts: maxAttempts,
		reserved:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// MaxAttempts returns the number of draws Allocate makes before giving up.
func (a *Allocator) MaxAttempts() int {
	return a.maxAttempts
}

// Allocate draws codes until one is neither reserved nor present in the store.
// The probe is read-only: the caller still has to insert the code and must
// be prepared for the insert to fail if another caller took it in between.
func (a *Allocator) Allocate(ctx context.Context) (string, error) {
	const op = "shortcode.Allocator.Allocate"

	for i := 0; i < a.maxAttempts; i++ {
		code, err := a.gen.Generate()
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}

		if _, ok := a.reserved[code]; ok {
			continue
		}

		exists, err := a.urlRepo.ExistsByShortCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("%s: failed to check short code: %w", op, err)
		}

		if !exists {
			return code, nil
		}
	}

	return "", fmt.Errorf("%s: %w", op, entity.ErrAllocationExhausted)
}
