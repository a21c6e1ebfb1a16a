package deposit

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// Gateway order codes travel as JSON numbers and must stay exact in a float64.
	minOrderCode int64 = 100_000
	maxOrderCode int64 = 1<<53 - 1

	descriptionPrefix    = "DEP"
	descriptionTagLength = 12
	// MaxDescriptionLength is the gateway's memo field limit.
	MaxDescriptionLength = 25

	maxOrderCodeAttempts = 5
)

const tagAlphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Correlation is the pair handed to the gateway for one invoice.
type Correlation struct {
	OrderCode   int64
	Description string
}

// InUseFunc reports whether an order code is already taken by a live invoice.
type InUseFunc func(ctx context.Context, orderCode int64) (bool, error)

// Correlator allocates random order codes and memo tags.
type Correlator struct {
	inUse       InUseFunc
	maxAttempts int
}

func NewCorrelator(inUse InUseFunc) *Correlator {
	return &Correlator{inUse: inUse, maxAttempts: maxOrderCodeAttempts}
}

// Next returns an order code not used by any live invoice plus a fresh
// description tag.
func (c *Correlator) Next(ctx context.Context) (Correlation, error) {
	description, err := NewDescription()
	if err != nil {
		return Correlation{}, err
	}

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		code, err := randomOrderCode()
		if err != nil {
			return Correlation{}, err
		}
		if c.inUse != nil {
			taken, err := c.inUse(ctx, code)
			if err != nil {
				return Correlation{}, fmt.Errorf("check order code: %w", err)
			}
			if taken {
				continue
			}
		}
		return Correlation{OrderCode: code, Description: description}, nil
	}
	return Correlation{}, ErrOrderCodeExhausted
}

func randomOrderCode() (int64, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxOrderCode-minOrderCode+1))
	if err != nil {
		return 0, fmt.Errorf("failed to read secure random bytes: %w", err)
	}
	return minOrderCode + n.Int64(), nil
}

// NewDescription builds the prefixed random memo tag, cut to the gateway limit.
func NewDescription() (string, error) {
	tag, err := randomTag(descriptionTagLength)
	if err != nil {
		return "", err
	}
	desc := descriptionPrefix + tag
	if len(desc) > MaxDescriptionLength {
		desc = desc[:MaxDescriptionLength]
	}
	return desc, nil
}

// randomTag draws base62 characters with rejection sampling so every
// character is equally likely.
func randomTag(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("invalid tag length: %d", length)
	}
	// 248 is the largest multiple of 62 below 256.
	const maxRandomByte = 248

	tag := make([]byte, 0, length)
	buf := make([]byte, length*2)
	for len(tag) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read secure random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= maxRandomByte {
				continue
			}
			tag = append(tag, tagAlphabet[int(b)%len(tagAlphabet)])
			if len(tag) == length {
				break
			}
		}
	}
	return string(tag), nil
}
