package service

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
)

const (
	minAccountNumber = 10000
	maxAccountNumber = 99999
)

// randomAccountNumber returns a uniformly random 5-digit account number
func randomAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(maxAccountNumber-minAccountNumber+1))
	if err != nil {
		return "", fmt.Errorf("failed to generate random digits: %w", err)
	}
	return strconv.FormatInt(minAccountNumber+n.Int64(), 10), nil
}
