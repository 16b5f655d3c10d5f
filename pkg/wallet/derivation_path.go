package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
)

// DerivationPath is a BIP-32 path, hardened indexes already offset by
// hdkeychain.HardenedKeyStart.
type DerivationPath []uint32

// DefaultBaseDerivationPath is m/44'/60'/0'/0, the external chain of the
// first Ethereum account. Account i is derived at m/44'/60'/0'/0/i.
var DefaultBaseDerivationPath = DerivationPath{
	hdkeychain.HardenedKeyStart + 44,
	hdkeychain.HardenedKeyStart + 60,
	hdkeychain.HardenedKeyStart,
	0,
}

// ParseDerivationPath parses paths like m/44'/60'/0'/0. The leading m is
// optional, indexes may be decimal or 0x-prefixed hex.
func ParseDerivationPath(strPath string) (DerivationPath, error) {
	if strings.TrimSpace(strPath) == "" {
		return nil, ErrNullDerivationPath
	}

	elems := strings.Split(strPath, "/")
	if strings.TrimSpace(elems[0]) == "m" {
		if len(elems) == 1 {
			return nil, ErrMalformedDerivationPath
		}
		elems = elems[1:]
	} else if len(elems) < 2 {
		return nil, ErrMalformedDerivationPath
	}

	path := make(DerivationPath, 0, len(elems))
	for _, elem := range elems {
		index, err := parsePathIndex(elem)
		if err != nil {
			return nil, err
		}
		path = append(path, index)
	}
	return path, nil
}

func parsePathIndex(elem string) (uint32, error) {
	elem = strings.TrimSpace(elem)
	if elem == "" {
		return 0, ErrMalformedDerivationPath
	}

	hardened := strings.HasSuffix(elem, "'")
	if hardened {
		elem = strings.TrimSpace(strings.TrimSuffix(elem, "'"))
	}

	index, err := strconv.ParseUint(elem, 0, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: index %q", ErrInvalidDerivationPath, elem)
	}
	if !hardened {
		return uint32(index), nil
	}
	if index >= hdkeychain.HardenedKeyStart {
		return 0, fmt.Errorf(
			"%w: hardened index %d out of range", ErrInvalidDerivationPath, index,
		)
	}
	return hdkeychain.HardenedKeyStart + uint32(index), nil
}

// Child returns a copy of the path extended with index.
func (path DerivationPath) Child(index uint32) DerivationPath {
	child := make(DerivationPath, len(path), len(path)+1)
	copy(child, path)
	return append(child, index)
}

func (path DerivationPath) String() string {
	if len(path) <= 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("m")
	for _, index := range path {
		if index >= hdkeychain.HardenedKeyStart {
			fmt.Fprintf(&b, "/%d'", index-hdkeychain.HardenedKeyStart)
			continue
		}
		fmt.Fprintf(&b, "/%d", index)
	}
	return b.String()
}
