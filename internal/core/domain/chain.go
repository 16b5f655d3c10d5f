package domain

import (
	"fmt"
	"math/big"
	"strings"
)

// ChainConfig is the network every balance and signing operation targets.
type ChainConfig struct {
	ChainId     string
	RpcEndpoint string
}

// ValidateChainId checks that the chain id is a non-empty 0x-prefixed hex
// quantity.
func ValidateChainId(chainId string) error {
	if _, err := ParseChainId(chainId); err != nil {
		return err
	}
	return nil
}

// ParseChainId converts a 0x-prefixed hex chain id to its numeric value.
func ParseChainId(chainId string) (*big.Int, error) {
	if !strings.HasPrefix(chainId, "0x") && !strings.HasPrefix(chainId, "0X") {
		return nil, ErrInvalidChainId
	}
	digits := chainId[2:]
	if len(digits) <= 0 {
		return nil, ErrInvalidChainId
	}
	n, ok := new(big.Int).SetString(digits, 16)
	if !ok || n.Sign() <= 0 {
		return nil, ErrInvalidChainId
	}
	return n, nil
}

// Endpoints maps chain ids to the JSON-RPC endpoint used to reach them.
type Endpoints map[string]string

// ParseEndpoints parses a list of "chainId=url" entries.
func ParseEndpoints(entries []string) (Endpoints, error) {
	endpoints := make(Endpoints)
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		kv := strings.SplitN(entry, "=", 2)
		if len(kv) != 2 || strings.TrimSpace(kv[1]) == "" {
			return nil, fmt.Errorf("malformed rpc endpoint %q, must be chainId=url", entry)
		}
		chainId := strings.ToLower(strings.TrimSpace(kv[0]))
		if err := ValidateChainId(chainId); err != nil {
			return nil, fmt.Errorf("%s: %w", entry, err)
		}
		endpoints[chainId] = strings.TrimSpace(kv[1])
	}
	return endpoints, nil
}

// ChainConfig resolves the endpoint of the given chain. Chains without an
// explicit entry use fallback.
func (e Endpoints) ChainConfig(chainId, fallback string) ChainConfig {
	if url, ok := e[strings.ToLower(chainId)]; ok {
		return ChainConfig{chainId, url}
	}
	return ChainConfig{chainId, fallback}
}
