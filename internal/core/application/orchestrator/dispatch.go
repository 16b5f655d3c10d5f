package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	log "github.com/sirupsen/logrus"
)

// Dispatch routes an RPC call coming from the given origin to the method
// handler. Results are JSON-encodable values.
func (s *Service) Dispatch(
	ctx context.Context, origin, method string, params json.RawMessage,
) (interface{}, error) {
	logger := log.WithFields(log.Fields{"origin": origin, "method": method})
	logger.Debug("dispatching rpc call")

	result, err := s.dispatch(ctx, origin, method, params)
	if err != nil {
		logger.WithError(err).Debug("rpc call failed")
		return nil, err
	}
	return result, nil
}

func (s *Service) dispatch(
	ctx context.Context, origin, method string, params json.RawMessage,
) (interface{}, error) {
	switch method {
	case domain.MethodDeriveAccounts:
		var (
			secret string
			count  int
		)
		if err := decodeParams(params, &secret, &count); err != nil {
			return nil, err
		}
		return s.DeriveAccounts(secret, count)
	case domain.MethodRequestAccount:
		return s.RequestAccounts(ctx, origin)
	case domain.MethodAccounts:
		return s.Accounts(ctx, origin)
	case domain.MethodChainId:
		return s.ChainId(ctx)
	case domain.MethodGetBalance:
		var address string
		if err := decodeParams(params, &address); err != nil {
			return nil, err
		}
		return s.GetBalance(ctx, address)
	case domain.MethodSendTx:
		var tx domain.TxParams
		if err := decodeParams(params, &tx); err != nil {
			return nil, err
		}
		return s.SendTransaction(ctx, tx, params)
	case domain.MethodSignTypedData:
		var (
			address   string
			typedData json.RawMessage
		)
		if err := decodeParams(params, &address, &typedData); err != nil {
			return nil, err
		}
		return s.SignTypedData(ctx, address, typedData, params)
	case domain.MethodSwitchChain:
		var arg struct {
			ChainId string `json:"chainId"`
		}
		if err := decodeParams(params, &arg); err != nil {
			return nil, err
		}
		if err := s.SwitchChain(ctx, arg.ChainId); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrMethodNotImplemented, method)
	}
}

// decodeParams decodes the positional params array into dst. Missing
// trailing params leave their destination untouched; null or empty params
// are an empty array.
func decodeParams(params json.RawMessage, dst ...interface{}) error {
	params = bytes.TrimSpace(params)
	if len(params) <= 0 || bytes.Equal(params, []byte("null")) {
		return nil
	}

	var list []json.RawMessage
	if err := json.Unmarshal(params, &list); err != nil {
		return fmt.Errorf("%w: params must be an array", domain.ErrInvalidParams)
	}
	for i, v := range dst {
		if i >= len(list) {
			break
		}
		if bytes.Equal(bytes.TrimSpace(list[i]), []byte("null")) {
			continue
		}
		if err := json.Unmarshal(list[i], v); err != nil {
			return fmt.Errorf("%w: param %d: %v", domain.ErrInvalidParams, i, err)
		}
	}
	return nil
}
