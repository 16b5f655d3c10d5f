package main

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	"github.com/RoseGit/MasterBlockchain/pkg/wallet"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

var (
	genseed = cli.Command{
		Name:  "genseed",
		Usage: "generate a new secret phrase",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "entropy",
				Usage: "entropy size in bits, 128 to 256",
				Value: 128,
			},
		},
		Action: genSeedAction,
	}
	setup = cli.Command{
		Name:  "setup",
		Usage: "load the secret phrase into the wallet and derive its accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "mnemonic",
				Usage:    "the secret phrase of the wallet",
				EnvVars:  []string{"WALLET_MNEMONIC"},
				Required: true,
			},
			&cli.IntFlag{
				Name:  "count",
				Usage: "the number of accounts to derive",
				Value: domain.DefaultAccountsCount,
			},
		},
		Action: setupAction,
	}
	useAccount = cli.Command{
		Name:      "use-account",
		Usage:     "select the active account by index",
		ArgsUsage: "<index>",
		Action:    useAccountAction,
	}
	switchChain = cli.Command{
		Name:      "switch-chain",
		Usage:     "select the active chain",
		ArgsUsage: "<chainId>",
		Action:    switchChainAction,
	}
	balance = cli.Command{
		Name:      "balance",
		Usage:     "show the balance of an address, or of the active account",
		ArgsUsage: "[address]",
		Action:    balanceAction,
	}
)

func genSeedAction(ctx *cli.Context) error {
	mnemonic, err := wallet.NewMnemonic(wallet.NewMnemonicOpts{
		EntropySize: ctx.Int("entropy"),
	})
	if err != nil {
		return err
	}
	fmt.Println(mnemonic)
	return nil
}

func setupAction(ctx *cli.Context) error {
	mnemonic := ctx.String("mnemonic")
	if !wallet.IsMnemonicValid(mnemonic) {
		return domain.ErrInvalidSecret
	}

	result, err := send(ctx, protocol.Message{
		Type:   protocol.TypeWalletSetup,
		Secret: mnemonic,
		Count:  ctx.Int("count"),
	})
	if err != nil {
		return err
	}
	printRawJSON(result)
	return nil
}

func useAccountAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}
	index, err := strconv.Atoi(ctx.Args().First())
	if err != nil || index < 0 {
		return fmt.Errorf("invalid account index %q", ctx.Args().First())
	}

	result, err := send(ctx, protocol.Message{
		Type:         protocol.TypeAccountChanged,
		AccountIndex: &index,
	})
	if err != nil {
		return err
	}
	printRawJSON(result)
	return nil
}

func switchChainAction(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return &invalidUsageError{ctx, ctx.Command.Name}
	}
	chainId, err := parseChainId(ctx.Args().First())
	if err != nil {
		return err
	}

	if _, err := send(ctx, protocol.Message{
		Type:    protocol.TypeChainChanged,
		ChainId: chainId,
	}); err != nil {
		return err
	}
	fmt.Println(chainId)
	return nil
}

func balanceAction(ctx *cli.Context) error {
	params := []string{}
	if address := ctx.Args().First(); address != "" {
		params = append(params, address)
	}
	buf, _ := json.Marshal(params)

	result, err := send(ctx, protocol.Message{
		Type:   protocol.TypeRPC,
		Method: domain.MethodGetBalance,
		Params: buf,
	})
	if err != nil {
		return err
	}

	var quantity string
	if err := json.Unmarshal(result, &quantity); err != nil {
		return fmt.Errorf("unexpected balance %s", result)
	}
	wei, err := hexutil.DecodeBig(quantity)
	if err != nil {
		return fmt.Errorf("unexpected balance %q: %v", quantity, err)
	}

	printJSON(map[string]string{
		"wei":   wei.String(),
		"ether": formatEther(wei),
	})
	return nil
}

// formatEther renders an amount of wei in ether, without trailing zeros.
func formatEther(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).String()
}

// parseChainId accepts the chain id either as hex quantity or as decimal
// number and returns its hex form.
func parseChainId(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		n, err := domain.ParseChainId(s)
		if err != nil {
			return "", err
		}
		return hexutil.EncodeBig(n), nil
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() <= 0 {
		return "", domain.ErrInvalidChainId
	}
	return hexutil.EncodeBig(n), nil
}
