package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	"github.com/RoseGit/MasterBlockchain/pkg/relay"
	"github.com/urfave/cli/v2"
)

const defaultRPCServer = "ws://localhost:9945/surface"

var rpcServerFlag = &cli.StringFlag{
	Name:    "rpcserver",
	Usage:   "the surface endpoint of the wallet daemon",
	Value:   defaultRPCServer,
	EnvVars: []string{"WALLET_RPCSERVER"},
}

var timeoutFlag = &cli.DurationFlag{
	Name:  "timeout",
	Usage: "max time to wait for the daemon to answer",
	Value: 10 * time.Second,
}

func main() {
	app := cli.NewApp()

	app.Version = "0.1.0"
	app.Name = "walletctl"
	app.Usage = "Approval surface for the wallet daemon"
	app.Flags = []cli.Flag{rpcServerFlag, timeoutFlag}
	app.Commands = append(
		app.Commands,
		&genseed,
		&setup,
		&pending,
		&watch,
		&approve,
		&reject,
		&connect,
		&decline,
		&useAccount,
		&switchChain,
		&balance,
	)

	err := app.Run(os.Args)
	if err != nil {
		fatal(err)
	}
}

func getConn(ctx *cli.Context) (*relay.Conn, func(), error) {
	dialCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration(timeoutFlag.Name))
	defer cancel()

	conn, err := relay.Dial(dialCtx, ctx.String(rpcServerFlag.Name), "")
	if err != nil {
		return nil, nil, fmt.Errorf("unable to connect to wallet daemon: %v", err)
	}
	cleanup := func() { _ = conn.Close() }
	return conn, cleanup, nil
}

// send delivers one message to the daemon and returns the reply result.
func send(ctx *cli.Context, msg protocol.Message) (json.RawMessage, error) {
	conn, cleanup, err := getConn(ctx)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	reqCtx, cancel := context.WithTimeout(ctx.Context, ctx.Duration(timeoutFlag.Name))
	defer cancel()

	reply, err := conn.Send(reqCtx, msg)
	if err != nil {
		return nil, err
	}
	if err := reply.Err(); err != nil {
		return nil, err
	}
	return reply.Result, nil
}

func printJSON(resp interface{}) {
	buf, err := json.MarshalIndent(resp, "", "\t")
	if err != nil {
		fmt.Println("unable to decode response: ", err)
		return
	}
	fmt.Println(string(buf))
}

func printRawJSON(raw json.RawMessage) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		fmt.Println(string(raw))
		return
	}
	printJSON(v)
}

type invalidUsageError struct {
	ctx     *cli.Context
	command string
}

func (e *invalidUsageError) Error() string {
	return fmt.Sprintf("invalid usage of command %s", e.command)
}

func fatal(err error) {
	var e *invalidUsageError
	if errors.As(err, &e) {
		_ = cli.ShowCommandHelp(e.ctx, e.command)
	} else {
		_, _ = fmt.Fprintf(os.Stderr, "[walletctl] %v\n", err)
	}
	os.Exit(1)
}
