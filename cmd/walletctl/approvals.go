package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	"github.com/urfave/cli/v2"
)

var reasonFlag = &cli.StringFlag{
	Name:  "reason",
	Usage: "the reason reported to the dApp",
}

var (
	pending = cli.Command{
		Name:   "pending",
		Usage:  "list the requests waiting for a decision",
		Action: pendingAction,
	}
	watch = cli.Command{
		Name:   "watch",
		Usage:  "print requests as they are opened and closed",
		Action: watchAction,
	}
	approve = cli.Command{
		Name:      "approve",
		Usage:     "approve a signing request",
		ArgsUsage: "<approvalId>",
		Action:    approveAction,
	}
	reject = cli.Command{
		Name:      "reject",
		Usage:     "reject a signing request",
		ArgsUsage: "<approvalId>",
		Flags:     []cli.Flag{reasonFlag},
		Action:    rejectAction,
	}
	connect = cli.Command{
		Name:      "connect",
		Usage:     "disclose an account to the site of a connection request",
		ArgsUsage: "<requestId>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "account",
				Usage: "the address to disclose, the active account if omitted",
			},
		},
		Action: connectAction,
	}
	decline = cli.Command{
		Name:      "decline",
		Usage:     "decline a connection request",
		ArgsUsage: "<requestId>",
		Flags:     []cli.Flag{reasonFlag},
		Action:    declineAction,
	}
)

func pendingAction(ctx *cli.Context) error {
	result, err := send(ctx, protocol.Message{Type: protocol.TypeListWindows})
	if err != nil {
		return err
	}
	printRawJSON(result)
	return nil
}

func watchAction(ctx *cli.Context) error {
	conn, cleanup, err := getConn(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	defer signal.Stop(sigChan)

	for {
		select {
		case <-sigChan:
			return nil
		case <-conn.Done():
			return fmt.Errorf("wallet daemon went away")
		case msg, ok := <-conn.Events():
			if !ok {
				return fmt.Errorf("wallet daemon went away")
			}
			printJSON(msg)
		}
	}
}

func approveAction(ctx *cli.Context) error {
	return signResponse(ctx, true)
}

func rejectAction(ctx *cli.Context) error {
	return signResponse(ctx, false)
}

func signResponse(ctx *cli.Context, approved bool) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}
	msg := protocol.Message{
		Type:       protocol.TypeSignResponse,
		ApprovalID: id,
		Success:    approved,
	}
	if !approved {
		msg.Error = ctx.String(reasonFlag.Name)
	}
	if _, err := send(ctx, msg); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func connectAction(ctx *cli.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}
	if _, err := send(ctx, protocol.Message{
		Type:      protocol.TypeConnectResponse,
		RequestID: id,
		Success:   true,
		Account:   ctx.String("account"),
	}); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func declineAction(ctx *cli.Context) error {
	id, err := parseID(ctx)
	if err != nil {
		return err
	}
	if _, err := send(ctx, protocol.Message{
		Type:      protocol.TypeConnectResponse,
		RequestID: id,
		Error:     ctx.String(reasonFlag.Name),
	}); err != nil {
		return err
	}
	fmt.Println("ok")
	return nil
}

func parseID(ctx *cli.Context) (uint64, error) {
	if ctx.NArg() != 1 {
		return 0, &invalidUsageError{ctx, ctx.Command.Name}
	}
	id, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid request id %q", ctx.Args().First())
	}
	return id, nil
}
