package wsinterface

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/RoseGit/MasterBlockchain/pkg/protocol"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// SurfaceOrigin is the origin RPC calls coming from an approval surface are
// dispatched with.
const SurfaceOrigin = "wallet://surface"

var (
	errRequestSettled = errors.New("request not found or already settled")
	errInternal       = errors.New("internal wallet error")
)

func (s *Service) serveRelay(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		http.Error(w, "missing origin", http.StatusBadRequest)
		return
	}

	conn, err := s.relayUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("failed to upgrade relay connection")
		return
	}
	sess := newSession(conn, origin)
	defer s.track(sess, "relay")()

	s.opts.Hub.add(sess)
	defer s.opts.Hub.remove(sess)

	logger := log.WithFields(log.Fields{"session": sess.id, "origin": origin})
	logger.Debug("page context connected")
	defer logger.Debug("page context disconnected")

	s.readLoop(sess, func(seq uint64, msg protocol.Message) {
		if msg.Type != protocol.TypeRPC {
			sess.reply(seq, protocol.NewErrorReply(
				fmt.Errorf("unsupported message type %q", msg.Type),
			))
			return
		}
		if !s.limiter.allow(origin, time.Now()) {
			s.metrics.observe(msg.Method, domain.ErrRateLimited, 0)
			sess.reply(seq, protocol.NewErrorReply(domain.ErrRateLimited))
			return
		}
		// Calls may wait for a human decision, serve them concurrently.
		go func() {
			sess.reply(seq, s.rpc(origin, msg))
		}()
	})
}

func (s *Service) serveSurface(w http.ResponseWriter, r *http.Request) {
	conn, err := s.surfaceUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Debug("failed to upgrade surface connection")
		return
	}
	sess := newSession(conn, SurfaceOrigin)
	defer s.track(sess, "surface")()

	defer s.opts.Windows.Attach(sess)()

	logger := log.WithField("session", sess.id)
	logger.Debug("approval surface connected")
	defer logger.Debug("approval surface disconnected")

	s.readLoop(sess, func(seq uint64, msg protocol.Message) {
		if msg.Type == protocol.TypeRPC {
			go func() {
				sess.reply(seq, s.rpc(SurfaceOrigin, msg))
			}()
			return
		}
		sess.reply(seq, s.surfaceMessage(msg))
	})
}

func (s *Service) surfaceMessage(msg protocol.Message) protocol.Reply {
	ctx := s.ctx

	switch msg.Type {
	case protocol.TypeConnectResponse:
		ok := s.opts.Wallet.HandleConnectResponse(msg.RequestID, domain.ConnectDecision{
			Approved: msg.Success,
			Account:  msg.Account,
			Reason:   msg.Error,
		})
		if !ok {
			return protocol.NewErrorReply(errRequestSettled)
		}
		return success(nil)

	case protocol.TypeSignResponse:
		ok := s.opts.Wallet.HandleSignResponse(msg.ApprovalID, domain.Decision{
			Approved: msg.Success,
			Reason:   msg.Error,
		})
		if !ok {
			return protocol.NewErrorReply(errRequestSettled)
		}
		return success(nil)

	case protocol.TypeAccountChanged:
		if msg.AccountIndex == nil {
			return protocol.NewErrorReply(
				fmt.Errorf("%w: missing account index", domain.ErrInvalidParams),
			)
		}
		account, err := s.opts.Wallet.SelectAccount(ctx, *msg.AccountIndex)
		if err != nil {
			return protocol.NewErrorReply(err)
		}
		return success(account)

	case protocol.TypeChainChanged:
		if err := s.opts.Wallet.SwitchChain(ctx, msg.ChainId); err != nil {
			return protocol.NewErrorReply(err)
		}
		return success(msg.ChainId)

	case protocol.TypeWalletSetup:
		accounts, err := s.opts.Wallet.SetupWallet(ctx, msg.Secret, msg.Count)
		if err != nil {
			return protocol.NewErrorReply(err)
		}
		return success(accounts)

	case protocol.TypeListWindows:
		windows := s.opts.Windows.List()
		list := make([]protocol.Message, 0, len(windows))
		for _, w := range windows {
			list = append(list, protocol.Message{
				Type:      protocol.TypeWindowOpen,
				WindowID:  w.ID,
				Kind:      string(w.Kind),
				RequestID: w.RequestID,
				Request:   w.Request,
			})
		}
		return success(list)

	default:
		return protocol.NewErrorReply(fmt.Errorf("unsupported message type %q", msg.Type))
	}
}

func (s *Service) rpc(origin string, msg protocol.Message) (reply protocol.Reply) {
	start := time.Now()
	// A failing call must not take the daemon down with it.
	defer func() {
		if r := recover(); r != nil {
			log.WithFields(log.Fields{
				"origin": origin,
				"method": msg.Method,
			}).Errorf("recovered from panic in rpc call: %v", r)
			s.metrics.observe(msg.Method, errInternal, time.Since(start))
			reply = protocol.NewErrorReply(errInternal)
		}
	}()
	result, err := s.opts.Wallet.Dispatch(s.ctx, origin, msg.Method, msg.Params)
	s.metrics.observe(msg.Method, err, time.Since(start))
	if err != nil {
		return protocol.NewErrorReply(err)
	}
	reply, err = protocol.NewResultReply(result)
	if err != nil {
		return protocol.NewErrorReply(err)
	}
	reply.Success = false
	return reply
}

func (s *Service) readLoop(sess *session, handle func(seq uint64, msg protocol.Message)) {
	sess.conn.SetReadLimit(maxMessageSize)
	for {
		_, buf, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(
				err, websocket.CloseGoingAway, websocket.CloseNormalClosure,
			) {
				log.WithError(err).WithField("session", sess.id).Debug(
					"connection dropped",
				)
			}
			return
		}

		var frame protocol.Frame
		if err := json.Unmarshal(buf, &frame); err != nil {
			log.WithError(err).WithField("session", sess.id).Debug(
				"ignoring malformed frame",
			)
			continue
		}
		if frame.Reply {
			continue
		}

		var msg protocol.Message
		if err := frame.Decode(&msg); err != nil {
			sess.reply(frame.Seq, protocol.NewErrorReply(
				fmt.Errorf("%w: %s", domain.ErrInvalidParams, err),
			))
			continue
		}
		handle(frame.Seq, msg)
	}
}

func success(result interface{}) protocol.Reply {
	reply, err := protocol.NewResultReply(result)
	if err != nil {
		return protocol.NewErrorReply(err)
	}
	return reply
}
