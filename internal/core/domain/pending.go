package domain

import (
	"encoding/json"
	"time"
)

// PendingApproval is a signing request waiting for a human decision.
type PendingApproval struct {
	ID        uint64
	Method    string
	Params    json.RawMessage
	ChainId   string
	CreatedAt time.Time
	WindowID  string
}

// Record returns the representation persisted for the approval surface.
func (p PendingApproval) Record() ApprovalRecord {
	return ApprovalRecord{
		ApprovalID: p.ID,
		Method:     p.Method,
		Params:     p.Params,
		ChainId:    p.ChainId,
	}
}

// ApprovalRecord is stored under PendingRequestKey.
type ApprovalRecord struct {
	ApprovalID uint64          `json:"approvalId"`
	Method     string          `json:"method"`
	Params     json.RawMessage `json:"params"`
	ChainId    string          `json:"chainId"`
}

// PendingConnection is an eth_requestAccounts call waiting for the user to
// pick the account to disclose.
type PendingConnection struct {
	ID                  uint64
	Origin              string
	OfferedAccounts     Accounts
	CurrentAccountIndex int
	CreatedAt           time.Time
	WindowID            string
}

// Record returns the representation persisted for the connection surface.
func (p PendingConnection) Record() ConnectionRecord {
	return ConnectionRecord{
		RequestID:           p.ID,
		Origin:              p.Origin,
		Accounts:            p.OfferedAccounts,
		CurrentAccountIndex: p.CurrentAccountIndex,
	}
}

// ConnectionRecord is stored under PendingConnectRequest.
type ConnectionRecord struct {
	RequestID           uint64   `json:"requestId"`
	Origin              string   `json:"origin"`
	Accounts            []string `json:"accounts"`
	CurrentAccountIndex int      `json:"currentAccountIndex"`
}

// Decision is what the approval surface reports for a PendingApproval.
type Decision struct {
	Approved bool
	Reason   string
}

// ConnectDecision is what the connection surface reports for a
// PendingConnection.
type ConnectDecision struct {
	Approved bool
	Account  string
	Reason   string
}

// WindowKind tells the approval surface which view to present.
type WindowKind string

const (
	ApprovalWindow   WindowKind = "approval"
	ConnectionWindow WindowKind = "connection"
)
