package domain

import "time"

// Keys of the persisted wallet state. Values are JSON encoded.
const (
	SecretKey             = "codecrypto_mnemonic"
	AccountsKey           = "codecrypto_accounts"
	CurrentAccountKey     = "codecrypto_current_account"
	ChainIdKey            = "codecrypto_chain_id"
	ConnectedSitesKey     = "codecrypto_connected_sites"
	PendingRequestKey     = "codecrypto_pending_request"
	PendingConnectRequest = "codecrypto_connect_request"
)

// RPC methods served by the orchestrator.
const (
	MethodDeriveAccounts = "wallet_deriveAccounts"
	MethodRequestAccount = "eth_requestAccounts"
	MethodAccounts       = "eth_accounts"
	MethodChainId        = "eth_chainId"
	MethodGetBalance     = "eth_getBalance"
	MethodSendTx         = "eth_sendTransaction"
	MethodSignTypedData  = "eth_signTypedData_v4"
	MethodSwitchChain    = "wallet_switchEthereumChain"
)

// Events broadcast to page contexts.
const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

const (
	// DefaultChainId is the local hardhat/anvil network.
	DefaultChainId = "0x7a69"
	// DefaultAccountsCount is how many accounts are derived when the caller
	// does not say.
	DefaultAccountsCount = 5
	// MaxAccountsCount bounds how many accounts a single call may derive.
	MaxAccountsCount = 100

	DefaultApprovalTimeout   = 120 * time.Second
	DefaultConnectionTimeout = 60 * time.Second
)
