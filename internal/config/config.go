package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/RoseGit/MasterBlockchain/internal/core/domain"
	"github.com/btcsuite/btcd/btcutil"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

const (
	// RPCListeningPortKey is the port where the relay and surface websocket
	// endpoints are served
	RPCListeningPortKey = "RPC_LISTENING_PORT"
	// MetricsListeningPortKey is the port of the prometheus /metrics endpoint,
	// 0 disables it
	MetricsListeningPortKey = "METRICS_LISTENING_PORT"
	// DatadirKey is the local data directory to store the internal state of daemon
	DatadirKey = "DATADIR"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// DefaultChainIdKey is the chain selected until the user switches to another
	DefaultChainIdKey = "DEFAULT_CHAIN_ID"
	// RPCEndpointsKey is the list of chainId=url JSON-RPC endpoints, chains
	// not listed use FallbackRPCEndpointKey
	RPCEndpointsKey = "RPC_ENDPOINTS"
	// FallbackRPCEndpointKey is the endpoint of chains not listed in RPCEndpointsKey
	FallbackRPCEndpointKey = "FALLBACK_RPC_ENDPOINT"
	// ApprovalTimeoutKey is the duration in seconds a signing request waits
	// for the user decision
	ApprovalTimeoutKey = "APPROVAL_TIMEOUT"
	// ConnectionTimeoutKey is the duration in seconds an account disclosure
	// request waits for the user decision
	ConnectionTimeoutKey = "CONNECTION_TIMEOUT"
	// DefaultAccountsCountKey is the number of accounts derived from the secret
	// phrase when the caller does not say
	DefaultAccountsCountKey = "DEFAULT_ACCOUNTS_COUNT"
	// OriginRateLimitKey is the number of RPC calls per second allowed per
	// page origin, 0 disables the limit
	OriginRateLimitKey = "ORIGIN_RATE_LIMIT"
	// OriginRateBurstKey is the burst of RPC calls allowed per page origin
	OriginRateBurstKey = "ORIGIN_RATE_BURST"
	// ChainRPCRateLimitKey is the number of requests per second sent to each
	// chain endpoint
	ChainRPCRateLimitKey = "CHAIN_RPC_RATE_LIMIT"
	// ChainRPCTimeoutKey is the duration in seconds of a single chain request
	ChainRPCTimeoutKey = "CHAIN_RPC_TIMEOUT"
	// BaseDerivationPathKey is the BIP-32 path accounts are derived from,
	// m/44'/60'/0'/0 if empty
	BaseDerivationPathKey = "BASE_DERIVATION_PATH"
	// SecretPassphraseKey, if set, encrypts the secret phrase at rest
	SecretPassphraseKey = "SECRET_PASSPHRASE"

	DbLocation = "db"

	DBBadger   = "badger"
	DBInMemory = "inmemory"
)

var vip *viper.Viper
var defaultDatadir = btcutil.AppDataDir("walletd", false)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("WALLET")
	vip.AutomaticEnv()

	vip.SetDefault(RPCListeningPortKey, 9945)
	vip.SetDefault(MetricsListeningPortKey, 9946)
	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(LogLevelKey, 4)
	vip.SetDefault(DBTypeKey, DBBadger)
	vip.SetDefault(DefaultChainIdKey, domain.DefaultChainId)
	vip.SetDefault(RPCEndpointsKey, []string{domain.DefaultChainId + "=http://127.0.0.1:8545"})
	vip.SetDefault(FallbackRPCEndpointKey, "https://rpc.sepolia.org")
	vip.SetDefault(ApprovalTimeoutKey, 120)
	vip.SetDefault(ConnectionTimeoutKey, 60)
	vip.SetDefault(DefaultAccountsCountKey, domain.DefaultAccountsCount)
	vip.SetDefault(OriginRateLimitKey, 10)
	vip.SetDefault(OriginRateBurstKey, 20)
	vip.SetDefault(ChainRPCRateLimitKey, 20)
	vip.SetDefault(ChainRPCTimeoutKey, 15)

	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}

	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}

	log.SetLevel(log.Level(GetInt(LogLevelKey)))
	return nil
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetFloat(key string) float64 {
	return vip.GetFloat64(key)
}

// GetStringSlice also splits comma separated values, env vars can only
// be given that way.
func GetStringSlice(key string) []string {
	values := make([]string, 0)
	for _, v := range vip.GetStringSlice(key) {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				values = append(values, s)
			}
		}
	}
	return values
}

// GetSeconds returns the value of key, expressed in seconds, as a duration.
func GetSeconds(key string) time.Duration {
	return time.Duration(vip.GetInt(key)) * time.Second
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

// GetDbDir returns the directory of the persistent store, empty for the
// in-memory one.
func GetDbDir() string {
	if GetString(DBTypeKey) == DBInMemory {
		return ""
	}
	return filepath.Join(GetDatadir(), DbLocation)
}

// GetEndpoints returns the chain endpoints parsed from RPCEndpointsKey.
func GetEndpoints() (domain.Endpoints, error) {
	return domain.ParseEndpoints(GetStringSlice(RPCEndpointsKey))
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	dbType := GetString(DBTypeKey)
	if dbType != DBBadger && dbType != DBInMemory {
		return fmt.Errorf(
			"%s must be either %s or %s", DBTypeKey, DBBadger, DBInMemory,
		)
	}

	logLevel := GetInt(LogLevelKey)
	if logLevel < int(log.PanicLevel) || logLevel > int(log.TraceLevel) {
		return fmt.Errorf("%s must be in range [0, 6]", LogLevelKey)
	}

	if err := domain.ValidateChainId(GetString(DefaultChainIdKey)); err != nil {
		return fmt.Errorf("%s: %s", DefaultChainIdKey, err)
	}
	if _, err := GetEndpoints(); err != nil {
		return fmt.Errorf("%s: %s", RPCEndpointsKey, err)
	}
	if GetString(FallbackRPCEndpointKey) == "" {
		return fmt.Errorf("missing %s", FallbackRPCEndpointKey)
	}

	for _, key := range []string{
		ApprovalTimeoutKey, ConnectionTimeoutKey, DefaultAccountsCountKey,
		ChainRPCRateLimitKey, ChainRPCTimeoutKey,
	} {
		if GetInt(key) <= 0 {
			return fmt.Errorf("%s must be greater than zero", key)
		}
	}
	if GetInt(DefaultAccountsCountKey) > domain.MaxAccountsCount {
		return fmt.Errorf(
			"%s must not exceed %d", DefaultAccountsCountKey, domain.MaxAccountsCount,
		)
	}

	rateLimit, rateBurst := GetFloat(OriginRateLimitKey), GetInt(OriginRateBurstKey)
	if rateLimit < 0 || rateBurst < 0 {
		return fmt.Errorf("%s and %s must not be negative", OriginRateLimitKey, OriginRateBurstKey)
	}
	if rateLimit > 0 && rateBurst == 0 {
		return fmt.Errorf("%s must be greater than zero", OriginRateBurstKey)
	}

	rpcPort, metricsPort := GetInt(RPCListeningPortKey), GetInt(MetricsListeningPortKey)
	if rpcPort <= 0 {
		return fmt.Errorf("%s must be greater than zero", RPCListeningPortKey)
	}
	if metricsPort == rpcPort {
		return fmt.Errorf(
			"%s and %s must be different", RPCListeningPortKey, MetricsListeningPortKey,
		)
	}

	return nil
}

func initDatadir() error {
	if GetString(DBTypeKey) != DBBadger {
		return nil
	}
	return makeDirectoryIfNotExists(filepath.Join(GetDatadir(), DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
