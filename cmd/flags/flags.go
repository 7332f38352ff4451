package flags

import (
	"errors"
	"io/fs"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/ruteri/be-registry/api"
	bcommon "github.com/ruteri/be-registry/common"
	"github.com/urfave/cli/v2"
)

// DefaultRegistryAddress is the address the registry is deployed at when none
// is configured.
const DefaultRegistryAddress = "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"

// LoadDotEnv loads variables from an env file into the process environment
// before flags are parsed. Variables already set take precedence and a
// missing file is not an error.
func LoadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String("log-service")

	logger := bcommon.SetupLogger(&bcommon.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: bcommon.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

func ConfigureServer(cCtx *cli.Context, logger *slog.Logger, listenAddr string) *api.HTTPServerConfig {
	metricsAddr := cCtx.String(MetricsAddrFlag.Name)
	enablePprof := cCtx.Bool(PprofFlag.Name)
	drainDuration := time.Duration(cCtx.Int64(DrainSecondsFlag.Name)) * time.Second

	return &api.HTTPServerConfig{
		ListenAddr:               listenAddr,
		MetricsAddr:              metricsAddr,
		Log:                      logger,
		EnablePprof:              enablePprof,
		DrainDuration:            drainDuration,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
		MaxRequestBodyBytes:      cCtx.Int64(MaxBodyBytesFlag.Name),
	}
}

// ParseAddress parses a hex account address flag value.
func ParseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, cli.Exit("invalid "+name+" address: "+value, 1)
	}
	return common.HexToAddress(value), nil
}

var RegistryAddrFlag = &cli.StringFlag{
	Name:    "registry-address",
	Value:   DefaultRegistryAddress,
	EnvVars: []string{"REGISTRY_ADDRESS"},
	Usage:   "address identifying the registry, used to derive entity addresses",
}

var ServerAddrFlag = &cli.StringFlag{
	Name:    "server",
	Value:   "http://127.0.0.1:8080",
	EnvVars: []string{"REGISTRY_SERVER"},
	Usage:   "registry server base URL",
}

var CallerFlag = &cli.StringFlag{
	Name:    "caller",
	EnvVars: []string{"REGISTRY_CALLER"},
	Usage:   "account address to perform calls as",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:    "log-json",
	Value:   false,
	EnvVars: []string{"LOG_JSON"},
	Usage:   "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:    "log-debug",
	Value:   false,
	EnvVars: []string{"LOG_DEBUG"},
	Usage:   "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:    "log-uid",
	Value:   false,
	EnvVars: []string{"LOG_UID"},
	Usage:   "generate a uuid and add to all log messages",
}

var LogServiceFlagFn = func(service string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "log-service",
		Value:   service,
		EnvVars: []string{"LOG_SERVICE"},
		Usage:   "add 'service' tag to logs",
	}
}

var PprofFlag = &cli.BoolFlag{
	Name:    "pprof",
	Value:   false,
	EnvVars: []string{"PPROF"},
	Usage:   "enable pprof debug endpoint",
}
var DrainSecondsFlag = &cli.Int64Flag{
	Name:    "drain-seconds",
	Value:   45,
	EnvVars: []string{"DRAIN_SECONDS"},
	Usage:   "seconds to report not ready before shutting down",
}
var MetricsAddrFlag = &cli.StringFlag{
	Name:    "metrics-addr",
	Value:   "127.0.0.1:8090",
	EnvVars: []string{"METRICS_ADDR"},
	Usage:   "address to listen on for Prometheus metrics, empty to disable",
}
var MaxBodyBytesFlag = &cli.Int64Flag{
	Name:    "max-body-bytes",
	Value:   api.DefaultMaxRequestBodyBytes,
	EnvVars: []string{"MAX_BODY_BYTES"},
	Usage:   "maximum accepted request body size",
}

var LogFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
}

var CommonFlags = []cli.Flag{
	LogJsonFlag,
	LogDebugFlag,
	LogUidFlag,
	PprofFlag,
	DrainSecondsFlag,
	MetricsAddrFlag,
	MaxBodyBytesFlag,
}
