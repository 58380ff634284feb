package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	walletkit "github.com/vitwit/walletkit"
	"github.com/vitwit/walletkit/clients"
	"github.com/vitwit/walletkit/config"
	"github.com/vitwit/walletkit/console"
	"github.com/vitwit/walletkit/logger"
	"github.com/vitwit/walletkit/metrics"
	"github.com/vitwit/walletkit/script"
	"github.com/vitwit/walletkit/types"
	"github.com/vitwit/walletkit/wallet"
)

// newApp builds the walletkit command tree. Without a command it runs the
// demo sequence.
func newApp(out io.Writer) *cli.Command {
	return &cli.Command{
		Name:        "walletkit",
		Version:     walletkit.Version,
		Usage:       "walletkit [command]",
		Description: "Wallet and contract client for the greeter demo on Base Sepolia and Polygon Amoy. Settings come from the environment or a .env file.",
		Action:      stepAction(out, "sequence"),
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run the demo sequence: balance, greeting, contract transfer, balances",
				Action: stepAction(out, "sequence"),
			},
			{
				Name:   "console",
				Usage:  "Open the interactive wallet console",
				Action: consoleAction(out),
			},
			{
				Name:   "balance",
				Usage:  "Print the account balance",
				Action: stepAction(out, "balance"),
			},
			{
				Name:   "hello",
				Usage:  "Print the contract greeting",
				Action: stepAction(out, "hello"),
			},
			{
				Name:   "owner",
				Usage:  "Print the contract owner",
				Action: stepAction(out, "owner"),
			},
			{
				Name:   "contract-balance",
				Usage:  "Print the contract balance",
				Action: stepAction(out, "contract-balance"),
			},
			{
				Name:   "fund-contract",
				Usage:  fmt.Sprintf("Send %s ETH to the contract with a %d gas limit", script.FundAmount, script.FundGasLimit),
				Action: stepAction(out, "fund-contract"),
			},
		},
	}
}

// env is what every command needs once the configuration has loaded.
type env struct {
	cfg      *config.Config
	log      logger.Logger
	recorder metrics.Recorder
	reader   *clients.EVMClient
	greeter  *clients.Greeter
	shutdown func()
}

func setup(ctx context.Context) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.NewZapLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	e := &env{cfg: cfg, log: log, recorder: metrics.NoopRecorder{}, shutdown: func() {}}
	if cfg.MetricsAddr != "" {
		e.recorder, e.shutdown = serveMetrics(cfg.MetricsAddr, log)
	}

	reader, err := clients.NewEVMClient(cfg.RPC, nil)
	if err != nil {
		e.close()
		return nil, err
	}
	e.reader = reader

	greeter, err := clients.NewGreeter(cfg.Contract(), reader.Backend())
	if err != nil {
		e.close()
		return nil, err
	}
	e.greeter = greeter

	log.Debug("configuration loaded", map[string]any{
		"rpc":      cfg.RPC,
		"contract": cfg.ContractAddress,
		"network":  cfg.Network,
	})
	return e, nil
}

func (e *env) close() {
	if e.reader != nil {
		e.reader.Close()
	}
	e.shutdown()
	_ = e.log.Sync()
}

func serveMetrics(addr string, log logger.Logger) (metrics.Recorder, func()) {
	recorder := metrics.NewPrometheusRecorder()

	mux := http.NewServeMux()
	mux.Handle("/metrics", recorder.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", map[string]any{"addr": addr, "error": err})
		}
	}()
	log.Info("serving metrics", map[string]any{"addr": addr})

	return recorder, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// stepAction runs one script step, or the whole sequence. Step failures are
// logged and never turn into a non-zero exit.
func stepAction(out io.Writer, step string) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.close()

		runner, kit, err := e.scriptRunner(ctx, out)
		if err != nil {
			e.log.Error("error preparing wallet", map[string]any{"error": err})
			return nil
		}
		defer kit.Close()

		switch step {
		case "sequence":
			report := runner.Run(ctx)
			e.log.Info("sequence finished", map[string]any{"steps": len(report.Steps), "failed": report.Failed()})
		case "balance":
			runner.RunSteps(ctx, script.Step{Name: "account_balance", Run: runner.AccountBalance})
		case "hello":
			runner.RunSteps(ctx, script.Step{Name: "say_hello", Run: runner.SayHello})
		case "owner":
			runner.RunSteps(ctx, script.Step{Name: "contract_owner", Run: runner.Owner})
		case "contract-balance":
			runner.RunSteps(ctx, script.Step{Name: "contract_balance", Run: runner.ContractBalance})
		case "fund-contract":
			runner.RunSteps(ctx, script.Step{Name: "fund_contract", Run: func(ctx context.Context) error {
				return runner.FundContract(ctx, script.FundAmount)
			}})
		}
		return nil
	}
}

// scriptRunner connects a key-backed wallet on the RPC endpoint's chain and
// returns a runner acting as its first account.
func (e *env) scriptRunner(ctx context.Context, out io.Writer) (*script.Runner, *walletkit.Kit, error) {
	keys, err := e.cfg.Keys()
	if err != nil {
		return nil, nil, err
	}

	chainID, err := e.reader.ChainID(ctx)
	if err != nil {
		return nil, nil, types.NewRemoteError(types.ErrNetworkError, "error fetching chain id", err)
	}

	backend := e.reader.Backend()
	w, err := wallet.NewLocal(keys, e.cfg.RPCNetwork(chainID),
		wallet.WithDialer(func(context.Context, string) (clients.Backend, error) {
			return backend, nil
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	kit, err := walletkit.New(w, e.greeter,
		walletkit.WithLogger(e.log),
		walletkit.WithMetrics(e.recorder),
	)
	if err != nil {
		return nil, nil, err
	}
	if err := kit.Connect(ctx); err != nil {
		return nil, nil, err
	}

	account, _ := kit.Session().Account()
	return script.NewRunner(account, w, e.greeter, kit.Transfers(), e.log, out), kit, nil
}

func consoleAction(out io.Writer) cli.ActionFunc {
	return func(ctx context.Context, _ *cli.Command) error {
		e, err := setup(ctx)
		if err != nil {
			return err
		}
		defer e.close()

		keys, err := e.cfg.Keys()
		if err != nil {
			return err
		}
		initial, err := e.cfg.InitialNetwork()
		if err != nil {
			return err
		}

		prompter := console.PromptUI{}
		w, err := wallet.NewLocal(keys, initial, wallet.WithApprover(console.Approver(prompter)))
		if err != nil {
			return err
		}
		defer w.Close()

		kit, err := walletkit.New(w, e.greeter,
			walletkit.WithLogger(e.log),
			walletkit.WithMetrics(e.recorder),
			walletkit.WithNotifier(console.NewNotifier(out)),
		)
		if err != nil {
			return err
		}
		defer kit.Close()

		return console.New(kit, prompter, out, e.log).Run(ctx)
	}
}
