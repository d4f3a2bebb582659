package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/nervosnetwork/ckb-go/chain"
	"github.com/nervosnetwork/ckb-go/common"
	"github.com/nervosnetwork/ckb-go/config"
	"github.com/nervosnetwork/ckb-go/pkg/log"
	"github.com/nervosnetwork/ckb-go/rpc"
	"github.com/nervosnetwork/ckb-go/script"
	"github.com/nervosnetwork/ckb-go/store"
	"github.com/nervosnetwork/ckb-go/sync"
	"github.com/nervosnetwork/ckb-go/txpool"
	"github.com/nervosnetwork/ckb-go/verifier"
)

var logger = log.NewModuleLogger(log.CmdCkbNode)

var (
	dataDirFlag = cli.StringFlag{
		Name:  "datadir",
		Usage: "Directory the node persists its store under",
		Value: "./data",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "TOML file overriding the default configuration",
	}
	memoryDBFlag = cli.BoolFlag{
		Name:  "memorydb",
		Usage: "Run against an in-memory store instead of the on-disk one (devnet only)",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Usage: "Log verbosity, 0 (trace) through 5 (crit)",
		Value: int(log.LvlInfo),
	}
	rpcAddrFlag = cli.StringFlag{
		Name:  "rpc.addr",
		Usage: "Listen address for the JSON query HTTP server",
		Value: "127.0.0.1:8114",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Listen address for the Prometheus /metrics endpoint",
		Value: "127.0.0.1:8115",
	}
)

func main() {
	app := cli.NewApp()
	app.Name = "ckbnode"
	app.Usage = "Nervos CKB full node"
	app.Flags = []cli.Flag{dataDirFlag, configFlag, memoryDBFlag, verbosityFlag, rpcAddrFlag, metricsAddrFlag}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	log.SetLevel(log.Level(ctx.Int(verbosityFlag.Name)))

	cfg := config.Default()
	if path := ctx.String(configFlag.Name); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded
	}
	if dir := ctx.String(dataDirFlag.Name); dir != "" {
		cfg.DataDir = dir
	}
	cfg.Store.Dir = cfg.DataDir

	n, err := newNode(cfg, ctx.Bool(memoryDBFlag.Name))
	if err != nil {
		return err
	}
	n.start(ctx.String(rpcAddrFlag.Name), ctx.String(metricsAddrFlag.Name))
	defer n.stop()

	tipHash, tipNumber := n.chain.Tip()
	logger.Info("node started", "tip", tipHash, "number", tipNumber)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")
	return nil
}

// node bundles the services a single process runs: persistent storage,
// the canonical-chain service, the mempool, and the headers-first
// synchronizer. cmd/ckbnode is the only place that wires these four
// packages together, since each one is built to depend only on the
// narrow interface the next layer up needs from it.
type node struct {
	db         store.Manager
	chain      *chain.Chain
	pool       *txpool.Pool
	sync       *sync.Synchronizer
	rpcSrv     *http.Server
	metricsSrv *http.Server
	bridge     *prometheusBridge
}

func newNode(cfg config.Config, useMemoryDB bool) (*node, error) {
	db, err := openStore(cfg.Store, useMemoryDB)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	verifyCache, err := common.NewCache(common.LRUConfig{CacheSize: 10_000})
	if err != nil {
		return nil, fmt.Errorf("allocating script verification cache: %w", err)
	}
	engine := script.NewEngine(acceptAllVM{})
	txv := verifier.NewTransactionVerifier(engine, verifyCache)

	genesis := devGenesis()

	// chain.New wants the pool as its PoolNotifier and txpool.New wants
	// the chain as its TipResolver, so neither can be built first. The
	// resolver here is a thin late-bound indirection: the pool only
	// calls Resolve after a transaction is submitted, which never
	// happens before chain construction below finishes and sets c.
	resolver := &chainResolver{}
	pool, err := txpool.New(cfg.Pool, txv, resolver)
	if err != nil {
		return nil, fmt.Errorf("starting tx pool: %w", err)
	}

	c, err := chain.New(cfg.Chain, db, txv, pool, genesis)
	if err != nil {
		return nil, fmt.Errorf("starting chain service: %w", err)
	}
	resolver.c = c

	synchronizer := sync.New(cfg.Sync, c, genesis.Header, pool)

	return &node{db: db, chain: c, pool: pool, sync: synchronizer}, nil
}

func (n *node) start(rpcAddr, metricsAddr string) {
	n.sync.Start()
	backend := rpc.NewNodeBackend(n.chain, n.pool)
	n.rpcSrv = &http.Server{Addr: rpcAddr, Handler: rpc.NewServer(rpc.NewBlockChainAPI(backend))}
	go func() {
		if err := n.rpcSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("rpc server stopped", "err", err)
		}
	}()

	n.bridge = newPrometheusBridge(3 * time.Second)
	n.bridge.start()
	mux := http.NewServeMux()
	mux.Handle("/metrics", metricsHandler())
	n.metricsSrv = &http.Server{Addr: metricsAddr, Handler: mux}
	go func() {
		if err := n.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()
}

func (n *node) stop() {
	if n.rpcSrv != nil {
		_ = n.rpcSrv.Close()
	}
	if n.metricsSrv != nil {
		_ = n.metricsSrv.Close()
	}
	if n.bridge != nil {
		n.bridge.stop()
	}
	n.sync.Stop()
	n.pool.Stop()
	n.db.Close()
}

// chainResolver adapts chain.Chain.TipContext to txpool.TipResolver.
// It exists here rather than in the chain package because the chain
// package deliberately has no notion of verifier.Context consumers
// beyond "whatever Resolve's caller needs" (see chain/resolver.go).
type chainResolver struct {
	c *chain.Chain
}

func (r *chainResolver) Resolve() (*verifier.Context, uint64, func(), error) {
	return r.c.TipContext()
}

func openStore(cfg store.DBConfig, useMemoryDB bool) (store.Manager, error) {
	if useMemoryDB {
		return store.NewMemoryDBManager(), nil
	}
	return store.NewDBManager(&cfg)
}
