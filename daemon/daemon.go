// Package daemon assembles the node: storage, validators, chain manager and mempool, plus
// the object handler the wire layer feeds and the health and metrics endpoints.
package daemon

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/marabu-network/marabu/errors"
	"github.com/marabu-network/marabu/model"
	"github.com/marabu-network/marabu/services/blockvalidation"
	"github.com/marabu-network/marabu/services/mempool"
	"github.com/marabu-network/marabu/services/p2p"
	"github.com/marabu-network/marabu/services/validator"
	"github.com/marabu-network/marabu/settings"
	"github.com/marabu-network/marabu/stores/blob"
	"github.com/marabu-network/marabu/stores/object"
	"github.com/marabu-network/marabu/stores/utxo"
	"github.com/marabu-network/marabu/tracing"
	"github.com/marabu-network/marabu/ulogger"
	"github.com/ordishs/gocore"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Daemon struct {
	settings      *settings.Settings
	loggerFactory func(serviceName string) ulogger.Logger
	logger        ulogger.Logger
	network       p2p.Network
	blobStore     blob.Store
	ownsStore     bool
	chainOptions  []blockvalidation.Option

	objects   *object.Store
	states    *utxo.StateStore
	validator *validator.Validator
	chain     *blockvalidation.ChainManager
	mempool   *mempool.Mempool

	stats *gocore.Stat

	serverMu sync.Mutex
	server   *http.Server
}

func New(tSettings *settings.Settings, opts ...Option) *Daemon {
	initPrometheusMetrics()

	d := &Daemon{
		settings: tSettings,
		stats:    gocore.NewStat("daemon"),
	}

	for _, o := range opts {
		o(d)
	}

	if d.loggerFactory == nil {
		d.loggerFactory = func(serviceName string) ulogger.Logger {
			return ulogger.New(serviceName,
				ulogger.WithLevel(tSettings.LogLevel),
				ulogger.WithLoggerType(tSettings.LoggerType),
				ulogger.WithFilename(tSettings.LoggerFile),
			)
		}
	}

	d.logger = d.loggerFactory("daemon")

	return d
}

// Start opens the stores, builds the services and validates genesis. When the network
// accepts an object handler, HandleObject is registered with it.
func (d *Daemon) Start(ctx context.Context) (err error) {
	if !d.settings.Mempool.RejectNegativeFee {
		return errors.NewConfigurationError("[Daemon] mempool_rejectNegativeFee cannot be disabled")
	}

	if d.blobStore == nil {
		if d.blobStore, err = blob.NewStore(d.loggerFactory("blob"), d.settings.ObjectStore.StoreURL, d.settings.DataFolder); err != nil {
			return errors.NewConfigurationError("[Daemon] failed to open object store", err)
		}

		d.ownsStore = true
	}

	if d.network == nil {
		d.network = p2p.NewLoopback(d.loggerFactory("p2p"))
	}

	objectSettings := d.settings.ObjectStore

	if d.objects, err = object.New(ctx, d.loggerFactory("objects"), d.blobStore, d.network,
		object.WithRetrieveTimeout(objectSettings.RetrieveTimeout),
		object.WithCacheTTL(objectSettings.CacheTTL),
		object.WithCacheSize(objectSettings.CacheSize),
		object.WithBloomCapacity(objectSettings.BloomCapacity),
	); err != nil {
		return err
	}

	d.states = utxo.NewStateStore(d.loggerFactory("utxo"), d.blobStore,
		utxo.WithStateCacheSize(d.settings.BlockValidation.StateCacheSize),
		utxo.WithStateCacheTTL(objectSettings.CacheTTL),
	)
	d.validator = validator.New(d.loggerFactory("validator"), d.objects)
	d.mempool = mempool.New(d.loggerFactory("mempool"), d.settings, d.validator)

	if d.chain, err = blockvalidation.New(d.loggerFactory("blockvalidation"), d.settings, d.objects, d.validator,
		d.states, d.blobStore, d.chainOptions...); err != nil {
		return err
	}

	d.chain.AddTipListener(d.mempool.OnNewTip)
	d.chain.AddBlockListener(d.announceBlock)

	if receiver, ok := d.network.(interface{ SetHandler(p2p.ObjectHandler) }); ok {
		receiver.SetHandler(d.HandleObject)
	}

	if err = d.chain.Init(ctx); err != nil {
		return err
	}

	tip, height := d.chain.Tip()
	d.logger.Infof("[Daemon] started on %s, chain tip %s at height %d", d.settings.ChainCfgParams.Name, tip.ID(), height)

	return nil
}

// HandleObject processes one object received from a peer, or imported when from is
// p2p.NoPeer. Transactions are validated, stored, announced and offered to the mempool; an
// invalid transaction a block validation is waiting for is handed to it unstored so the block
// is rejected with the same error. A block an ancestor walk is waiting for is handed to that
// walk; any other block is validated by the chain manager, which stores and announces it.
func (d *Daemon) HandleObject(ctx context.Context, raw []byte, from p2p.PeerID) (err error) {
	ctx, _, deferFn := tracing.StartTracing(ctx, "HandleObject",
		tracing.WithParentStat(d.stats),
		tracing.WithHistogram(prometheusHandleObject),
		tracing.WithTag("peer", string(from)),
	)

	defer func() {
		if err != nil {
			prometheusObjectsHandled.WithLabelValues(errors.Name(err)).Inc()
		} else {
			prometheusObjectsHandled.WithLabelValues("OK").Inc()
		}

		deferFn(err)
	}()

	obj, err := model.NewObjectFromBytes(raw)
	if err != nil {
		return err
	}

	switch o := obj.(type) {
	case *model.Transaction:
		return d.handleTransaction(ctx, o, from)
	case *model.Block:
		return d.handleBlock(ctx, o, from)
	default:
		return errors.NewInvalidFormatError("[HandleObject][%s] unexpected object type %s", obj.ID(), obj.Type())
	}
}

func (d *Daemon) handleTransaction(ctx context.Context, tx *model.Transaction, from p2p.PeerID) error {
	txID := tx.ID()

	known, err := d.objects.Has(ctx, txID)
	if err != nil {
		return err
	}

	if known {
		return nil
	}

	fee, err := d.validator.Validate(ctx, tx, -1, nil, validator.WithPeer(from))
	if err != nil {
		if d.objects.Deliver(tx) {
			d.logger.Debugf("[HandleObject][%s] invalid transaction handed to the block waiting for it", txID)
		}

		return err
	}

	if err = d.store(ctx, tx, from); err != nil {
		return err
	}

	if err = d.mempool.AddValidated(tx, fee); err != nil {
		d.logger.Infof("[HandleObject][%s] not added to mempool: %v", txID, err)
	}

	return nil
}

func (d *Daemon) handleBlock(ctx context.Context, block *model.Block, from p2p.PeerID) error {
	known, err := d.states.Has(ctx, block.ID())
	if err != nil {
		return err
	}

	if known {
		return nil
	}

	if d.objects.Deliver(block) {
		d.logger.Debugf("[HandleObject][%s] block from %q handed to the ancestor walk waiting for it", block.ID(), from)
		return nil
	}

	return d.chain.ValidateBlock(ctx, block, from)
}

// announceBlock is called by the chain manager for every block it stores.
func (d *Daemon) announceBlock(ctx context.Context, block *model.Block, from p2p.PeerID) {
	if err := d.network.Broadcast(ctx, block.ID(), from); err != nil {
		d.logger.Warnf("[HandleObject][%s] failed to announce: %v", block.ID(), err)
	}
}

func (d *Daemon) store(ctx context.Context, obj model.Object, from p2p.PeerID) error {
	objectID, err := d.objects.Put(ctx, obj)
	if err != nil {
		return err
	}

	if err = d.network.Broadcast(ctx, objectID, from); err != nil {
		d.logger.Warnf("[HandleObject][%s] failed to announce: %v", objectID, err)
	}

	return nil
}

// GetObject answers getobject. Absent objects are reported as UNKNOWN_OBJECT.
func (d *Daemon) GetObject(ctx context.Context, objectID model.ObjectID) (model.Object, error) {
	obj, err := d.objects.Get(ctx, objectID)
	if err != nil {
		if errors.Is(err, errors.ErrNotFound) {
			return nil, errors.NewUnknownObjectError("[GetObject][%s] object not known", objectID).WithObjectID(objectID)
		}

		return nil, err
	}

	return obj, nil
}

// ChainTip returns the current tip and its height.
func (d *Daemon) ChainTip() (*model.Block, uint64) {
	return d.chain.Tip()
}

// MempoolTxIDs returns the pending transaction ids in admission order.
func (d *Daemon) MempoolTxIDs() []model.ObjectID {
	return d.mempool.TxIDs()
}

// HealthHandler reports the object store health and, for readiness, whether the chain
// manager is running.
func (d *Daemon) HealthHandler(ctx context.Context, checkLiveness bool) (int, string, error) {
	if d.blobStore == nil || d.chain == nil {
		return http.StatusServiceUnavailable, "not started", nil
	}

	status, details, err := d.blobStore.Health(ctx, checkLiveness)
	if err != nil || status != http.StatusOK {
		return http.StatusServiceUnavailable, details, err
	}

	if checkLiveness {
		return http.StatusOK, details, nil
	}

	state := d.chain.CurrentState()
	if state == blockvalidation.FSMStateIdle {
		return http.StatusServiceUnavailable, fmt.Sprintf("%s, chain manager %s", details, state), nil
	}

	tip, height := d.chain.Tip()

	return http.StatusOK, fmt.Sprintf("%s, chain manager %s, tip %s at height %d", details, state, tip.ID(), height), nil
}

// ServeHealth starts the health check server, which also serves the prometheus metrics.
func (d *Daemon) ServeHealth() {
	address := d.settings.HealthCheckHTTPListenAddress
	if address == "" {
		return
	}

	healthFunc := func(liveness bool) func(http.ResponseWriter, *http.Request) {
		return func(w http.ResponseWriter, r *http.Request) {
			status, details, err := d.HealthHandler(r.Context(), liveness)
			if err != nil {
				details = strings.TrimSpace(details + " " + err.Error())
			}

			w.WriteHeader(status)
			_, _ = w.Write([]byte(details))
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthFunc(false))
	mux.HandleFunc("/health/readiness", healthFunc(false))
	mux.HandleFunc("/health/liveness", healthFunc(true))

	if endpoint := d.settings.PrometheusEndpoint; endpoint != "" {
		mux.Handle(endpoint, promhttp.Handler())
	}

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 20 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	d.serverMu.Lock()
	d.server = server
	d.serverMu.Unlock()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.logger.Errorf("[Daemon] health check server failed: %v", err)
		}
	}()

	d.logger.Infof("[Daemon] health check endpoint listening on http://%s/health", address)
}

func (d *Daemon) Stop(ctx context.Context) error {
	d.serverMu.Lock()
	server := d.server
	d.server = nil
	d.serverMu.Unlock()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			d.logger.Warnf("[Daemon] error shutting down health check server: %v", err)
		}
	}

	if d.chain != nil {
		if err := d.chain.Stop(ctx); err != nil {
			d.logger.Warnf("[Daemon] error stopping chain manager: %v", err)
		}
	}

	if d.objects != nil {
		d.objects.Close()
	}

	if d.ownsStore && d.blobStore != nil {
		return d.blobStore.Close(ctx)
	}

	return nil
}
