package server

import (
	"errors"
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	apihttp "transport-ledger/internal/api/http"
	"transport-ledger/internal/auth"
	cashbookapp "transport-ledger/internal/cashbook/application"
	"transport-ledger/internal/changefeed"
	"transport-ledger/internal/config"
	"transport-ledger/internal/documents"
	ledgerstores "transport-ledger/internal/ledger/adapters/stores"
	ledgerapp "transport-ledger/internal/ledger/application"
	ledgerhttp "transport-ledger/internal/ledger/interfaces/http"
	logisticsapp "transport-ledger/internal/logistics/application"
	"transport-ledger/internal/logistics/infrastructure/filestore"
	"transport-ledger/internal/records"
	"transport-ledger/internal/storage"
)

// Server is the wired HTTP surface plus the services behind it.
type Server struct {
	Handler   http.Handler
	Broker    *changefeed.SSEBroker
	Logistics *logisticsapp.Service
	Cashbook  *cashbookapp.Service
	Entries   *ledgerapp.EntryService
	Snapshots *ledgerapp.SnapshotService

	kafka *changefeed.KafkaNotifier
}

// New wires services and routes over backend.
func New(cfg config.Config, backend storage.Backend, logger *log.Logger) (*Server, error) {
	if logger == nil {
		logger = log.Default()
	}
	if backend.Cashbook == nil || backend.Ledger == nil || backend.Audit == nil {
		return nil, errors.New("server: incomplete backend")
	}
	s := &Server{Broker: changefeed.NewSSEBroker()}

	notifiers := []changefeed.Notifier{s.Broker}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier, err := changefeed.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		if err != nil {
			return nil, err
		}
		s.kafka = kafkaNotifier
		notifiers = append(notifiers, kafkaNotifier)
	}
	notifier := changefeed.NewMultiNotifier(notifiers...)
	locks := records.NewScopeLocks()

	podStore, err := filestore.New(cfg.POD.StorageRoot, cfg.POD.MaxBytes)
	if err != nil {
		return nil, err
	}
	if s.Logistics, err = logisticsapp.NewService(backend.Logistics,
		logisticsapp.WithNotifier(notifier),
		logisticsapp.WithLogger(logger),
		logisticsapp.WithLocks(locks),
		logisticsapp.WithContentStore(podStore),
	); err != nil {
		return nil, err
	}
	if s.Cashbook, err = cashbookapp.NewService(backend.Cashbook,
		cashbookapp.WithNotifier(notifier),
		cashbookapp.WithLogger(logger),
		cashbookapp.WithLocks(locks),
		cashbookapp.WithRecomputeOnBackdate(cfg.RecomputeOnBackdate),
	); err != nil {
		return nil, err
	}
	if s.Entries, err = ledgerapp.NewEntryService(backend.Ledger, locks, notifier, logger); err != nil {
		return nil, err
	}

	source, err := ledgerstores.NewSource(ledgerstores.Stores{
		Bills:            backend.Logistics.Bills,
		Memos:            backend.Logistics.Memos,
		LoadingSlips:     backend.Logistics.LoadingSlips,
		Banking:          backend.Logistics.Banking,
		FuelWallets:      backend.Logistics.FuelWallets,
		FuelTransactions: backend.Logistics.FuelTransactions,
		Parties:          backend.Logistics.Parties,
		Suppliers:        backend.Logistics.Suppliers,
		Vehicles:         backend.Logistics.Vehicles,
		Commissions:      backend.Logistics.Commissions,
		Cashbook:         s.Cashbook,
		Entries:          s.Entries,
	})
	if err != nil {
		return nil, err
	}
	if s.Snapshots, err = ledgerapp.NewSnapshotService(source, nil, logger); err != nil {
		return nil, err
	}

	header := documents.Header{Company: cfg.Company.Name, Address: cfg.Company.Address, Currency: cfg.Company.Currency}
	apiHandler, err := apihttp.NewHandler(s.Logistics, s.Cashbook, s.Entries, backend.Audit, header, logger)
	if err != nil {
		return nil, err
	}
	ledgerHandler, err := ledgerhttp.NewHandler(s.Snapshots, backend.Audit, header, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	for _, name := range apiHandler.Collections() {
		mux.Handle("/api/v1/"+name, apiHandler)
		mux.Handle("/api/v1/"+name+"/", apiHandler)
	}
	mux.Handle("/api/v1/documents/", apiHandler)
	mux.Handle("/api/v1/ledgers/", ledgerHandler)
	mux.Handle("/api/v1/changes/stream", changefeed.NewStreamHandler(s.Broker))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, nil)
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	if cfg.JWTSecret == "" {
		logger.Printf("auth disabled: AUTH_JWT_SECRET not set, every request runs as admin")
	}
	s.Handler = apihttp.LoggingMiddleware(authMiddleware.Wrap(mux), logger)
	return s, nil
}

// Close flushes the Kafka publisher when one is configured.
func (s *Server) Close() error {
	if s == nil || s.kafka == nil {
		return nil
	}
	return s.kafka.Close()
}
