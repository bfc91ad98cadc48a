package service

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/mosaicnetworks/lamarck/src/chain"
	"github.com/mosaicnetworks/lamarck/src/evolution"
	"github.com/mosaicnetworks/lamarck/src/node"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Service exposes the node, the ledger, and the rule history over HTTP.
type Service struct {
	sync.Mutex

	bindAddress string
	node        *node.Node
	chain       *chain.Chain
	engine      *evolution.Engine
	limiter     *rate.Limiter
	logger      *logrus.Entry
}

// NewService ...
func NewService(bindAddress string,
	n *node.Node,
	c *chain.Chain,
	engine *evolution.Engine,
	logger *logrus.Entry) *Service {

	service := Service{
		bindAddress: bindAddress,
		node:        n,
		chain:       c,
		engine:      engine,
		limiter:     rate.NewLimiter(rate.Limit(100), 200),
		logger:      logger,
	}

	service.registerHandlers()

	return &service
}

// registerHandlers registers the API handlers with the DefaultServerMux of the
// http package. It is possible that another server in the same process is
// simultaneously using the DefaultServerMux. In which case, the handlers will
// be accessible from both servers. This is usefull when Lamarck is used
// in-memory and expecpted to use the same endpoint (address:port) as the
// application's API.
func (s *Service) registerHandlers() {
	s.logger.Debug("Registering Lamarck API handlers")
	http.HandleFunc("/stats", s.makeHandler(s.GetStats))
	http.HandleFunc("/block/", s.makeHandler(s.GetBlock))
	http.HandleFunc("/blocks", s.makeHandler(s.GetBlocks))
	http.HandleFunc("/validators", s.makeHandler(s.GetValidators))
	http.HandleFunc("/rule", s.makeHandler(s.GetRule))
	http.HandleFunc("/history", s.makeHandler(s.GetHistory))
	http.HandleFunc("/validated", s.makeHandler(s.GetValidated))
	http.HandleFunc("/pending", s.makeHandler(s.GetPending))
}

func (s *Service) makeHandler(fn func(http.ResponseWriter, *http.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		s.Lock()
		defer s.Unlock()

		// enable CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")

		fn(w, r)
	}
}

// Serve calls ListenAndServe. This is a blocking call. It is not necessary to
// call Serve when Lamarck is used in-memory and another server has already
// been started with the DefaultServerMux and the same address:port
// combination. Indeed, Lamarck API handlers have already been registered when
// the service was instantiated.
func (s *Service) Serve() {
	s.logger.WithField("bind_address", s.bindAddress).Debug("Serving Lamarck API")

	// Use the DefaultServerMux
	err := http.ListenAndServe(s.bindAddress, nil)
	if err != nil {
		s.logger.Error(err)
	}
}

// GetStats ...
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	stats := s.node.GetStats()

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(stats)
}

// GetBlock ...
func (s *Service) GetBlock(w http.ResponseWriter, r *http.Request) {
	param := r.URL.Path[len("/block/"):]

	blockIndex, err := strconv.Atoi(param)

	if err != nil {
		s.logger.WithError(err).Errorf("Parsing block_index parameter %s", param)

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	block, err := s.chain.GetBlockByIndex(blockIndex)

	if err != nil {
		s.logger.WithError(err).Errorf("Retrieving block %d", blockIndex)

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(block)
}

// GetBlocks returns a range of blocks in ledger order. The start and limit
// query parameters bound the range; without them the whole ledger is returned.
func (s *Service) GetBlocks(w http.ResponseWriter, r *http.Request) {
	blocks := s.chain.Blocks()

	start := 0
	if param := r.URL.Query().Get("start"); param != "" {
		i, err := strconv.Atoi(param)
		if err != nil {
			s.logger.WithError(err).Errorf("Parsing start parameter %s", param)

			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}
		start = i
	}

	limit := len(blocks)
	if param := r.URL.Query().Get("limit"); param != "" {
		i, err := strconv.Atoi(param)
		if err != nil {
			s.logger.WithError(err).Errorf("Parsing limit parameter %s", param)

			http.Error(w, err.Error(), http.StatusInternalServerError)

			return
		}
		limit = i
	}

	if start < 0 {
		start = 0
	}
	if start > len(blocks) {
		start = len(blocks)
	}

	end := start + limit
	if end > len(blocks) {
		end = len(blocks)
	}
	if end < start {
		end = start
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(blocks[start:end])
}

// GetValidators ...
func (s *Service) GetValidators(w http.ResponseWriter, r *http.Request) {
	validatorSet, err := s.chain.ValidatorSet()
	if err != nil {
		s.logger.WithError(err).Error("Retrieving validator set")

		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(validatorSet.Validators)
}

// GetRule returns the active consensus rule, or 404 when no evolution has
// occurred yet.
func (s *Service) GetRule(w http.ResponseWriter, r *http.Request) {
	rule := s.engine.CurrentRule()
	if rule == nil {
		http.Error(w, "no active rule", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(rule)
}

// GetHistory ...
func (s *Service) GetHistory(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.engine.History())
}

// GetValidated ...
func (s *Service) GetValidated(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.chain.ValidatedChanges())
}

// GetPending ...
func (s *Service) GetPending(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(s.chain.PendingChanges())
}
