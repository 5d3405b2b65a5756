package server

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/merkledrop/merkledrop-go/pkg/claims"
	"github.com/merkledrop/merkledrop-go/pkg/prover"
	"github.com/merkledrop/merkledrop-go/pkg/types"
)

/*
Server exposes the airdrop core over HTTP.

Claim Flow:
  GET /manifest:
    - Returns the airdrop manifest (root, shardNybbles, total)
    - Clients use shardNybbles to locate their shard if self-proving

  GET /proof?address=0x...:
    - Loads the address's shard (lazily, cached) and returns the entry
      balance plus the full proof: shard siblings then root-tree siblings
    - 404 if the address has no allocation, 503 if the shard file is
      missing or corrupt (retryable once the file is restored)

  POST /claim:
    - Request: { address, balance, proof }
    - Folds the proof with the sorted-pair rule; on root match, transfers
      the balance to the proven address and sets the claim bit exactly once
    - 400 invalid proof, 409 already claimed, 503 insufficient reserve
    - Rate limited; 429 when the limiter rejects

  GET /health:
    - Verifies the claim store is operational
*/

// Config holds the HTTP server settings.
type Config struct {
	Port int

	// ClaimRate / ClaimBurst bound the claim endpoint request rate
	ClaimRate  float64
	ClaimBurst int
}

// Server handles HTTP requests for proofs and claims.
type Server struct {
	prover      *prover.Prover
	distributor *claims.Distributor
	manifest    *types.Manifest
	limiter     *rate.Limiter
	httpServer  *http.Server
	logger      *zap.Logger
}

// NewServer creates a new server instance.
func NewServer(cfg *Config, p *prover.Prover, d *claims.Distributor, logger *zap.Logger) *Server {
	s := &Server{
		prover:      p,
		distributor: d,
		manifest:    p.Manifest(),
		limiter:     rate.NewLimiter(rate.Limit(cfg.ClaimRate), cfg.ClaimBurst),
		logger:      logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/manifest", s.handleManifest)
	mux.HandleFunc("/proof", s.handleProof)
	mux.HandleFunc("/claim", s.handleClaim)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "addr", s.httpServer.Addr, "root", s.manifest.Root.Hex())
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop stops the HTTP server.
func (s *Server) Stop() error {
	return s.httpServer.Close()
}

// GetHandler returns the HTTP handler (for testing).
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}
