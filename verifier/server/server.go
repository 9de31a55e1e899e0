// Package server exposes presentation verification to relying parties over
// HTTP: a client fetches a challenge for its session, has the holder sign it
// into a presentation and posts the presentation back.
package server

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/pilacorp/go-did-credential/credential/common/errs"
	"github.com/pilacorp/go-did-credential/credential/vp"
	"github.com/pilacorp/go-did-credential/did"
	"github.com/pilacorp/go-did-credential/did/resolver"
	"github.com/pilacorp/go-did-credential/verifier/challenge"
)

const shutdownTimeout = 5 * time.Second

// MaxBodySize bounds the request body of a verification call.
const MaxBodySize = 1 << 20

// Response codes
const (
	CodeOK = iota
	CodeBadRequest
	CodeChallengeFailed
	CodeNotFound
	CodeRejected
	CodeInternal
)

type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// VerifyResult describes an accepted presentation.
type VerifyResult struct {
	Holder      string   `json:"holder"`
	Credentials []string `json:"credentials"`
}

type Server struct {
	resolver did.Resolver
	pool     *challenge.Pool
	method   string
	engine   *gin.Engine
}

type Option func(*Server)

// WithMethod restricts holders to DIDs of one method. Empty accepts any.
func WithMethod(method string) Option {
	return func(s *Server) { s.method = method }
}

func New(r did.Resolver, pool *challenge.Pool, opts ...Option) *Server {
	s := &Server{
		resolver: r,
		pool:     pool,
		engine:   gin.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine.Use(gin.Recovery())
	s.engine.GET("/challenge/:session", s.handleChallenge)
	s.engine.POST("/verify/:session", s.handleVerify)
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("verifier listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleChallenge(c *gin.Context) {
	session := c.Param("session")
	realm := c.Query("realm")

	ch, err := s.pool.Issue(session, realm)
	if err != nil {
		c.JSON(http.StatusBadRequest, Response{Code: CodeBadRequest, Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, Response{Code: CodeOK, Data: ch})
}

// handleVerify accepts the presentation as full-form JSON or as a string
// packed by vp.Encode.
func (s *Server) handleVerify(c *gin.Context) {
	session := c.Param("session")
	logger := log.WithField("session", session)

	var holder did.DID
	if q := c.Query("did"); q != "" {
		var err error
		if holder, err = did.Parse(q); err != nil {
			c.JSON(http.StatusBadRequest, Response{Code: CodeBadRequest, Message: err.Error()})
			return
		}
		if !s.acceptsMethod(holder) {
			c.JSON(http.StatusBadRequest, Response{Code: CodeBadRequest, Message: "unsupported DID method " + holder.Method()})
			return
		}
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodySize)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, Response{Code: CodeBadRequest, Message: err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, Response{Code: CodeBadRequest, Message: err.Error()})
		return
	}

	var p *vp.Presentation
	if trimmed := bytes.TrimSpace(body); len(trimmed) > 0 && trimmed[0] != '{' {
		p, err = vp.Decode(string(trimmed), holder)
	} else {
		p, err = vp.FromJSON(body, holder)
	}
	if err != nil {
		s.fail(c, logger, err)
		return
	}
	if !s.acceptsMethod(p.Signer()) {
		s.fail(c, logger, errs.Errorf(errs.Unauthorized, "server.verify", "presentation signer %s uses unsupported method", p.Signer()))
		return
	}
	if !holder.IsZero() && p.Signer() != holder {
		s.fail(c, logger, errs.Errorf(errs.Unauthorized, "server.verify", "presentation signed by %s, expected %s", p.Signer(), holder))
		return
	}

	if err := s.pool.Check(session, p.Nonce(), p.Realm()); err != nil {
		logger.WithError(err).Info("challenge rejected")
		c.JSON(http.StatusForbidden, Response{Code: CodeChallengeFailed, Message: err.Error()})
		return
	}

	if err := resolver.Prefetch(c.Request.Context(), s.resolver, involvedDIDs(p), 0); err != nil {
		logger.WithError(err).Debug("prefetch incomplete")
	}

	if err := p.Verify(s.resolver); err != nil {
		s.fail(c, logger, err)
		return
	}

	result := VerifyResult{Holder: p.Signer().String()}
	for _, cred := range p.Credentials() {
		result.Credentials = append(result.Credentials, cred.ID().String())
	}
	logger.WithField("holder", result.Holder).Info("presentation accepted")
	c.JSON(http.StatusOK, Response{Code: CodeOK, Data: result})
}

func (s *Server) acceptsMethod(id did.DID) bool {
	return s.method == "" || id.Method() == s.method
}

func (s *Server) fail(c *gin.Context, logger *log.Entry, err error) {
	status, code := statusOf(err)
	logger.WithFields(log.Fields{
		"kind":   errs.KindOf(err).String(),
		"status": status,
	}).WithError(err).Info("presentation rejected")
	c.JSON(status, Response{Code: code, Message: err.Error()})
}

func statusOf(err error) (int, int) {
	switch errs.KindOf(err) {
	case errs.Malformed, errs.InvalidArgument:
		return http.StatusBadRequest, CodeBadRequest
	case errs.NotFound:
		return http.StatusNotFound, CodeNotFound
	case errs.SubjectMismatch, errs.Expired, errs.CryptoError, errs.Unauthorized:
		return http.StatusUnprocessableEntity, CodeRejected
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// involvedDIDs lists the signer and every credential issuer.
func involvedDIDs(p *vp.Presentation) []did.DID {
	ids := []did.DID{p.Signer()}
	for _, c := range p.Credentials() {
		ids = append(ids, c.Issuer())
	}
	return ids
}
