package application

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"admission-gateway/internal/clock"
	"admission-gateway/otp/domain"

	"github.com/google/uuid"
)

const (
	DefaultTTL          = 10 * time.Minute
	DefaultMaxAttempts  = 5
	DefaultDigits       = 6
	DefaultStoreTimeout = 2 * time.Second
)

// Service é o dono do ciclo de vida dos desafios OTP.
//
// Campos zerados assumem os padrões (10min, 5 tentativas, 6 dígitos).
type Service struct {
	Repo   domain.Repository
	Hasher domain.Hasher
	Clock  clock.Clock

	TTL          time.Duration
	MaxAttempts  int
	Digits       int
	StoreTimeout time.Duration

	// Generate produz o código em claro. nil = dígitos via crypto/rand.
	Generate func(digits int) (string, error)
	NewID    func() string
	Logger   *slog.Logger
}

// Issue cria um desafio novo para (identity, purpose), apagando o anterior,
// e devolve o código em claro para entrega. Só o hash é persistido.
func (s *Service) Issue(ctx context.Context, identity string, purpose domain.Purpose) (string, error) {
	identity, purpose, err := normalize(identity, purpose)
	if err != nil {
		return "", err
	}

	code, err := s.generate()
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}

	now := s.now()
	c := domain.Challenge{
		ID:         s.newID(),
		Identity:   identity,
		Purpose:    purpose,
		SecretHash: s.Hasher.Hash(code),
		ExpiresAt:  now.Add(s.ttl()),
		CreatedAt:  now,
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	if err := s.Repo.Replace(ctx, c); err != nil {
		return "", err
	}

	s.logger().InfoContext(ctx, "otp issued",
		slog.String("purpose", string(purpose)),
		slog.String("challenge_id", c.ID),
	)
	return code, nil
}

func (s *Service) Verify(ctx context.Context, identity string, purpose domain.Purpose, code string) (domain.VerifyResult, error) {
	identity, purpose, err := normalize(identity, purpose)
	if err != nil {
		return domain.VerifyResult{}, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	c, err := s.Repo.Latest(ctx, identity, purpose)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.VerifyResult{Reason: domain.ReasonNotFound}, nil
	}
	if err != nil {
		return domain.VerifyResult{}, err
	}

	now := s.now()
	if c.Expired(now) {
		if err := s.Repo.Delete(ctx, c.ID); err != nil {
			return domain.VerifyResult{}, err
		}
		return domain.VerifyResult{Reason: domain.ReasonExpired}, nil
	}

	limit := s.maxAttempts()
	if c.Attempts >= limit {
		return s.exhausted(ctx, c)
	}

	// a tentativa é reservada antes da comparação: toda comparação de hash
	// já está contada, mesmo com verificações concorrentes
	attempts, err := s.Repo.ReserveAttempt(ctx, c.ID, limit)
	switch {
	case errors.Is(err, domain.ErrAttemptsExhausted):
		return s.exhausted(ctx, c)
	case errors.Is(err, domain.ErrNotFound):
		// apagado por um issue/consume concorrente
		return domain.VerifyResult{Reason: domain.ReasonNotFound}, nil
	case err != nil:
		return domain.VerifyResult{}, err
	}

	if !s.Hasher.Equal(code, c.SecretHash) {
		remaining := limit - attempts
		if remaining < 0 {
			remaining = 0
		}
		return domain.VerifyResult{Reason: domain.ReasonInvalid, AttemptsRemaining: &remaining}, nil
	}

	if err := s.Repo.MarkVerified(ctx, c.ID, now, limit); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VerifyResult{Reason: domain.ReasonNotFound}, nil
		}
		return domain.VerifyResult{}, err
	}
	return domain.VerifyResult{OK: true}, nil
}

// exhausted apaga o desafio que atingiu o limite de tentativas.
func (s *Service) exhausted(ctx context.Context, c domain.Challenge) (domain.VerifyResult, error) {
	if err := s.Repo.Delete(ctx, c.ID); err != nil {
		return domain.VerifyResult{}, err
	}
	s.logger().WarnContext(ctx, "otp attempts exhausted",
		slog.String("purpose", string(c.Purpose)),
		slog.String("challenge_id", c.ID),
	)
	return domain.VerifyResult{Reason: domain.ReasonTooManyAttempts}, nil
}

// HasVerified informa se o desafio mais recente está verificado e dentro do prazo.
// Não consome o desafio.
func (s *Service) HasVerified(ctx context.Context, identity string, purpose domain.Purpose) (bool, error) {
	identity, purpose, err := normalize(identity, purpose)
	if err != nil {
		return false, err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	c, err := s.Repo.Latest(ctx, identity, purpose)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return c.Verified && !c.Expired(s.now()), nil
}

// Consume apaga todos os desafios do par. Deve ser chamado uma vez, depois que
// a ação protegida (cadastro, login) foi concluída.
func (s *Service) Consume(ctx context.Context, identity string, purpose domain.Purpose) error {
	identity, purpose, err := normalize(identity, purpose)
	if err != nil {
		return err
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.Repo.DeleteAll(ctx, identity, purpose)
}

// Sweep remove desafios expirados e devolve quantos foram apagados.
func (s *Service) Sweep(ctx context.Context) (int64, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()
	return s.Repo.DeleteExpired(ctx, s.now())
}

// StartJanitor roda Sweep a cada `every` até o contexto ser cancelado.
func (s *Service) StartJanitor(ctx context.Context, every time.Duration) {
	if every <= 0 {
		return
	}

	t := time.NewTicker(every)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				n, err := s.Sweep(ctx)
				if err != nil {
					s.logger().WarnContext(ctx, "otp sweep failed", slog.Any("err", err))
					continue
				}
				if n > 0 {
					s.logger().DebugContext(ctx, "otp sweep", slog.Int64("deleted", n))
				}
			}
		}
	}()
}

func normalize(identity string, purpose domain.Purpose) (string, domain.Purpose, error) {
	id, err := domain.NormalizeIdentity(identity)
	if err != nil {
		return "", "", err
	}
	p, err := domain.ParsePurpose(string(purpose))
	if err != nil {
		return "", "", err
	}
	return id, p, nil
}

func (s *Service) generate() (string, error) {
	digits := s.Digits
	if digits <= 0 {
		digits = DefaultDigits
	}
	if s.Generate != nil {
		return s.Generate(digits)
	}
	return RandomDigits(digits)
}

// RandomDigits gera um código numérico uniforme via crypto/rand.
func RandomDigits(n int) (string, error) {
	out := make([]byte, n)
	ten := big.NewInt(10)
	for i := range out {
		d, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		out[i] = byte('0' + d.Int64())
	}
	return string(out), nil
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) now() time.Time {
	return clock.OrSystem(s.Clock).Now()
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return DefaultTTL
	}
	return s.TTL
}

func (s *Service) maxAttempts() int {
	if s.MaxAttempts <= 0 {
		return DefaultMaxAttempts
	}
	return s.MaxAttempts
}

func (s *Service) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := s.StoreTimeout
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

func (s *Service) logger() *slog.Logger {
	if s.Logger == nil {
		return slog.Default()
	}
	return s.Logger
}
