package user

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovaphlow/pitchfork/service-social/internal/apperror"
	"github.com/ovaphlow/pitchfork/service-social/internal/auth"
	"github.com/ovaphlow/pitchfork/service-social/internal/token"
	"github.com/ovaphlow/pitchfork/service-social/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-social/pkg/utilities"
)

// MaxPasswordBytes is the longest secret bcrypt accepts, counted in bytes.
const MaxPasswordBytes = 72

// BcryptHasher implements entity.PasswordHasher.
type BcryptHasher struct{ Cost int }

func (b BcryptHasher) Hash(pw string) (string, error) {
	cost := b.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pw), cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (b BcryptHasher) Verify(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Store is the persistence the service needs; *repo.UserRepo satisfies it.
type Store interface {
	Create(ctx context.Context, u *entity.User) error
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	GetActiveByID(ctx context.Context, id int64) (*entity.User, error)
	UpdateProfile(ctx context.Context, id int64, firstName, lastName *string) (*entity.User, error)
}

// MetaDataReader is satisfied by *repo.MetaDataRepo.
type MetaDataReader interface {
	Get(ctx context.Context, userID int64) (*entity.MetaData, error)
}

// Enricher schedules background metadata lookups for new accounts.
type Enricher interface {
	Schedule(userID int64, ip string) bool
}

// UserService orchestrates signup, login and profile flows.
type UserService struct {
	store  Store
	meta   MetaDataReader
	issuer *token.Issuer
	enrich Enricher
	hasher entity.PasswordHasher
	logger *zap.SugaredLogger
}

func NewUserService(store Store, meta MetaDataReader, issuer *token.Issuer, enrich Enricher, hasher entity.PasswordHasher, logger *zap.SugaredLogger) *UserService {
	if hasher == nil {
		hasher = BcryptHasher{Cost: 12}
	}
	return &UserService{store: store, meta: meta, issuer: issuer, enrich: enrich, hasher: hasher, logger: logger}
}

// Signup creates an account, schedules its enrichment and returns a fresh
// token pair for it.
func (s *UserService) Signup(ctx context.Context, email, password, clientIP string) (*entity.User, token.Pair, error) {
	if len(password) > MaxPasswordBytes {
		return nil, token.Pair{}, apperror.Field("password", fmt.Sprintf("Ensure this field has no more than %d bytes.", MaxPasswordBytes))
	}
	u := &entity.User{ID: utilities.NextID(), Email: email}
	if err := u.SetPassword(s.hasher, password); err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, token.Pair{}, apperror.Field("password", fmt.Sprintf("Ensure this field has no more than %d bytes.", MaxPasswordBytes))
		}
		return nil, token.Pair{}, apperror.Internal(fmt.Errorf("hash password: %w", err))
	}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, entity.ErrDuplicateEmail) {
			return nil, token.Pair{}, apperror.Field("email", "Email Address already used")
		}
		return nil, token.Pair{}, apperror.Internal(err)
	}
	pair, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, token.Pair{}, apperror.Internal(err)
	}
	if s.enrich != nil && !s.enrich.Schedule(u.ID, clientIP) {
		s.logger.Warnw("enrichment queue full, skipping", "user_id", u.ID)
	}
	return u, pair, nil
}

// Login checks credentials. An unknown email is NotFound, a wrong password
// is a field error on password.
func (s *UserService) Login(ctx context.Context, email, password string) (*entity.User, token.Pair, error) {
	u, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, token.Pair{}, apperror.NotFound("No User matches the given query.")
		}
		return nil, token.Pair{}, apperror.Internal(err)
	}
	if !u.CheckPassword(s.hasher, password) {
		return nil, token.Pair{}, apperror.Field("password", "Incorrect password.")
	}
	pair, err := s.issuer.Issue(u.ID)
	if err != nil {
		return nil, token.Pair{}, apperror.Internal(err)
	}
	return u, pair, nil
}

// PrivateView renders u with whatever enrichment has landed so far.
func (s *UserService) PrivateView(ctx context.Context, u *entity.User) entity.PrivateView {
	meta, err := s.meta.Get(ctx, u.ID)
	if err != nil {
		// metadata is optional; render without it
		s.logger.Warnw("load user metadata", "user_id", u.ID, "err", err)
		meta = nil
	}
	return u.Private(meta)
}

// AuthorizeProfileWrite loads user id and checks identity may modify it.
func (s *UserService) AuthorizeProfileWrite(ctx context.Context, identity *entity.User, id int64) (*entity.User, error) {
	if identity == nil {
		return nil, apperror.Unauthenticated()
	}
	target, err := s.store.GetActiveByID(ctx, id)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, apperror.NotFound("")
		}
		return nil, apperror.Internal(err)
	}
	if err := auth.Authorize(identity, target, auth.Write).Err(); err != nil {
		return nil, err
	}
	return target, nil
}

// UpdateProfile changes the name fields of target; nil keeps the current value.
func (s *UserService) UpdateProfile(ctx context.Context, target *entity.User, firstName, lastName *string) (*entity.User, error) {
	if firstName == nil {
		firstName = target.FirstName
	}
	if lastName == nil {
		lastName = target.LastName
	}
	updated, err := s.store.UpdateProfile(ctx, target.ID, firstName, lastName)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			return nil, apperror.NotFound("")
		}
		return nil, apperror.Internal(err)
	}
	return updated, nil
}
