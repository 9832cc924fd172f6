// Package auth регистрация участников, вход по паролю и по одноразовому коду из SMS.
package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/magabrotheeeer/union-portal/internal/lib/jwt"
	"github.com/magabrotheeeer/union-portal/internal/lib/locale"
	"github.com/magabrotheeeer/union-portal/internal/lib/password"
	"github.com/magabrotheeeer/union-portal/internal/lib/sl"
	"github.com/magabrotheeeer/union-portal/internal/lib/unionid"
	"github.com/magabrotheeeer/union-portal/internal/models"
	"github.com/magabrotheeeer/union-portal/internal/storage"
)

var (
	// ErrUserExists email или телефон уже зарегистрированы.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials неверный email или пароль.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrOTPThrottled код уже отправлен, повторить можно позже.
	ErrOTPThrottled = errors.New("otp recently sent")
	// ErrOTPInvalid код неверен или истек.
	ErrOTPInvalid = errors.New("invalid or expired code")
	// ErrOTPAttempts исчерпаны попытки ввода кода.
	ErrOTPAttempts = errors.New("too many attempts")
)

const (
	otpTTL         = 5 * time.Minute
	otpResendDelay = 60 * time.Second
	otpMaxAttempts = 5
)

// Repository хранилище участников.
type Repository interface {
	CreateUser(ctx context.Context, u *models.User) (string, error)
	UnionIDExists(ctx context.Context, unionID string) (bool, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*models.User, error)
}

// Cache хранилище одноразовых кодов и счетчиков.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) (bool, error)
	Incr(ctx context.Context, key string, expiration time.Duration) (int64, error)
	Invalidate(ctx context.Context, keys ...string) error
}

// Publisher очередь уведомлений.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Recorder счетчик регистраций.
type Recorder interface {
	Registered()
}

// Service отвечает за регистрацию, вход и проверку JWT.
type Service struct {
	repo      Repository
	cache     Cache
	jwtMaker  jwt.Maker
	publisher Publisher
	metrics   Recorder
	log       *slog.Logger

	newUnionID unionid.Generator
	newCode    func() (string, error)
}

// New создает сервис аутентификации.
func New(repo Repository, cache Cache, jwtMaker jwt.Maker, publisher Publisher, metrics Recorder, log *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		cache:      cache,
		jwtMaker:   jwtMaker,
		publisher:  publisher,
		metrics:    metrics,
		log:        log,
		newUnionID: unionid.Random,
		newCode:    randomCode,
	}
}

// RegisterRequest данные формы регистрации.
type RegisterRequest struct {
	Name     string         `json:"name" validate:"required,min=2,max=100"`
	Email    string         `json:"email" validate:"required,email"`
	Phone    string         `json:"phone" validate:"required,numeric,len=10"`
	Password string         `json:"password" validate:"required,min=8,max=72"`
	Address  models.Address `json:"address"`
	Locale   string         `json:"locale" validate:"omitempty,oneof=en hi te"`
}

// Session выданный JWT.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register создает участника со статусом not_subscribed и выдает ему номер.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*models.User, error) {
	const op = "auth.Register"
	u, err := s.newUser(req, models.RoleMember)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.create(ctx, u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.metrics.Registered()
	s.log.Info("member registered", sl.Op(op), slog.String("user_uid", u.UID), slog.String("union_id", u.UnionID))
	return u, nil
}

func (s *Service) newUser(req RegisterRequest, role string) (*models.User, error) {
	hash, err := password.GetHash(req.Password)
	if err != nil {
		return nil, err
	}
	return &models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:        req.Phone,
		Address:      req.Address,
		PasswordHash: hash,
		Role:         role,
		Locale:       locale.Normalize(req.Locale),
		Subscription: models.Subscription{Status: models.StatusNotSubscribed},
	}, nil
}

// create сохраняет участника, подбирая свободный номер. Конфликт уникального
// индекса по номеру засчитывается как неудачная попытка.
func (s *Service) create(ctx context.Context, u *models.User) error {
	insert := func(ctx context.Context, id string) error {
		u.UnionID = id
		_, err := s.repo.CreateUser(ctx, u)
		if errors.Is(err, storage.ErrUnionIDTaken) {
			return unionid.ErrTaken
		}
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrUserExists
		}
		return err
	}
	_, err := unionid.AssignWith(ctx, s.newUnionID, s.repo.UnionIDExists, insert)
	return err
}

// Login проверяет пароль и выдает JWT.
func (s *Service) Login(ctx context.Context, email, rawPassword string) (*Session, error) {
	const op = "auth.Login"
	u, err := s.repo.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := password.CompareHash(u.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.session(u)
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, err := s.jwtMaker.GenerateToken(u.UID, u.Role, u.UnionID)
	if err != nil {
		return nil, err
	}
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: u}, nil
}

func otpKeys(phone string) (code, throttle, attempts string) {
	return "otp:code:" + phone, "otp:throttle:" + phone, "otp:attempts:" + phone
}

// RequestOTP отправляет код входа на телефон. Для незарегистрированного
// номера ничего не отправляется, но ответ тот же.
func (s *Service) RequestOTP(ctx context.Context, phone string) error {
	const op = "auth.RequestOTP"
	log := s.log.With(sl.Op(op), sl.Masked("phone", phone))
	codeKey, throttleKey, attemptsKey := otpKeys(phone)

	ok, err := s.cache.SetNX(ctx, throttleKey, 1, otpResendDelay)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrOTPThrottled)
	}

	u, err := s.repo.GetUserByPhone(ctx, phone)
	if errors.Is(err, storage.ErrNotFound) {
		log.Info("otp requested for unknown phone")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	code, err := s.newCode()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	hash, err := password.GetHash(code)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, codeKey, hash, otpTTL); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Invalidate(ctx, attemptsKey); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	msg := models.NotificationFromUser(models.NotifyOTP, u)
	msg.Code = code
	if err := s.publisher.Publish(ctx, models.NotifyOTP, msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	log.Info("otp issued", slog.String("user_uid", u.UID))
	return nil
}

// VerifyOTP проверяет код и выдает JWT. После пяти неверных попыток код сгорает.
func (s *Service) VerifyOTP(ctx context.Context, phone, code string) (*Session, error) {
	const op = "auth.VerifyOTP"
	codeKey, _, attemptsKey := otpKeys(phone)

	attempts, err := s.cache.Incr(ctx, attemptsKey, otpTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if attempts > otpMaxAttempts {
		if err := s.cache.Invalidate(ctx, codeKey); err != nil {
			s.log.Warn("failed to drop otp", sl.Op(op), sl.Err(err))
		}
		return nil, fmt.Errorf("%s: %w", op, ErrOTPAttempts)
	}

	var hash string
	found, err := s.cache.Get(ctx, codeKey, &hash)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrOTPInvalid)
	}
	if err := password.CompareHash(hash, code); err != nil {
		return nil, fmt.Errorf("%s: %w", op, ErrOTPInvalid)
	}
	if err := s.cache.Invalidate(ctx, codeKey, attemptsKey); err != nil {
		s.log.Warn("failed to drop otp", sl.Op(op), sl.Err(err))
	}

	u, err := s.repo.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s.session(u)
}

// ValidateToken разбирает JWT.
func (s *Service) ValidateToken(_ context.Context, token string) (*jwt.CustomClaims, error) {
	const op = "auth.ValidateToken"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return claims, nil
}

// Me возвращает участника по UID из токена.
func (s *Service) Me(ctx context.Context, userUID string) (*models.User, error) {
	return s.repo.GetUser(ctx, userUID)
}

// EnsureAdmin создает учетную запись администратора, если ее еще нет.
// Пустой email означает, что администратор не настроен.
func (s *Service) EnsureAdmin(ctx context.Context, email, phone, rawPassword string) (*models.User, error) {
	const op = "auth.EnsureAdmin"
	if email == "" {
		return nil, nil
	}
	existing, err := s.repo.GetUserByEmail(ctx, strings.ToLower(email))
	if err == nil {
		if !existing.IsAdmin() {
			s.log.Warn("configured admin email belongs to a member", sl.Op(op), sl.Masked("email", email))
		}
		return existing, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if rawPassword == "" {
		return nil, fmt.Errorf("%s: admin password is not set", op)
	}

	u, err := s.newUser(RegisterRequest{Name: "Administrator", Email: email, Phone: phone, Password: rawPassword}, models.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.create(ctx, u); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("admin account created", sl.Op(op), slog.String("user_uid", u.UID))
	return u, nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
