package service

import (
	"errors"

	"livewire/backend/internal/models"
	"livewire/backend/pkg/jwt"

	"gorm.io/gorm"
)

var (
	ErrUserAlreadyExists  = errors.New("user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUserNotFound       = errors.New("user not found")
	ErrPasswordMismatch   = errors.New("passwords do not match")
)

// UserService handles account registration, login and lookup
type UserService struct {
	db  *gorm.DB
	jwt *jwt.Service
}

// NewUserService creates a new user service
func NewUserService(db *gorm.DB, jwtService *jwt.Service) *UserService {
	return &UserService{db: db, jwt: jwtService}
}

// Register creates a new user account
func (s *UserService) Register(req *models.RegisterRequest) (*models.User, error) {
	if req.Password != req.PasswordConfirm {
		return nil, ErrPasswordMismatch
	}

	var existing models.User
	result := s.db.Where("email = ?", req.Email).First(&existing)
	if result.RowsAffected > 0 {
		return nil, ErrUserAlreadyExists
	}

	user := models.User{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
	}

	if err := s.db.Create(&user).Error; err != nil {
		return nil, err
	}

	return &user, nil
}

// Login authenticates a user and returns a JWT token pair
func (s *UserService) Login(req *models.LoginRequest) (*models.User, *jwt.TokenPair, error) {
	var user models.User
	result := s.db.Where("email = ?", req.Email).First(&user)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, result.Error
	}

	if !models.CheckPasswordHash(req.Password, user.Password) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.jwt.GeneratePair(user.ID, user.Email)
	if err != nil {
		return nil, nil, err
	}

	return &user, pair, nil
}

// Refresh exchanges a valid refresh token for a new token pair
func (s *UserService) Refresh(refreshToken string) (*jwt.TokenPair, error) {
	claims, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	// The account may have been removed since the token was issued
	user, err := s.GetUserByID(claims.UserID)
	if err != nil {
		return nil, err
	}

	return s.jwt.GeneratePair(user.ID, user.Email)
}

// GetUserByID retrieves a user by ID
func (s *UserService) GetUserByID(id uint) (*models.User, error) {
	var user models.User
	result := s.db.First(&user, id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, result.Error
	}
	return &user, nil
}

// Search lists users other than the requester, optionally filtered by a
// case-insensitive substring match on email or display name.
func (s *UserService) Search(requesterID uint, search string) ([]models.User, error) {
	var users []models.User
	query := s.db.Where("id <> ?", requesterID)
	if search != "" {
		pattern := "%" + search + "%"
		query = query.Where("email ILIKE ? OR display_name ILIKE ?", pattern, pattern)
	}
	err := query.Order("email").Find(&users).Error
	return users, err
}
