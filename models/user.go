package models

import (
	"context"
	"errors"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/bodegas_backend/config"
	"bitbucket.org/mmdatafocus/bodegas_backend/utils"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID         int       `gorm:"primary_key" json:"id"`
	BusinessId string    `gorm:"index" json:"business_id"`
	Username   string    `gorm:"size:100;not null;unique" json:"username" binding:"required"`
	Name       string    `gorm:"size:100;not null" json:"name" binding:"required"`
	Email      *string   `gorm:"size:100;unique" json:"email"`
	Phone      string    `gorm:"size:20" json:"phone"`
	Password   string    `gorm:"size:255;not null" json:"password"`
	IsActive   *bool     `gorm:"not null" json:"is_active"`
	Role       UserRole  `gorm:"type:enum('A', 'C');default:C" json:"role"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	BusinessId string   `json:"business_id"`
	Username   string   `json:"username" binding:"required"`
	Name       string   `json:"name" binding:"required"`
	Email      string   `json:"email"`
	Phone      string   `json:"phone"`
	Password   string   `json:"password" binding:"required"`
	Role       UserRole `json:"role"`
}

type LoginInfo struct {
	Token        string `json:"token"`
	Jwt          string `json:"jwt"`
	Name         string `json:"name"`
	Role         string `json:"role"`
	BusinessId   string `json:"business_id"`
	BusinessName string `json:"business_name"`
	Timezone     string `json:"timezone"`
}

/*
caches:
	User:$username
	Tokens:$username (session tokens set)
	Token:$token -> username
*/

func (user User) RemoveInstanceRedis() error {
	return config.RemoveRedisKey("User:" + user.Username)
}

// clear password before handing the struct to a response
func (result *User) PrepareGive() {
	result.Password = ""
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var err error
	var result LoginInfo

	user := User{}

	// get User info
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return &result, err
	}
	if !exists {
		err = db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
		if err != nil {
			return &result, errors.New("invalid username or password")
		}
	}

	// check login credentials
	err = utils.ComparePassword(user.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return &result, errors.New("invalid username or password")
	}

	isActive := utils.DereferencePtr(user.IsActive)
	if !isActive {
		return &result, errors.New("user is disabled")
	}

	// generate session token & response
	token := uuid.New()
	result.Token = token.String()
	result.Name = user.Username
	result.Role = user.Role.DisplayName()
	result.BusinessId = user.BusinessId

	if user.Role != UserRoleAdmin {
		business, err := GetBusinessById(ctx, user.BusinessId)
		if err != nil {
			return nil, err
		}
		result.BusinessName = business.Name
		result.Timezone = business.Timezone
	}

	// service-to-service callers use the JWT instead of the session token
	jwtToken, err := utils.JwtGenerate(user.ID, string(user.Role), user.BusinessId)
	if err != nil {
		return &result, err
	}
	result.Jwt = jwtToken

	token_lifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		return &result, err
	}

	// add new token to the user's tokens set
	if err := config.AddRedisSet("Tokens:"+user.Username, token.String()); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+token.String(), user.Username, time.Duration(token_lifespan)*time.Hour); err != nil {
		return &result, err
	}

	return &result, nil
}

func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("no session token")
	}
	username, _ := utils.GetUsernameFromContext(ctx)
	if username != "" {
		if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
			return false, err
		}
	}
	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	return true, nil
}

// look up user by session username, redis or db
// (may return RecordNotFound)
func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user := User{}
	exists, err := config.GetRedisObject("User:"+username, &user)
	if err != nil {
		return nil, err
	}
	if !exists {
		db := config.GetDB()
		if err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error; err != nil {
			return nil, utils.ErrorRecordNotFound
		}
		if err := config.SetRedisObject("User:"+username, &user, utils.GetCacheLifespan()); err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	if err := utils.ValidateUnique[User](ctx, "", "username", input.Username, 0); err != nil {
		return nil, utils.NewValidationError("%s", err.Error())
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = UserRoleCustom
	}

	user := User{
		BusinessId: businessId,
		Username:   input.Username,
		Name:       input.Name,
		Email:      utils.NilIfEmpty(input.Email),
		Phone:      input.Phone,
		Password:   string(hashedPassword),
		IsActive:   utils.NewTrue(),
		Role:       role,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	user.PrepareGive()
	return &user, nil
}

func GetAllUsers(ctx context.Context) ([]*User, error) {
	businessId, ok := utils.GetBusinessIdFromContext(ctx)
	if !ok || businessId == "" {
		return nil, errors.New("business id is required")
	}

	results, err := utils.FetchAllModels[User](ctx, businessId)
	if err != nil {
		return nil, err
	}
	for _, result := range results {
		result.PrepareGive()
	}
	return results, nil
}
